// Package cli implements the airwatch command line.
package cli

import (
	"github.com/spf13/cobra"
)

// New returns the root airwatch command.
func New() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "airwatch",
		Short: "Streaming anomaly detection for air-quality sensors",
		Long: `airwatch consumes time-ordered air-quality samples, keeps a sliding window of
recent readings, runs rise detection rules on every update and raises throttled alerts.
Configuration comes from the environment and an optional .env file.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to read before the environment is loaded")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(replayCmd())
	cmd.AddCommand(simulateCmd())
	cmd.AddCommand(alertsCmd())
	cmd.AddCommand(pruneCmd())
	return cmd
}
