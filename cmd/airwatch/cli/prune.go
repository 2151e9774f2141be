package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pruneCmd() *cobra.Command {
	var olderThan string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete stored samples older than a retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			retention, err := parseSince(olderThan)
			if err != nil {
				return err
			}

			a := newApp(cfg, log)
			defer a.Close()
			repo, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}

			cutoff := time.Now().Add(-retention)
			n, err := repo.DeleteSamplesBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d samples older than %s\n", n, cutoff.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&olderThan, "older-than", "P7D", "retention period (Go or ISO 8601 duration)")
	return cmd
}
