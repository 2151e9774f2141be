package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/service"
)

func alertsCmd() *cobra.Command {
	var (
		from   string
		to     string
		since  string
		format string
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print the alert history report",
		Long: `Summarize the alert log stored in Postgres over a time range: total alerts,
alerts per rule and per identity.
`,
		Example: `airwatch alerts --since 2h
airwatch alerts --from 2021-05-15T00:00:00Z --to 2021-05-16T00:00:00Z --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			end := time.Now()
			if to != "" {
				if end, err = domain.ParseTimestamp(to); err != nil {
					return fmt.Errorf("invalid to: %w", err)
				}
			}
			span, err := parseSince(since)
			if err != nil {
				return err
			}
			begin := end.Add(-span)
			if from != "" {
				if begin, err = domain.ParseTimestamp(from); err != nil {
					return fmt.Errorf("invalid from: %w", err)
				}
			}

			a := newApp(cfg, log)
			defer a.Close()
			repo, err := a.openDB(ctx)
			if err != nil {
				return err
			}

			report, err := service.NewReportingService(repo).AlertReport(ctx, begin, end)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "table":
				fmt.Fprintf(out, "%d alerts between %s and %s\n\n",
					report.TotalAlerts, begin.Format(time.RFC3339), end.Format(time.RFC3339))
				rulesByName := make([]string, 0, len(report.ByRule))
				for r := range report.ByRule {
					rulesByName = append(rulesByName, r)
				}
				sort.Strings(rulesByName)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RULE\tCOUNT")
				for _, r := range rulesByName {
					fmt.Fprintf(tw, "%s\t%d\n", r, report.ByRule[r])
				}
				fmt.Fprintln(tw, "\nIDENTITY\tCOUNT\tFIRST\tLAST")
				for _, st := range report.ByIdentity {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", st.Identity, st.Count,
						st.FirstSeen.Format(time.RFC3339), st.LastSeen.Format(time.RFC3339))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown format %s", format)
			}
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start of the range (ISO 8601), overrides --since")
	cmd.Flags().StringVar(&to, "to", "", "end of the range (ISO 8601), defaults to now")
	cmd.Flags().StringVar(&since, "since", "24h", "length of the range ending at --to")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json")
	return cmd
}
