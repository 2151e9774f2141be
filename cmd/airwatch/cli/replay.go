package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/feed"
)

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Run recorded samples through the detection pipeline",
		Long: `Replay newline-delimited JSON samples from a file, or from stdin when the file
is "-" or omitted, through the configured rules and sinks, then print a summary.
`,
		Example: `airwatch simulate --scenario spike --count 90 > spike.jsonl
airwatch replay spike.jsonl`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a := newApp(cfg, log)
			defer a.Close()

			var in io.Reader = io.NopCloser(cmd.InOrStdin())
			if len(args) == 1 && args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open %s: %w", args[0], err)
				}
				in = file
			}
			f := feed.NewReader(in, a.decoder("stdin"))
			defer f.Close()

			sink, err := a.buildSink(ctx)
			if err != nil {
				return err
			}
			d, err := a.newDispatcher(sink)
			if err != nil {
				return err
			}

			runErr := d.Run(ctx, f)
			d.Wait()
			if runErr != nil && !errors.Is(runErr, domain.ErrFeedClosed) {
				return runErr
			}

			snap := a.metrics.Snapshot()
			var fired, suppressed int64
			for _, n := range snap.AlertsFired {
				fired += n
			}
			for _, n := range snap.AlertsSuppressed {
				suppressed += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d samples, rejected %d, fired %d alerts, suppressed %d\n",
				snap.SamplesIngested, snap.SamplesRejected, fired, suppressed)
			return nil
		},
	}
	return cmd
}
