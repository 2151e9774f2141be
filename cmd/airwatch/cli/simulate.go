package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/spf13/cobra"

	"github.com/kubo-market/airwatch/internal/config"
	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/seed"
)

func simulateCmd() *cobra.Command {
	var (
		scenario string
		count    int
		interval string
		pace     string
		target   string
		start    string
		output   string
		rngSeed  int64
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate synthetic air-quality samples",
		Long: `Generate a synthetic sample series and write it as JSON lines, as SQL, insert it
into Postgres (which publishes it on the change feed) or publish it to MQTT.
Scenarios: flat, continuous-rise, spike, noise.
`,
		Example: `airwatch simulate --scenario continuous-rise --count 80 --output postgres --pace 1s`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sc, err := seed.ParseScenario(scenario)
			if err != nil {
				return err
			}
			step, err := config.ParseDuration(interval)
			if err != nil {
				return err
			}
			var wait time.Duration
			if pace != "" {
				if wait, err = config.ParseDuration(pace); err != nil {
					return err
				}
			}
			opts := seed.Options{
				Signals:  cfg.Signals,
				Target:   domain.Signal(target),
				Interval: step,
				Seed:     rngSeed,
			}
			if start != "" {
				if opts.Start, err = domain.ParseTimestamp(start); err != nil {
					return fmt.Errorf("invalid start: %w", err)
				}
			}
			gen, err := seed.New(sc, opts)
			if err != nil {
				return err
			}

			a := newApp(cfg, log)
			defer a.Close()

			emit, err := a.emitter(ctx, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if output == "sql" {
				_, err := io.WriteString(cmd.OutOrStdout(), seed.GenerateSQL(gen.Take(count)))
				return err
			}

			for i := 0; i < count; i++ {
				if err := emit(gen.Next()); err != nil {
					return err
				}
				if wait > 0 && i < count-1 {
					select {
					case <-time.After(wait):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			if output != "stdout" {
				log.Info("samples generated", "scenario", sc, "count", count, "output", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scenario, "scenario", string(seed.ContinuousRise), "series shape: flat, continuous-rise, spike, noise")
	cmd.Flags().IntVar(&count, "count", 80, "number of samples to generate")
	cmd.Flags().StringVar(&interval, "interval", "1s", "time between sample timestamps (Go or ISO 8601 duration)")
	cmd.Flags().StringVar(&pace, "pace", "", "wall-clock delay between emitted samples")
	cmd.Flags().StringVar(&target, "target", "", "signal the scenario acts on, defaults to the last configured signal")
	cmd.Flags().StringVar(&start, "start", "", "timestamp of the first sample, defaults to now")
	cmd.Flags().StringVar(&output, "output", "stdout", "destination: stdout, sql, postgres, mqtt")
	cmd.Flags().Int64Var(&rngSeed, "seed", 1, "random seed for the noise scenario")
	return cmd
}

// emitter returns a function delivering one sample to output.
func (c *app) emitter(ctx context.Context, output string, stdout io.Writer) (func(domain.Sample) error, error) {
	switch output {
	case "stdout":
		return func(s domain.Sample) error {
			b, err := s.Encode(c.cfg.TimeField)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(stdout, "%s\n", b)
			return err
		}, nil
	case "sql":
		return nil, nil
	case "postgres":
		repo, err := c.openDB(ctx)
		if err != nil {
			return nil, err
		}
		return func(s domain.Sample) error {
			return repo.InsertSample(ctx, s)
		}, nil
	case "mqtt":
		client, err := c.dialMQTT(ctx, "-simulator")
		if err != nil {
			return nil, err
		}
		return func(s domain.Sample) error {
			b, err := s.Encode(c.cfg.TimeField)
			if err != nil {
				return err
			}
			_, err = client.Publish(ctx, &paho.Publish{
				Topic:   c.cfg.MQTTSampleTopic,
				QoS:     1,
				Payload: b,
			})
			return err
		}, nil
	default:
		return nil, fmt.Errorf("unknown output %q", output)
	}
}
