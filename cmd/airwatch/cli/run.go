package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/handler"
	"github.com/kubo-market/airwatch/internal/service"
)

func runCmd() *cobra.Command {
	var noHTTP bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Watch the live sample feed and raise alerts",
		Long: `Consume the configured feed (postgres, mqtt or stdin), evaluate the rules on
every sample and deliver alerts to the configured sinks. Health, metrics and the
alert report are served over HTTP on PORT.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a := newApp(cfg, log)
			defer a.Close()

			if a.needsDB() {
				if _, err := a.openDB(ctx); err != nil {
					return err
				}
			}
			sink, err := a.buildSink(ctx)
			if err != nil {
				return err
			}
			d, err := a.newDispatcher(sink)
			if err != nil {
				return err
			}
			f, err := a.openFeed(ctx, cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer f.Close()

			var srv *http.Server
			serveErr := make(chan error, 1)
			if !noHTTP {
				srv = a.httpServer()
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
				}
				go func() {
					log.Info("server starting", "port", cfg.Port)
					if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("server failed", "error", err)
						serveErr <- err
						stop()
					}
				}()
			}

			runErr := d.Run(ctx, f)

			log.Info("shutting down")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error("server shutdown", "error", err)
				}
			}
			d.Wait()
			log.Info("stopped", "processed", d.Processed())

			select {
			case err := <-serveErr:
				return fmt.Errorf("http server: %w", err)
			default:
			}
			if errors.Is(runErr, domain.ErrFeedClosed) || errors.Is(runErr, context.Canceled) {
				return nil
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&noHTTP, "no-http", false, "do not serve health, metrics and alert endpoints")
	return cmd
}

func (c *app) httpServer() *http.Server {
	var db handler.Pinger
	var reporting *handler.ReportingHandler
	if c.db != nil {
		db = c.db
		reporting = handler.NewReportingHandler(service.NewReportingService(c.repo))
	}
	health := handler.NewHealthHandler(db, c.metrics)

	return &http.Server{
		Addr:         ":" + c.cfg.Port,
		Handler:      handler.NewRouter(health, reporting, c.log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
