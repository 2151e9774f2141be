package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/kubo-market/airwatch/internal/config"
	"github.com/kubo-market/airwatch/internal/dispatcher"
	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/feed"
	"github.com/kubo-market/airwatch/internal/logging"
	"github.com/kubo-market/airwatch/internal/monitor"
	"github.com/kubo-market/airwatch/internal/mqttconn"
	"github.com/kubo-market/airwatch/internal/notify"
	"github.com/kubo-market/airwatch/internal/rules"
	"github.com/kubo-market/airwatch/internal/storage"
	"github.com/kubo-market/airwatch/internal/throttle"
	"github.com/kubo-market/airwatch/internal/window"
)

func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	return config.LoadEnvFile(path)
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(stderr io.Writer) (config.Config, *slog.Logger, error) {
	cfg := config.Load()
	log := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		return cfg, log, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, log, nil
}

func (c *app) mqttConfig(suffix string) mqttconn.Config {
	return mqttconn.Config{
		Broker:   c.cfg.MQTTBroker,
		ClientID: c.cfg.MQTTClientID + suffix,
		Username: c.cfg.MQTTUsername,
		Password: c.cfg.MQTTPassword,
	}
}

// app holds the resources shared by the commands. Closers run in reverse
// order of acquisition.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *monitor.Metrics
	db      *sql.DB
	repo    storage.Repository
	closers []func()
}

func newApp(cfg config.Config, log *slog.Logger) *app {
	return &app{cfg: cfg, log: log, metrics: monitor.NewMetrics()}
}

func (c *app) onClose(f func()) {
	c.closers = append(c.closers, f)
}

func (c *app) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// openDB connects to Postgres once and migrates the schema.
func (c *app) openDB(ctx context.Context) (storage.Repository, error) {
	if c.repo != nil {
		return c.repo, nil
	}
	db, err := storage.NewPostgresDB(ctx, c.cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	c.log.Info("connected to PostgreSQL")
	c.db = db
	c.repo = storage.NewPostgresRepository(db)
	c.onClose(func() { db.Close() })
	return c.repo, nil
}

// decoder builds the payload decoder for a feed kind. The samples trigger
// always publishes the timestamp as "at", so the Postgres feed ignores
// AIRWATCH_TIME_FIELD.
func (c *app) decoder(kind string) *feed.Decoder {
	timeField := c.cfg.TimeField
	if kind == "postgres" {
		timeField = domain.DefaultTimeField
	}
	d := feed.NewDecoder(timeField, c.cfg.Signals, c.log)
	d.OnReject = c.metrics.SampleRejected
	return d
}

// openFeed builds the configured live feed. stdin is used by the stdin feed.
func (c *app) openFeed(ctx context.Context, stdin io.Reader) (feed.Feed, error) {
	switch c.cfg.Feed {
	case "postgres":
		if _, err := c.openDB(ctx); err != nil {
			return nil, err
		}
		return feed.NewPostgres(c.cfg.DatabaseDSN, feed.DefaultNotifyChannel, c.decoder("postgres"), c.log)
	case "mqtt":
		return feed.NewMQTT(ctx, c.mqttConfig("-feed"), c.cfg.MQTTSampleTopic, c.decoder("mqtt"), c.log)
	case "stdin":
		return feed.NewReader(io.NopCloser(stdin), c.decoder("stdin")), nil
	default:
		return nil, fmt.Errorf("unknown feed %q", c.cfg.Feed)
	}
}

// dialMQTT connects a client used only for publishing.
func (c *app) dialMQTT(ctx context.Context, suffix string) (*paho.Client, error) {
	client, err := mqttconn.Dial(ctx, c.mqttConfig(suffix), mqttconn.Handlers{
		OnClientError: func(err error) { c.log.Error("mqtt client error", "error", err) },
	})
	if err != nil {
		return nil, err
	}
	c.onClose(func() { _ = client.Disconnect(&paho.Disconnect{ReasonCode: 0}) })
	return client, nil
}

// buildSink assembles the configured notification sinks.
func (c *app) buildSink(ctx context.Context) (notify.Sink, error) {
	var sinks notify.Multi
	for _, name := range c.cfg.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, notify.NewLog(c.log))
		case "sound":
			cmd, err := notify.NewCommand(c.cfg.SoundCommand)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, cmd)
		case "mqtt":
			client, err := c.dialMQTT(ctx, "-alerts")
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, notify.NewMQTT(client, c.cfg.MQTTAlertTopic))
		case "store":
			repo, err := c.openDB(ctx)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, notify.NewStore(repo))
		default:
			return nil, fmt.Errorf("unknown sink %q", name)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

func (c *app) needsDB() bool {
	return c.cfg.Feed == "postgres" || slices.Contains(c.cfg.Sinks, "store")
}

// newDispatcher wires window, rules and throttle around sink.
func (c *app) newDispatcher(sink notify.Sink) (*dispatcher.Dispatcher, error) {
	engine, err := rules.NewEngine(c.cfg.Signals, c.cfg.Rules()...)
	if err != nil {
		return nil, err
	}
	opts := []dispatcher.Option{
		dispatcher.WithLogger(c.log),
		dispatcher.WithObserver(c.metrics),
	}
	if c.cfg.WallClock {
		opts = append(opts, dispatcher.WithWallClock())
	}
	return dispatcher.New(
		window.New(c.cfg.WindowMaxAge, c.cfg.WindowMaxSamples),
		engine,
		throttle.New(c.cfg.Cooldown),
		sink,
		opts...,
	), nil
}

func parseSince(s string) (time.Duration, error) {
	d, err := config.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", s)
	}
	return d, nil
}
