package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-envparse"
	"github.com/sosodev/duration"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/rules"
	"github.com/kubo-market/airwatch/internal/throttle"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port        string
	DatabaseDSN string
	LogLevel    string
	LogFormat   string

	Feed      string
	TimeField string
	Signals   []domain.Signal

	MQTTBroker      string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	MQTTSampleTopic string
	MQTTAlertTopic  string

	WindowMaxAge     time.Duration
	WindowMaxSamples int

	SuddenRise         rules.SuddenRiseParams
	SuddenRiseWarmUp   int
	ContinueRiseRun    int
	ContinueRiseWarmUp int

	Cooldown     time.Duration
	WallClock    bool
	Sinks        []string
	SoundCommand string
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() Config {
	return Config{
		Port:        envOrDefault("PORT", "8080"),
		DatabaseDSN: envOrDefault("DATABASE_DSN", envOrDefault("API_KEY", "postgres://postgres@localhost:5432/air?sslmode=disable")),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "text"),

		Feed:      envOrDefault("AIRWATCH_FEED", "postgres"),
		TimeField: envOrDefault("AIRWATCH_TIME_FIELD", domain.DefaultTimeField),
		Signals:   parseSignals(envOrDefault("AIRWATCH_SIGNALS", "")),

		MQTTBroker:      envOrDefault("MQTT_BROKER", "localhost:1883"),
		MQTTClientID:    envOrDefault("MQTT_CLIENT_ID", "airwatch"),
		MQTTUsername:    os.Getenv("MQTT_USERNAME"),
		MQTTPassword:    os.Getenv("MQTT_PASSWORD"),
		MQTTSampleTopic: envOrDefault("MQTT_SAMPLE_TOPIC", "air/samples"),
		MQTTAlertTopic:  envOrDefault("MQTT_ALERT_TOPIC", "air/alerts"),

		WindowMaxAge:     parseDuration(envOrDefault("WINDOW_MAX_AGE", "5m"), 5*time.Minute),
		WindowMaxSamples: parseInt(envOrDefault("WINDOW_MAX_SAMPLES", "0"), 0),

		SuddenRise: rules.SuddenRiseParams{
			Ratio:      parseFloat(envOrDefault("SUDDEN_RISE_RATIO", ""), rules.DefaultSuddenRise.Ratio),
			NoiseFloor: parseFloat(envOrDefault("SUDDEN_RISE_NOISE_FLOOR", ""), rules.DefaultSuddenRise.NoiseFloor),
			Recent:     parseInt(envOrDefault("SUDDEN_RISE_RECENT", ""), rules.DefaultSuddenRise.Recent),
			MeanSpan:   parseInt(envOrDefault("SUDDEN_RISE_MEAN_SPAN", ""), rules.DefaultSuddenRise.MeanSpan),
		},
		SuddenRiseWarmUp:   parseInt(envOrDefault("SUDDEN_RISE_WARMUP", ""), rules.DefaultSuddenRiseWarmUp),
		ContinueRiseRun:    parseInt(envOrDefault("CONTINUE_RISE_RUN", ""), rules.DefaultContinueRiseRun),
		ContinueRiseWarmUp: parseInt(envOrDefault("CONTINUE_RISE_WARMUP", ""), rules.DefaultContinueRiseWarmUp),

		Cooldown:     parseDuration(envOrDefault("ALERT_COOLDOWN", "1m"), throttle.DefaultCooldown),
		WallClock:    parseBool(envOrDefault("ALERT_WALL_CLOCK", "false")),
		Sinks:        parseList(envOrDefault("AIRWATCH_SINKS", "log")),
		SoundCommand: os.Getenv("ALERT_SOUND_COMMAND"),
	}
}

// LoadEnvFile exports the variables of a .env file that are not already set
// in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	vars, err := envparse.Parse(f)
	if err != nil {
		return fmt.Errorf("parse env file %s: %w", path, err)
	}
	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return fmt.Errorf("set %s: %w", k, err)
		}
	}
	return nil
}

// Validate checks values that would make the pipeline meaningless.
func (c Config) Validate() error {
	if len(c.Signals) == 0 {
		return domain.ErrNoSignals
	}
	for _, s := range c.Signals {
		if strings.ContainsAny(string(s), ", \t") {
			return fmt.Errorf("invalid signal name %q", s)
		}
	}
	if c.WindowMaxAge <= 0 {
		return fmt.Errorf("window max age must be positive, got %v", c.WindowMaxAge)
	}
	if c.WindowMaxSamples < 0 {
		return fmt.Errorf("window max samples must not be negative")
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("cooldown must not be negative")
	}
	if c.SuddenRise.Ratio <= 0 {
		return fmt.Errorf("sudden rise ratio must be positive")
	}
	if c.SuddenRise.Recent <= 0 || c.SuddenRise.MeanSpan <= 0 {
		return fmt.Errorf("sudden rise spans must be positive")
	}
	if c.ContinueRiseRun < 2 {
		return fmt.Errorf("continue rise run must be at least 2")
	}
	if c.SuddenRiseWarmUp < c.SuddenRise.Recent {
		return fmt.Errorf("sudden rise warm-up %d is shorter than its %d recent readings", c.SuddenRiseWarmUp, c.SuddenRise.Recent)
	}
	if c.ContinueRiseWarmUp < c.ContinueRiseRun {
		return fmt.Errorf("continue rise warm-up %d is shorter than its run of %d", c.ContinueRiseWarmUp, c.ContinueRiseRun)
	}
	switch c.Feed {
	case "postgres", "mqtt", "stdin":
	default:
		return fmt.Errorf("unknown feed %q", c.Feed)
	}
	for _, s := range c.Sinks {
		switch s {
		case "log", "mqtt", "store":
		case "sound":
			if c.SoundCommand == "" {
				return fmt.Errorf("sound sink requires ALERT_SOUND_COMMAND")
			}
		default:
			return fmt.Errorf("unknown sink %q", s)
		}
	}
	return nil
}

// Rules builds the reference rule set from the configuration.
func (c Config) Rules() []rules.Rule {
	return []rules.Rule{
		rules.NewSuddenRise(c.SuddenRise, c.SuddenRiseWarmUp),
		rules.NewContinueRise(c.ContinueRiseRun, c.ContinueRiseWarmUp),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ParseDuration accepts Go durations ("90s") and ISO 8601 ones ("PT1M30S").
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	d, err := duration.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d.ToTimeDuration(), nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseSignals(s string) []domain.Signal {
	names := parseList(s)
	if len(names) == 0 {
		return append([]domain.Signal(nil), domain.DefaultSignals...)
	}
	out := make([]domain.Signal, len(names))
	for i, n := range names {
		out[i] = domain.Signal(n)
	}
	return out
}
