// Package seed generates synthetic air-quality samples for demos and tests.
package seed

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Scenario selects the shape of the generated series.
type Scenario string

const (
	// Flat keeps every signal at its baseline.
	Flat Scenario = "flat"
	// ContinuousRise climbs the target signal by one unit per sample once
	// the lead-in is over.
	ContinuousRise Scenario = "continuous-rise"
	// Spike triples the target signal after the lead-in and holds it there.
	Spike Scenario = "spike"
	// Noise jitters every signal around its baseline.
	Noise Scenario = "noise"
)

// Scenarios lists the supported scenario names.
var Scenarios = []Scenario{Flat, ContinuousRise, Spike, Noise}

// ParseScenario validates a scenario name.
func ParseScenario(s string) (Scenario, error) {
	for _, sc := range Scenarios {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scenario %q", s)
}

// DefaultLeadIn is the number of baseline samples before the scenario's
// shape starts. It matches the sudden rise warm-up.
const DefaultLeadIn = 60

const defaultBaseline = 10.0

// Options configures a Generator. Zero values take defaults.
type Options struct {
	Signals  []domain.Signal
	Target   domain.Signal
	Start    time.Time
	Interval time.Duration
	LeadIn   int
	Baseline map[domain.Signal]float64
	Seed     int64
}

// Generator produces an endless, deterministic sample series.
type Generator struct {
	scenario Scenario
	opts     Options
	rng      *rand.Rand
	i        int
}

// New creates a generator for scenario.
func New(scenario Scenario, opts Options) (*Generator, error) {
	if _, err := ParseScenario(string(scenario)); err != nil {
		return nil, err
	}
	if len(opts.Signals) == 0 {
		opts.Signals = domain.DefaultSignals
	}
	if opts.Target == "" {
		opts.Target = opts.Signals[len(opts.Signals)-1]
	}
	found := false
	for _, s := range opts.Signals {
		if s == opts.Target {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("target %s is not one of the signals", opts.Target)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().UTC().Truncate(time.Second)
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.LeadIn <= 0 {
		opts.LeadIn = DefaultLeadIn
	}
	return &Generator{
		scenario: scenario,
		opts:     opts,
		rng:      rand.New(rand.NewSource(opts.Seed)),
	}, nil
}

func (g *Generator) baseline(sig domain.Signal) float64 {
	if v, ok := g.opts.Baseline[sig]; ok {
		return v
	}
	return defaultBaseline
}

// Next returns the next sample of the series.
func (g *Generator) Next() domain.Sample {
	at := g.opts.Start.Add(time.Duration(g.i) * g.opts.Interval)
	values := make(map[domain.Signal]float64, len(g.opts.Signals))
	past := g.i - g.opts.LeadIn

	for _, sig := range g.opts.Signals {
		v := g.baseline(sig)
		switch g.scenario {
		case Noise:
			v += g.rng.Float64()*4 - 2
		case ContinuousRise:
			if sig == g.opts.Target && past >= 0 {
				v += float64(past + 1)
			}
		case Spike:
			if sig == g.opts.Target && past >= 0 {
				v *= 3
			}
		}
		values[sig] = v
	}
	g.i++
	return domain.NewSample(at, values)
}

// Take returns the next n samples.
func (g *Generator) Take(n int) []domain.Sample {
	out := make([]domain.Sample, n)
	for i := range out {
		out[i] = g.Next()
	}
	return out
}

// GenerateSQL builds INSERT statements for samples, wrapped in a transaction.
func GenerateSQL(samples []domain.Sample) string {
	var b strings.Builder
	b.WriteString("BEGIN;\n")
	for _, s := range samples {
		values := s.Values()
		names := make([]string, 0, len(values))
		for sig := range values {
			names = append(names, string(sig))
		}
		sort.Strings(names)

		fields := make([]string, len(names))
		for i, n := range names {
			fields[i] = strconv.Quote(n) + ":" + strconv.FormatFloat(values[domain.Signal(n)], 'f', -1, 64)
		}
		b.WriteString("INSERT INTO samples (at, readings) VALUES (")
		b.WriteString("'" + s.At.UTC().Format(time.RFC3339Nano) + "', ")
		b.WriteString("'{" + strings.Join(fields, ",") + "}'")
		b.WriteString(");\n")
	}
	b.WriteString("COMMIT;\n")
	return b.String()
}
