// Package rules holds the anomaly rules and the engine that runs them over a window.
package rules

import (
	"fmt"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Func is a pure anomaly test over one signal's readings, oldest first.
// It must not retain or modify readings.
type Func func(readings []float64) bool

// Rule is a named anomaly test. It is evaluated only once the window holds
// more than WarmUp samples.
type Rule struct {
	Name   string
	WarmUp int
	Eval   Func
}

// Ready reports whether a window of n samples is large enough for the rule.
func (r Rule) Ready(n int) bool {
	return n > r.WarmUp
}

// Source is the read side of a sample window.
type Source interface {
	Len() int
	Readings(sig domain.Signal) []float64
}

// Verdict is the outcome of one rule over all signals. Signals lists the
// triggered signals in declaration order and is empty when nothing triggered.
type Verdict struct {
	Rule    string
	Signals []domain.Signal
}

// Triggered reports whether any signal triggered.
func (v Verdict) Triggered() bool {
	return len(v.Signals) > 0
}

// Identity returns the alert identity for the verdict.
func (v Verdict) Identity() domain.AlertIdentity {
	return domain.NewAlertIdentity(v.Rule, v.Signals)
}

// Engine runs registered rules across a fixed set of signals.
type Engine struct {
	signals []domain.Signal
	rules   []Rule
	names   map[string]struct{}
}

// NewEngine creates an engine over signals and registers rules in order.
func NewEngine(signals []domain.Signal, rules ...Rule) (*Engine, error) {
	if len(signals) == 0 {
		return nil, domain.ErrNoSignals
	}
	e := &Engine{
		signals: append([]domain.Signal(nil), signals...),
		names:   make(map[string]struct{}),
	}
	for _, r := range rules {
		if err := e.Register(r); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Register adds a rule. Rules are evaluated in registration order.
func (e *Engine) Register(r Rule) error {
	if r.Name == "" || r.Eval == nil {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRule, r.Name)
	}
	if r.WarmUp < 0 {
		return fmt.Errorf("%w: %q has negative warm-up", domain.ErrInvalidRule, r.Name)
	}
	if _, ok := e.names[r.Name]; ok {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateRule, r.Name)
	}
	e.names[r.Name] = struct{}{}
	e.rules = append(e.rules, r)
	return nil
}

// Rules returns the registered rules.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Signals returns the monitored signals in declaration order.
func (e *Engine) Signals() []domain.Signal {
	return append([]domain.Signal(nil), e.signals...)
}

// AnyReady reports whether at least one rule is enabled for a window of n samples.
func (e *Engine) AnyReady(n int) bool {
	for _, r := range e.rules {
		if r.Ready(n) {
			return true
		}
	}
	return false
}

// Evaluate runs every ready rule over src and returns one verdict per rule that ran.
// Rules that are not ready are skipped without being invoked.
func (e *Engine) Evaluate(src Source) []Verdict {
	n := src.Len()
	var verdicts []Verdict
	var projected map[domain.Signal][]float64
	for _, r := range e.rules {
		if !r.Ready(n) {
			continue
		}
		if projected == nil {
			projected = make(map[domain.Signal][]float64, len(e.signals))
			for _, sig := range e.signals {
				projected[sig] = src.Readings(sig)
			}
		}
		v := Verdict{Rule: r.Name}
		for _, sig := range e.signals {
			if r.Eval(projected[sig]) {
				v.Signals = append(v.Signals, sig)
			}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}
