// Package notify delivers fired alerts to the outside world.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Sink receives fired alerts. Implementations may be slow or fail; callers
// invoke them off the evaluation loop and only log the error.
type Sink interface {
	Notify(ctx context.Context, alert domain.Alert) error
}

// Func adapts a function to Sink.
type Func func(ctx context.Context, alert domain.Alert) error

// Notify implements Sink.
func (f Func) Notify(ctx context.Context, alert domain.Alert) error {
	return f(ctx, alert)
}

// Log writes alerts as structured log lines.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log sink.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log}
}

// Notify implements Sink.
func (l *Log) Notify(_ context.Context, alert domain.Alert) error {
	l.log.Warn("ALERT",
		"identity", alert.Identity.String(),
		"rule", alert.Identity.Rule(),
		"signals", alert.Identity.Signals(),
		"readings", alert.Readings,
		"fired_at", alert.FiredAt,
		"id", alert.ID.String(),
	)
	return nil
}

// Multi fans an alert out to several sinks. Every sink is attempted; failures are joined.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, alert domain.Alert) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, alert); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
