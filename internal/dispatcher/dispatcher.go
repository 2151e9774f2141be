// Package dispatcher runs the detection loop: one sample in, window update,
// rule evaluation, throttle check, asynchronous notification.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/feed"
	"github.com/kubo-market/airwatch/internal/notify"
	"github.com/kubo-market/airwatch/internal/rules"
	"github.com/kubo-market/airwatch/internal/throttle"
	"github.com/kubo-market/airwatch/internal/window"
)

// State of the loop.
type State int

const (
	// Accumulating means no rule has enough history yet.
	Accumulating State = iota
	// Active means at least one rule is evaluated per sample.
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "accumulating"
}

// Observer receives telemetry from the loop. Calls happen on the evaluation
// goroutine, except SinkFailed which is called from notification goroutines.
type Observer interface {
	SampleProcessed(s domain.Sample, windowLen int, span time.Duration, active bool)
	RuleEvaluated(rule string, triggered bool)
	AlertFired(id domain.AlertIdentity)
	AlertSuppressed(id domain.AlertIdentity)
	SinkFailed(id domain.AlertIdentity, err error)
}

type nopObserver struct{}

func (nopObserver) SampleProcessed(domain.Sample, int, time.Duration, bool) {}
func (nopObserver) RuleEvaluated(string, bool) {}
func (nopObserver) AlertFired(domain.AlertIdentity) {}
func (nopObserver) AlertSuppressed(domain.AlertIdentity) {}
func (nopObserver) SinkFailed(domain.AlertIdentity, error) {}

// pruneEvery is how many samples pass between throttle clean-ups.
const pruneEvery = 600

// Dispatcher owns the window and the throttle; both are touched only from the
// goroutine calling Process or Run.
type Dispatcher struct {
	window   *window.Window
	engine   *rules.Engine
	throttle *throttle.Throttle
	sink     notify.Sink

	log      *slog.Logger
	observer Observer
	clock    func(domain.Sample) time.Time

	state     State
	processed int64
	inflight  sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// WithObserver sets the telemetry hook.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// WithClock sets the time used for throttling and alert timestamps.
// The default is the timestamp of the sample being processed.
func WithClock(clock func(domain.Sample) time.Time) Option {
	return func(d *Dispatcher) { d.clock = clock }
}

// WithWallClock throttles on the local clock instead of sample time.
func WithWallClock() Option {
	return WithClock(func(domain.Sample) time.Time { return time.Now() })
}

// New creates a Dispatcher.
func New(w *window.Window, e *rules.Engine, th *throttle.Throttle, sink notify.Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		window:   w,
		engine:   e,
		throttle: th,
		sink:     sink,
		log:      slog.Default(),
		observer: nopObserver{},
		clock:    func(s domain.Sample) time.Time { return s.At },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes f until it ends, fails, or ctx is done. A clean end of stream
// returns domain.ErrFeedClosed; a transport failure is wrapped in
// domain.ErrFeedInterrupted; cancellation returns ctx.Err().
func (d *Dispatcher) Run(ctx context.Context, f feed.Feed) error {
	d.log.Info("dispatcher started", "signals", d.engine.Signals(), "window", d.window.MaxAge(), "cooldown", d.throttle.Cooldown())
	for {
		s, err := f.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, domain.ErrFeedClosed) {
				d.log.Info("sample feed ended", "processed", d.processed)
				return domain.ErrFeedClosed
			}
			d.log.Error("sample feed failed", "error", err)
			return fmt.Errorf("%w: %w", domain.ErrFeedInterrupted, err)
		}
		d.Process(ctx, s)
	}
}

// Process runs one sample through the pipeline and returns the alerts handed
// to the sink. Notification happens asynchronously.
func (d *Dispatcher) Process(ctx context.Context, s domain.Sample) []domain.Alert {
	d.window.Append(s)
	d.processed++
	n := d.window.Len()
	d.log.Debug("sample received", "at", s.At, "values", s.Values(), "window", n)

	d.updateState(n)
	now := d.clock(s)

	var fired []domain.Alert
	for _, v := range d.engine.Evaluate(d.window) {
		d.observer.RuleEvaluated(v.Rule, v.Triggered())
		d.log.Debug("rule checked", "rule", v.Rule, "triggered", v.Signals)
		if !v.Triggered() {
			continue
		}

		id := v.Identity()
		if !d.throttle.ShouldFire(id, now) {
			d.observer.AlertSuppressed(id)
			d.log.Info("alert suppressed", "identity", id.String(), "remaining", d.throttle.Remaining(id, now))
			continue
		}

		alert := domain.NewAlert(id, now, s)
		d.observer.AlertFired(id)
		d.log.Info("alert fired", "identity", id.String(), "id", alert.ID.String())
		d.notify(ctx, alert)
		fired = append(fired, alert)
	}

	if d.processed%pruneEvery == 0 {
		d.throttle.Prune(now)
	}
	d.observer.SampleProcessed(s, n, d.window.Span(), d.state == Active)
	return fired
}

func (d *Dispatcher) updateState(n int) {
	next := Accumulating
	if d.engine.AnyReady(n) {
		next = Active
	}
	if next != d.state {
		d.log.Info("dispatcher state changed", "from", d.state.String(), "to", next.String(), "window", n)
		d.state = next
	}
}

// notify hands alert to the sink on its own goroutine. The sink outlives
// cancellation of ctx so an alert raised during shutdown is still delivered.
func (d *Dispatcher) notify(ctx context.Context, alert domain.Alert) {
	nctx := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("sink panic: %v", r)
				d.log.Error("notification failed", "identity", alert.Identity.String(), "error", err)
				d.observer.SinkFailed(alert.Identity, err)
			}
		}()
		if err := d.sink.Notify(nctx, alert); err != nil {
			d.log.Error("notification failed", "identity", alert.Identity.String(), "error", err)
			d.observer.SinkFailed(alert.Identity, err)
		}
	}()
}

// Wait blocks until all in-flight notifications have returned.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

// State returns the current loop state.
func (d *Dispatcher) State() State {
	return d.state
}

// Processed returns how many samples have been processed.
func (d *Dispatcher) Processed() int64 {
	return d.processed
}
