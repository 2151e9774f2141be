// Package window keeps the recent history of samples that rules evaluate over.
package window

import (
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Window is a time-ordered buffer of samples bounded by age relative to the
// newest sample and, optionally, by count. It has a single writer and is not
// safe for concurrent use.
type Window struct {
	maxAge     time.Duration
	maxSamples int

	samples []domain.Sample
	head    int
}

// New creates a Window retaining samples at most maxAge older than the newest one.
// maxSamples caps the count as well; zero means no count cap.
func New(maxAge time.Duration, maxSamples int) *Window {
	return &Window{maxAge: maxAge, maxSamples: maxSamples}
}

// Append adds s at the tail and evicts expired samples from the head.
// Samples are expected in non-decreasing timestamp order.
func (w *Window) Append(s domain.Sample) {
	w.samples = append(w.samples, s)
	w.prune(s.At)
}

func (w *Window) prune(newest time.Time) {
	cutoff := newest.Add(-w.maxAge)
	for w.head < len(w.samples) && w.samples[w.head].At.Before(cutoff) {
		w.samples[w.head] = domain.Sample{}
		w.head++
	}
	for w.maxSamples > 0 && w.Len() > w.maxSamples {
		w.samples[w.head] = domain.Sample{}
		w.head++
	}

	// compact once the dead prefix dominates so the backing array does not grow unbounded
	if w.head > 0 && w.head >= len(w.samples)/2 {
		n := copy(w.samples, w.samples[w.head:])
		for i := n; i < len(w.samples); i++ {
			w.samples[i] = domain.Sample{}
		}
		w.samples = w.samples[:n]
		w.head = 0
	}
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return len(w.samples) - w.head
}

// Readings projects the window onto sig, oldest first. Samples without a value
// for sig are skipped.
func (w *Window) Readings(sig domain.Signal) []float64 {
	out := make([]float64, 0, w.Len())
	for _, s := range w.samples[w.head:] {
		if v, ok := s.Value(sig); ok {
			out = append(out, v)
		}
	}
	return out
}

// Newest returns the most recent sample.
func (w *Window) Newest() (domain.Sample, bool) {
	if w.Len() == 0 {
		return domain.Sample{}, false
	}
	return w.samples[len(w.samples)-1], true
}

// Oldest returns the sample at the head of the window.
func (w *Window) Oldest() (domain.Sample, bool) {
	if w.Len() == 0 {
		return domain.Sample{}, false
	}
	return w.samples[w.head], true
}

// Span is the time between the oldest and newest retained samples.
func (w *Window) Span() time.Duration {
	oldest, ok := w.Oldest()
	if !ok {
		return 0
	}
	newest, _ := w.Newest()
	return newest.At.Sub(oldest.At)
}

// MaxAge returns the configured age bound.
func (w *Window) MaxAge() time.Duration {
	return w.maxAge
}
