// Package feed provides sources of samples for the detection loop.
package feed

import (
	"context"
	"log/slog"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Feed delivers samples one at a time in arrival order. Next blocks until a
// sample is available, the context is done, or the feed ends; a clean end of
// stream is reported as domain.ErrFeedClosed.
type Feed interface {
	Next(ctx context.Context) (domain.Sample, error)
	Close() error
}

// Decoder turns raw payloads into samples. Malformed payloads are logged and
// reported through OnReject instead of failing the feed.
type Decoder struct {
	TimeField string
	Signals   []domain.Signal
	Log       *slog.Logger
	OnReject  func(err error)
}

// NewDecoder creates a Decoder for signals with the timestamp under timeField.
func NewDecoder(timeField string, signals []domain.Signal, log *slog.Logger) *Decoder {
	if timeField == "" {
		timeField = domain.DefaultTimeField
	}
	if log == nil {
		log = slog.Default()
	}
	return &Decoder{TimeField: timeField, Signals: signals, Log: log}
}

// Decode parses payload, returning false when it was rejected.
func (d *Decoder) Decode(payload []byte) (domain.Sample, bool) {
	s, err := domain.DecodeSample(payload, d.TimeField, d.Signals)
	if err != nil {
		d.Log.Warn("rejected sample payload", "error", err, "payload", truncate(payload, 256))
		if d.OnReject != nil {
			d.OnReject(err)
		}
		return domain.Sample{}, false
	}
	return s, true
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
