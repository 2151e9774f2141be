package feed

import (
	"context"
	"sync"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Channel is an in-process feed backed by a Go channel.
type Channel struct {
	ch   chan domain.Sample
	once sync.Once
}

// NewChannel creates a Channel feed with the given buffer size.
func NewChannel(buffer int) *Channel {
	return &Channel{ch: make(chan domain.Sample, buffer)}
}

// Publish hands s to the feed, blocking while the buffer is full.
// It must not be called after Close.
func (c *Channel) Publish(ctx context.Context, s domain.Sample) error {
	select {
	case c.ch <- s:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next implements Feed.
func (c *Channel) Next(ctx context.Context) (domain.Sample, error) {
	select {
	case s, ok := <-c.ch:
		if !ok {
			return domain.Sample{}, domain.ErrFeedClosed
		}
		return s, nil
	case <-ctx.Done():
		return domain.Sample{}, ctx.Err()
	}
}

// Close ends the feed; buffered samples are still delivered.
func (c *Channel) Close() error {
	c.once.Do(func() { close(c.ch) })
	return nil
}
