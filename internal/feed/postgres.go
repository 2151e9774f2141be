package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/kubo-market/airwatch/internal/domain"
)

// DefaultNotifyChannel is the LISTEN channel the samples trigger publishes on.
const DefaultNotifyChannel = "air_samples"

const (
	minReconnect = 10 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

// Postgres is a change feed over LISTEN/NOTIFY: every row inserted into the
// samples table is published by a trigger and delivered here in commit order.
// Reconnection is handled by the underlying pq.Listener; notifications sent
// while disconnected are lost.
type Postgres struct {
	listener *pq.Listener
	decoder  *Decoder
	log      *slog.Logger
}

// NewPostgres connects a listener to dsn and subscribes to channel.
func NewPostgres(dsn, channel string, decoder *Decoder, log *slog.Logger) (*Postgres, error) {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	if log == nil {
		log = slog.Default()
	}
	l := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Info("change feed connected", "channel", channel)
		case pq.ListenerEventDisconnected:
			log.Warn("change feed disconnected", "channel", channel, "error", err)
		case pq.ListenerEventReconnected:
			log.Info("change feed reconnected", "channel", channel)
		case pq.ListenerEventConnectionAttemptFailed:
			log.Error("change feed connection attempt failed", "channel", channel, "error", err)
		}
	})
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("listen %s: %w", channel, err)
	}
	return &Postgres{listener: l, decoder: decoder, log: log}, nil
}

// Next implements Feed.
func (p *Postgres) Next(ctx context.Context) (domain.Sample, error) {
	idle := time.NewTimer(pingInterval)
	defer idle.Stop()

	for {
		select {
		case n, ok := <-p.listener.Notify:
			if !ok {
				return domain.Sample{}, domain.ErrFeedClosed
			}
			if n == nil {
				// the connection was re-established; anything sent in between is gone
				p.log.Warn("change feed resumed, notifications may have been missed")
				continue
			}
			if s, ok := p.decoder.Decode([]byte(n.Extra)); ok {
				return s, nil
			}
		case <-idle.C:
			if err := p.listener.Ping(); err != nil {
				p.log.Warn("change feed ping failed", "error", err)
			}
			idle.Reset(pingInterval)
		case <-ctx.Done():
			return domain.Sample{}, ctx.Err()
		}
	}
}

// Close implements Feed.
func (p *Postgres) Close() error {
	return p.listener.Close()
}
