package notify

import (
	"context"

	"github.com/kubo-market/airwatch/internal/domain"
)

// AlertRecorder persists fired alerts.
type AlertRecorder interface {
	RecordAlert(ctx context.Context, alert domain.Alert) error
}

// Store appends every alert to the alert log.
type Store struct {
	repo AlertRecorder
}

// NewStore creates a Store sink.
func NewStore(repo AlertRecorder) *Store {
	return &Store{repo: repo}
}

// Notify implements Sink.
func (s *Store) Notify(ctx context.Context, alert domain.Alert) error {
	return s.repo.RecordAlert(ctx, alert)
}
