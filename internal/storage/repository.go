package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Repository stores air samples and the alert log.
type Repository interface {
	// InsertSample appends a sample. Inserting fires the change notification
	// the Postgres feed listens to.
	InsertSample(ctx context.Context, s domain.Sample) error

	// RecordAlert appends a fired alert to the alert log.
	RecordAlert(ctx context.Context, alert domain.Alert) error

	// ListAlerts returns alerts fired within [from, to], oldest first.
	ListAlerts(ctx context.Context, from, to time.Time) ([]domain.AlertRecord, error)

	// CountAlertsByRule returns the number of alerts per rule within [from, to].
	CountAlertsByRule(ctx context.Context, from, to time.Time) (map[string]int, error)

	// DeleteSamplesBefore removes samples older than t.
	DeleteSamplesBefore(ctx context.Context, t time.Time) (int64, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func sampleReadings(s domain.Sample) (string, error) {
	values := make(map[string]float64)
	for sig, v := range s.Values() {
		values[string(sig)] = v
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *PostgresRepository) InsertSample(ctx context.Context, s domain.Sample) error {
	readings, err := sampleReadings(s)
	if err != nil {
		return fmt.Errorf("encode readings: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO samples (at, readings) VALUES ($1, $2::jsonb)", s.At, readings,
	); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (r *PostgresRepository) RecordAlert(ctx context.Context, alert domain.Alert) error {
	signals := make([]string, 0, len(alert.Identity.Signals()))
	for _, s := range alert.Identity.Signals() {
		signals = append(signals, string(s))
	}
	readings, err := json.Marshal(alert.Readings)
	if err != nil {
		return fmt.Errorf("encode readings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, identity, rule, signals, readings, fired_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		ON CONFLICT (id) DO NOTHING
	`, alert.ID.String(), alert.Identity.String(), alert.Identity.Rule(), pq.Array(signals), string(readings), alert.FiredAt)
	if err != nil {
		return fmt.Errorf("record alert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListAlerts(ctx context.Context, from, to time.Time) ([]domain.AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, identity, rule, signals, fired_at
		FROM alerts
		WHERE fired_at >= $1 AND fired_at <= $2
		ORDER BY fired_at ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var records []domain.AlertRecord
	for rows.Next() {
		var rec domain.AlertRecord
		if err := rows.Scan(&rec.ID, &rec.Identity, &rec.Rule, pq.Array(&rec.Signals), &rec.FiredAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) CountAlertsByRule(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT rule, COUNT(*)
		FROM alerts
		WHERE fired_at >= $1 AND fired_at <= $2
		GROUP BY rule
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var rule string
		var n int
		if err := rows.Scan(&rule, &n); err != nil {
			return nil, err
		}
		counts[rule] = n
	}
	return counts, rows.Err()
}

func (r *PostgresRepository) DeleteSamplesBefore(ctx context.Context, t time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM samples WHERE at < $1", t)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
