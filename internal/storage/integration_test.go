package storage

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/kubo-market/airwatch/internal/domain"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "postgres://postgres@localhost:5432/air?sslmode=disable"
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("skipping integration test: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("skipping integration test (DB not available): %v", err)
	}
	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("migration: %v", err)
	}
	return db
}

func cleanupAlerts(t *testing.T, db *sql.DB, rule string) {
	t.Helper()
	db.Exec("DELETE FROM alerts WHERE rule = $1", rule)
}

func TestIntegration_MigrateTwice(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	if err := Migrate(context.Background(), db); err != nil {
		t.Fatalf("second migration should be a no-op: %v", err)
	}
}

func TestIntegration_RecordAndListAlerts(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	rule := "inttest_rule_" + time.Now().Format("20060102150405.000")
	defer cleanupAlerts(t, db, rule)

	base := time.Now().UTC().Truncate(time.Millisecond)
	latest := domain.NewSample(base, map[domain.Signal]float64{"PM10": 40, "PM25": 9})
	first := domain.NewAlert(domain.NewAlertIdentity(rule, []domain.Signal{"PM25", "PM10"}), base, latest)
	second := domain.NewAlert(domain.NewAlertIdentity(rule, []domain.Signal{"PM10"}), base.Add(2*time.Minute), latest)

	for _, a := range []domain.Alert{second, first} {
		if err := repo.RecordAlert(ctx, a); err != nil {
			t.Fatalf("RecordAlert: %v", err)
		}
	}
	if err := repo.RecordAlert(ctx, first); err != nil {
		t.Fatalf("re-recording the same alert should be ignored: %v", err)
	}

	records, err := repo.ListAlerts(ctx, base.Add(-time.Minute), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	var mine []domain.AlertRecord
	for _, r := range records {
		if r.Rule == rule {
			mine = append(mine, r)
		}
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(mine))
	}
	if mine[0].ID != first.ID.String() {
		t.Errorf("expected oldest alert first, got %s", mine[0].Identity)
	}
	if mine[0].Identity != rule+"-[PM10,PM25]" {
		t.Errorf("unexpected identity %s", mine[0].Identity)
	}
	if len(mine[0].Signals) != 2 || mine[0].Signals[0] != "PM10" {
		t.Errorf("unexpected signals %v", mine[0].Signals)
	}

	counts, err := repo.CountAlertsByRule(ctx, base.Add(-time.Minute), base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountAlertsByRule: %v", err)
	}
	if counts[rule] != 2 {
		t.Errorf("expected 2 alerts for %s, got %d", rule, counts[rule])
	}
}

func TestIntegration_InsertAndPruneSamples(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()
	repo := NewPostgresRepository(db)
	ctx := context.Background()

	old := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	s := domain.NewSample(old, map[domain.Signal]float64{"PM10": 1})
	if err := repo.InsertSample(ctx, s); err != nil {
		t.Fatalf("InsertSample: %v", err)
	}

	n, err := repo.DeleteSamplesBefore(ctx, old.Add(time.Second))
	if err != nil {
		t.Fatalf("DeleteSamplesBefore: %v", err)
	}
	if n < 1 {
		t.Errorf("expected at least 1 deleted sample, got %d", n)
	}
}
