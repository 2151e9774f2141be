package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
)

// reportMockRepo is an in-memory alert log for reporting tests.
type reportMockRepo struct {
	alerts  []domain.AlertRecord
	listErr error
}

func (m *reportMockRepo) InsertSample(_ context.Context, _ domain.Sample) error { return nil }
func (m *reportMockRepo) RecordAlert(_ context.Context, _ domain.Alert) error { return nil }
func (m *reportMockRepo) ListAlerts(_ context.Context, from, to time.Time) ([]domain.AlertRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.AlertRecord
	for _, a := range m.alerts {
		if !a.FiredAt.Before(from) && !a.FiredAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}
func (m *reportMockRepo) CountAlertsByRule(ctx context.Context, from, to time.Time) (map[string]int, error) {
	records, _ := m.ListAlerts(ctx, from, to)
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Rule]++
	}
	return counts, nil
}
func (m *reportMockRepo) DeleteSamplesBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

func record(rule, identity string, at time.Time) domain.AlertRecord {
	return domain.AlertRecord{ID: identity + at.String(), Identity: identity, Rule: rule, FiredAt: at}
}

func TestAlertReport_Basic(t *testing.T) {
	now := time.Now()
	repo := &reportMockRepo{alerts: []domain.AlertRecord{
		record("continue_rise", "continue_rise-[PM10]", now.Add(-50*time.Minute)),
		record("continue_rise", "continue_rise-[PM10]", now.Add(-20*time.Minute)),
		record("continue_rise", "continue_rise-[PM10]", now.Add(-5*time.Minute)),
		record("sudden_rise", "sudden_rise-[PM25,VOC-TGS]", now.Add(-10*time.Minute)),
		record("sudden_rise", "sudden_rise-[PM10]", now.Add(-48*time.Hour)),
	}}

	svc := NewReportingService(repo)
	report, err := svc.AlertReport(context.Background(), now.Add(-time.Hour), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.TotalAlerts != 4 {
		t.Errorf("expected 4 alerts, got %d", report.TotalAlerts)
	}
	if report.ByRule["continue_rise"] != 3 || report.ByRule["sudden_rise"] != 1 {
		t.Errorf("unexpected per-rule counts %v", report.ByRule)
	}
	if len(report.ByIdentity) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(report.ByIdentity))
	}

	top := report.ByIdentity[0]
	if top.Identity != "continue_rise-[PM10]" || top.Count != 3 {
		t.Errorf("expected continue_rise-[PM10] x3 first, got %s x%d", top.Identity, top.Count)
	}
	if !top.FirstSeen.Equal(now.Add(-50*time.Minute)) || !top.LastSeen.Equal(now.Add(-5*time.Minute)) {
		t.Errorf("unexpected first/last seen %v / %v", top.FirstSeen, top.LastSeen)
	}
}

func TestAlertReport_Empty(t *testing.T) {
	svc := NewReportingService(&reportMockRepo{})
	now := time.Now()

	report, err := svc.AlertReport(context.Background(), now.Add(-24*time.Hour), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalAlerts != 0 {
		t.Errorf("expected 0 alerts, got %d", report.TotalAlerts)
	}
	if report.ByIdentity == nil {
		t.Error("by_identity should encode as an empty list, not null")
	}
}

func TestAlertReport_InvalidRange(t *testing.T) {
	svc := NewReportingService(&reportMockRepo{})
	now := time.Now()

	if _, err := svc.AlertReport(context.Background(), now, now.Add(-time.Hour)); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestAlertReport_RepositoryError(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewReportingService(&reportMockRepo{listErr: boom})
	now := time.Now()

	_, err := svc.AlertReport(context.Background(), now.Add(-time.Hour), now)
	if !errors.Is(err, boom) {
		t.Errorf("expected repository error, got %v", err)
	}
}
