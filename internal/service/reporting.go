package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
	"github.com/kubo-market/airwatch/internal/storage"
)

// ReportingService summarizes the alert log.
type ReportingService struct {
	repo storage.Repository
}

// NewReportingService creates a new ReportingService.
func NewReportingService(repo storage.Repository) *ReportingService {
	return &ReportingService{repo: repo}
}

// AlertReport returns the alerts fired within [from, to], grouped by rule
// and by identity. Identities are ordered by fire count, most frequent first.
func (s *ReportingService) AlertReport(ctx context.Context, from, to time.Time) (*domain.AlertReport, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("invalid time range: %s is before %s", to.Format(time.RFC3339), from.Format(time.RFC3339))
	}

	records, err := s.repo.ListAlerts(ctx, from, to)
	if err != nil {
		return nil, err
	}

	byRule, err := s.repo.CountAlertsByRule(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]*domain.IdentityStat)
	for _, r := range records {
		st, ok := stats[r.Identity]
		if !ok {
			st = &domain.IdentityStat{Identity: r.Identity, FirstSeen: r.FiredAt, LastSeen: r.FiredAt}
			stats[r.Identity] = st
		}
		st.Count++
		if r.FiredAt.Before(st.FirstSeen) {
			st.FirstSeen = r.FiredAt
		}
		if r.FiredAt.After(st.LastSeen) {
			st.LastSeen = r.FiredAt
		}
	}

	byIdentity := make([]domain.IdentityStat, 0, len(stats))
	for _, st := range stats {
		byIdentity = append(byIdentity, *st)
	}
	sort.Slice(byIdentity, func(i, j int) bool {
		if byIdentity[i].Count != byIdentity[j].Count {
			return byIdentity[i].Count > byIdentity[j].Count
		}
		return byIdentity[i].Identity < byIdentity[j].Identity
	})

	return &domain.AlertReport{
		TotalAlerts: len(records),
		ByRule:      byRule,
		ByIdentity:  byIdentity,
		TimeRange:   domain.TimeRange{From: from, To: to},
	}, nil
}
