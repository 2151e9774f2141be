package monitor

import (
	"sync"
	"time"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Metrics tracks in-memory counters for the detection pipeline.
type Metrics struct {
	mu sync.RWMutex

	samplesIngested  int64
	samplesRejected  int64
	sinkFailures     int64
	ruleEvaluations  map[string]int64
	alertsFired      map[string]int64
	alertsSuppressed map[string]int64

	windowLen    int
	windowSpan   time.Duration
	active       bool
	lastSampleAt time.Time
	lastAlert    string
	lastAlertAt  time.Time

	// Sliding window of recent fires
	window []windowEntry
	now    func() time.Time
}

type windowEntry struct {
	ts   time.Time
	rule string
}

const windowDuration = 5 * time.Minute

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	SamplesIngested  int64            `json:"samples_ingested"`
	SamplesRejected  int64            `json:"samples_rejected"`
	SinkFailures     int64            `json:"sink_failures"`
	RuleEvaluations  map[string]int64 `json:"rule_evaluations"`
	AlertsFired      map[string]int64 `json:"alerts_fired"`
	AlertsSuppressed map[string]int64 `json:"alerts_suppressed"`
	WindowSamples    int              `json:"window_samples"`
	WindowSpan       string           `json:"window_span"`
	State            string           `json:"state"`
	LastSampleAt     *time.Time       `json:"last_sample_at,omitempty"`
	LastAlert        string           `json:"last_alert,omitempty"`
	LastAlertAt      *time.Time       `json:"last_alert_at,omitempty"`
	AlertsLast5m     int              `json:"alerts_5m"`
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{
		ruleEvaluations:  make(map[string]int64),
		alertsFired:      make(map[string]int64),
		alertsSuppressed: make(map[string]int64),
		now:              time.Now,
	}
}

// SampleProcessed records one sample passing through the loop.
func (m *Metrics) SampleProcessed(s domain.Sample, windowLen int, span time.Duration, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samplesIngested++
	m.windowLen = windowLen
	m.windowSpan = span
	m.active = active
	m.lastSampleAt = s.At
}

// SampleRejected records a payload the feed could not decode.
func (m *Metrics) SampleRejected(error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samplesRejected++
}

// RuleEvaluated records a rule run.
func (m *Metrics) RuleEvaluated(rule string, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ruleEvaluations[rule]++
}

// AlertFired records an alert that passed the throttle.
func (m *Metrics) AlertFired(id domain.AlertIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertsFired[id.Rule()]++
	now := m.now()
	m.lastAlert = id.String()
	m.lastAlertAt = now
	m.window = append(m.window, windowEntry{ts: now, rule: id.Rule()})
	m.pruneWindow(now)
}

// AlertSuppressed records an alert held back by the throttle.
func (m *Metrics) AlertSuppressed(id domain.AlertIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertsSuppressed[id.Rule()]++
}

// SinkFailed records a failed notification.
func (m *Metrics) SinkFailed(domain.AlertIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinkFailures++
}

func (m *Metrics) pruneWindow(now time.Time) {
	cutoff := now.Add(-windowDuration)
	i := 0
	for i < len(m.window) && m.window[i].ts.Before(cutoff) {
		i++
	}
	m.window = m.window[i:]
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-windowDuration)
	var recent int
	for _, e := range m.window {
		if e.ts.After(cutoff) {
			recent++
		}
	}

	state := "accumulating"
	if m.active {
		state = "active"
	}

	snap := MetricsSnapshot{
		SamplesIngested:  m.samplesIngested,
		SamplesRejected:  m.samplesRejected,
		SinkFailures:     m.sinkFailures,
		RuleEvaluations:  copyCounts(m.ruleEvaluations),
		AlertsFired:      copyCounts(m.alertsFired),
		AlertsSuppressed: copyCounts(m.alertsSuppressed),
		WindowSamples:    m.windowLen,
		WindowSpan:       m.windowSpan.String(),
		State:            state,
		LastAlert:        m.lastAlert,
		AlertsLast5m:     recent,
	}
	if !m.lastSampleAt.IsZero() {
		t := m.lastSampleAt
		snap.LastSampleAt = &t
	}
	if !m.lastAlertAt.IsZero() {
		t := m.lastAlertAt
		snap.LastAlertAt = &t
	}
	return snap
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
