package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/relvacode/iso8601"
)

// Signal names one monitored quantity, e.g. a particulate concentration.
type Signal string

// DefaultSignals are the three channels reported by the air-quality sensor board.
var DefaultSignals = []Signal{"VOC-TGS", "PM25", "PM10"}

// DefaultTimeField is the payload field carrying the sample timestamp.
const DefaultTimeField = "at"

// Sample is one timestamped reading across all monitored signals.
// It is immutable once constructed; accessors return copies.
type Sample struct {
	At     time.Time
	values map[Signal]float64
}

// NewSample builds a Sample, copying values.
func NewSample(at time.Time, values map[Signal]float64) Sample {
	cp := make(map[Signal]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return Sample{At: at, values: cp}
}

// Value returns the reading for sig and whether it is present.
func (s Sample) Value(sig Signal) (float64, bool) {
	v, ok := s.values[sig]
	return v, ok
}

// Values returns a copy of all readings.
func (s Sample) Values() map[Signal]float64 {
	cp := make(map[Signal]float64, len(s.values))
	for k, v := range s.values {
		cp[k] = v
	}
	return cp
}

// Encode renders the sample as a flat JSON object with the timestamp under timeField.
func (s Sample) Encode(timeField string) ([]byte, error) {
	doc := make(map[string]any, len(s.values)+1)
	for k, v := range s.values {
		doc[string(k)] = v
	}
	doc[timeField] = s.At.UTC().Format(time.RFC3339Nano)
	return json.Marshal(doc)
}

// DecodeSample parses a flat JSON document into a Sample. The timestamp is read
// from timeField and every signal must be present as a number; other fields are ignored.
func DecodeSample(data []byte, timeField string, signals []Signal) (Sample, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Sample{}, fmt.Errorf("decode sample: %w", err)
	}

	rawAt, ok := doc[timeField]
	if !ok {
		return Sample{}, fmt.Errorf("%w: field %q", ErrMissingTimestamp, timeField)
	}
	at, err := parseTimeValue(rawAt)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %v", ErrMissingTimestamp, err)
	}

	values := make(map[Signal]float64, len(signals))
	for _, sig := range signals {
		raw, ok := doc[string(sig)]
		if !ok {
			return Sample{}, fmt.Errorf("%w: %s", ErrMissingSignal, sig)
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return Sample{}, fmt.Errorf("%w: %s is not numeric", ErrMissingSignal, sig)
		}
		if v == nil {
			return Sample{}, fmt.Errorf("%w: %s is null", ErrMissingSignal, sig)
		}
		values[sig] = *v
	}
	return Sample{At: at, values: values}, nil
}

// ParseTimestamp accepts RFC 3339 and ISO 8601 timestamps, including ones without
// a zone designator (interpreted as UTC), as written by most document stores.
func ParseTimestamp(s string) (time.Time, error) {
	return iso8601.ParseString(s)
}

// parseTimeValue handles a string timestamp, unix seconds, or an extended-JSON {"$date": ...} wrapper.
func parseTimeValue(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseTimestamp(s)
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*float64(time.Second))).UTC(), nil
	}

	var wrapped struct {
		Date json.RawMessage `json:"$date"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Date) > 0 {
		var millis struct {
			NumberLong string `json:"$numberLong"`
		}
		if err := json.Unmarshal(wrapped.Date, &millis); err == nil && millis.NumberLong != "" {
			var ms int64
			if _, err := fmt.Sscan(millis.NumberLong, &ms); err != nil {
				return time.Time{}, err
			}
			return time.UnixMilli(ms).UTC(), nil
		}
		var ms int64
		if err := json.Unmarshal(wrapped.Date, &ms); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		return parseTimeValue(wrapped.Date)
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %s", string(raw))
}

// AlertIdentity is the deduplication key of an alert: a rule name plus the
// sorted set of signals it triggered on. It is comparable and safe as a map key.
type AlertIdentity struct {
	rule    string
	signals string
}

// NewAlertIdentity builds the identity for rule over signals. Order of signals does not matter.
func NewAlertIdentity(rule string, signals []Signal) AlertIdentity {
	names := make([]string, len(signals))
	for i, s := range signals {
		names[i] = string(s)
	}
	sort.Strings(names)
	return AlertIdentity{rule: rule, signals: strings.Join(names, ",")}
}

// Rule returns the rule name.
func (id AlertIdentity) Rule() string { return id.rule }

// Signals returns the sorted signal set.
func (id AlertIdentity) Signals() []Signal {
	if id.signals == "" {
		return nil
	}
	parts := strings.Split(id.signals, ",")
	out := make([]Signal, len(parts))
	for i, p := range parts {
		out[i] = Signal(p)
	}
	return out
}

// String renders the canonical form, e.g. "continue_rise-[PM10]".
func (id AlertIdentity) String() string {
	return id.rule + "-[" + id.signals + "]"
}

// Alert is one fired notification.
type Alert struct {
	ID       uuid.UUID
	Identity AlertIdentity
	FiredAt  time.Time
	Readings map[Signal]float64
}

// NewAlert creates an alert for identity, capturing the latest readings of its signals.
func NewAlert(identity AlertIdentity, firedAt time.Time, latest Sample) Alert {
	readings := make(map[Signal]float64)
	for _, sig := range identity.Signals() {
		if v, ok := latest.Value(sig); ok {
			readings[sig] = v
		}
	}
	return Alert{
		ID:       uuid.New(),
		Identity: identity,
		FiredAt:  firedAt,
		Readings: readings,
	}
}

type alertJSON struct {
	ID       string             `json:"id"`
	Identity string             `json:"identity"`
	Rule     string             `json:"rule"`
	Signals  []Signal           `json:"signals"`
	FiredAt  time.Time          `json:"fired_at"`
	Readings map[Signal]float64 `json:"readings,omitempty"`
}

// MarshalJSON renders the alert for sinks that publish it.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(alertJSON{
		ID:       a.ID.String(),
		Identity: a.Identity.String(),
		Rule:     a.Identity.Rule(),
		Signals:  a.Identity.Signals(),
		FiredAt:  a.FiredAt,
		Readings: a.Readings,
	})
}

// AlertRecord is a fired alert as kept in the alert log.
type AlertRecord struct {
	ID       string    `json:"id"`
	Identity string    `json:"identity"`
	Rule     string    `json:"rule"`
	Signals  []string  `json:"signals"`
	FiredAt  time.Time `json:"fired_at"`
}

// AlertReport summarizes fired alerts over a time range.
type AlertReport struct {
	TotalAlerts int            `json:"total_alerts"`
	ByRule      map[string]int `json:"by_rule"`
	ByIdentity  []IdentityStat `json:"by_identity"`
	TimeRange   TimeRange      `json:"time_range"`
}

// IdentityStat is the fire count of one alert identity.
type IdentityStat struct {
	Identity  string    `json:"identity"`
	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// TimeRange specifies the window of a report.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
