package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertIdentity_OrderIndependent(t *testing.T) {
	a := NewAlertIdentity("sudden_rise", []Signal{"PM25", "VOC-TGS", "PM10"})
	b := NewAlertIdentity("sudden_rise", []Signal{"PM10", "PM25", "VOC-TGS"})

	require.Equal(t, a, b)
	assert.Equal(t, "sudden_rise-[PM10,PM25,VOC-TGS]", a.String())
	assert.Equal(t, []Signal{"PM10", "PM25", "VOC-TGS"}, a.Signals())
}

func TestAlertIdentity_DistinctRulesDiffer(t *testing.T) {
	a := NewAlertIdentity("sudden_rise", []Signal{"PM10"})
	b := NewAlertIdentity("continue_rise", []Signal{"PM10"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "continue_rise-[PM10]", b.String())

	seen := map[AlertIdentity]bool{a: true}
	assert.False(t, seen[b])
}

func TestAlertIdentity_DoesNotAliasInput(t *testing.T) {
	sigs := []Signal{"PM25", "PM10"}
	id := NewAlertIdentity("continue_rise", sigs)
	sigs[0] = "VOC-TGS"
	assert.Equal(t, "continue_rise-[PM10,PM25]", id.String())
}

func TestSample_Immutable(t *testing.T) {
	values := map[Signal]float64{"PM10": 2.7}
	s := NewSample(time.Unix(0, 0), values)
	values["PM10"] = 99

	v, ok := s.Value("PM10")
	require.True(t, ok)
	assert.Equal(t, 2.7, v)

	cp := s.Values()
	cp["PM10"] = 42
	v, _ = s.Value("PM10")
	assert.Equal(t, 2.7, v)
}

func TestDecodeSample(t *testing.T) {
	signals := DefaultSignals

	tests := []struct {
		name    string
		payload string
		wantAt  time.Time
		wantErr error
	}{
		{
			name:    "rfc3339",
			payload: `{"_id":"609fdbd8f025f6b02d71ba71","at":"2021-05-15T14:34:00.305Z","VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantAt:  time.Date(2021, 5, 15, 14, 34, 0, 305000000, time.UTC),
		},
		{
			name:    "zoneless iso8601",
			payload: `{"at":"2021-05-15T14:34:00.305","VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantAt:  time.Date(2021, 5, 15, 14, 34, 0, 305000000, time.UTC),
		},
		{
			name:    "extended json date",
			payload: `{"at":{"$date":"2021-05-15T14:34:00.305Z"},"VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantAt:  time.Date(2021, 5, 15, 14, 34, 0, 305000000, time.UTC),
		},
		{
			name:    "extended json millis",
			payload: `{"at":{"$date":{"$numberLong":"1621089240305"}},"VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantAt:  time.UnixMilli(1621089240305).UTC(),
		},
		{
			name:    "unix seconds",
			payload: `{"at":1621089240,"VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantAt:  time.Unix(1621089240, 0).UTC(),
		},
		{
			name:    "missing signal",
			payload: `{"at":"2021-05-15T14:34:00Z","VOC-TGS":474,"PM25":1.9}`,
			wantErr: ErrMissingSignal,
		},
		{
			name:    "non numeric signal",
			payload: `{"at":"2021-05-15T14:34:00Z","VOC-TGS":474,"PM25":"high","PM10":2.7}`,
			wantErr: ErrMissingSignal,
		},
		{
			name:    "null signal",
			payload: `{"at":"2021-05-15T14:34:00Z","VOC-TGS":474,"PM25":1.9,"PM10":null}`,
			wantErr: ErrMissingSignal,
		},
		{
			name:    "missing timestamp",
			payload: `{"VOC-TGS":474,"PM25":1.9,"PM10":2.7}`,
			wantErr: ErrMissingTimestamp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeSample([]byte(tt.payload), DefaultTimeField, signals)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantAt.Equal(s.At), "got %v", s.At)
			v, ok := s.Value("PM10")
			require.True(t, ok)
			assert.Equal(t, 2.7, v)
		})
	}
}

func TestDecodeSample_InvalidJSON(t *testing.T) {
	_, err := DecodeSample([]byte("not json"), DefaultTimeField, DefaultSignals)
	require.Error(t, err)
}

func TestSample_EncodeDecodes(t *testing.T) {
	at := time.Date(2021, 5, 15, 14, 34, 3, 316000000, time.UTC)
	s := NewSample(at, map[Signal]float64{"VOC-TGS": 473, "PM25": 2.1, "PM10": 3.0})

	data, err := s.Encode(DefaultTimeField)
	require.NoError(t, err)

	back, err := DecodeSample(data, DefaultTimeField, DefaultSignals)
	require.NoError(t, err)
	assert.True(t, at.Equal(back.At))
	assert.Equal(t, s.Values(), back.Values())
}

func TestAlert_JSON(t *testing.T) {
	id := NewAlertIdentity("continue_rise", []Signal{"PM10"})
	latest := NewSample(time.Now(), map[Signal]float64{"PM10": 3.0, "PM25": 2.1})
	a := NewAlert(id, time.Date(2021, 5, 15, 22, 34, 2, 0, time.UTC), latest)

	assert.Equal(t, map[Signal]float64{"PM10": 3.0}, a.Readings)

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "continue_rise-[PM10]", got["identity"])
	assert.Equal(t, "continue_rise", got["rule"])
	assert.Equal(t, a.ID.String(), got["id"])
	assert.Equal(t, []any{"PM10"}, got["signals"])
}
