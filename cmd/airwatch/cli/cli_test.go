package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubo-market/airwatch/internal/config"
)

func setTestEnv(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"AIRWATCH_SIGNALS":    "VOC-TGS,PM25,PM10",
		"AIRWATCH_SINKS":      "log",
		"AIRWATCH_FEED":       "stdin",
		"AIRWATCH_TIME_FIELD": "at",
		"WINDOW_MAX_AGE":      "5m",
		"WINDOW_MAX_SAMPLES":  "0",
		"ALERT_COOLDOWN":      "1m",
		"ALERT_WALL_CLOCK":    "false",
		"LOG_LEVEL":           "info",
		"LOG_FORMAT":          "text",
	} {
		t.Setenv(k, v)
	}
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := New()
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSimulate_StdoutJSONLines(t *testing.T) {
	setTestEnv(t)

	out, _, err := execute(t, nil, "simulate", "--scenario", "flat", "--count", "3", "--start", "2021-05-15T14:34:00Z")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.JSONEq(t, `{"at":"2021-05-15T14:34:00Z","VOC-TGS":10,"PM25":10,"PM10":10}`, lines[0])
	assert.JSONEq(t, `{"at":"2021-05-15T14:34:02Z","VOC-TGS":10,"PM25":10,"PM10":10}`, lines[2])
}

func TestSimulate_SQL(t *testing.T) {
	setTestEnv(t)

	out, _, err := execute(t, nil, "simulate", "--scenario", "spike", "--count", "5", "--output", "sql")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "BEGIN;"))
	assert.Equal(t, 5, strings.Count(out, "INSERT INTO samples"))
}

func TestSimulateThenReplay_ContinuousRise(t *testing.T) {
	setTestEnv(t)

	recorded, _, err := execute(t, nil, "simulate", "--scenario", "continuous-rise", "--count", "70", "--start", "2021-05-15T14:34:00Z")
	require.NoError(t, err)

	input := recorded + "not json\n\n"
	out, logs, err := execute(t, strings.NewReader(input), "replay", "-")
	require.NoError(t, err)

	assert.Equal(t, "processed 70 samples, rejected 1, fired 1 alerts, suppressed 7\n", out)
	assert.Contains(t, logs, "continue_rise-[PM10]")
	assert.NotContains(t, logs, "sudden_rise-[")
}

func TestReplay_FlatSeriesIsQuiet(t *testing.T) {
	setTestEnv(t)

	recorded, _, err := execute(t, nil, "simulate", "--scenario", "flat", "--count", "120")
	require.NoError(t, err)

	out, _, err := execute(t, strings.NewReader(recorded), "replay")
	require.NoError(t, err)
	assert.Equal(t, "processed 120 samples, rejected 0, fired 0 alerts, suppressed 0\n", out)
}

func TestInvalidConfiguration(t *testing.T) {
	setTestEnv(t)
	t.Setenv("AIRWATCH_SINKS", "pager")

	_, _, err := execute(t, strings.NewReader(""), "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown sink")
}

func TestSimulate_UnknownScenario(t *testing.T) {
	setTestEnv(t)

	_, _, err := execute(t, nil, "simulate", "--scenario", "earthquake")
	require.Error(t, err)
}

func TestRun_StdinFeedEndsCleanly(t *testing.T) {
	setTestEnv(t)

	recorded, _, err := execute(t, nil, "simulate", "--scenario", "flat", "--count", "5")
	require.NoError(t, err)

	_, _, err = execute(t, strings.NewReader(recorded), "run", "--no-http")
	require.NoError(t, err)
}

func TestRun_PortInUseFails(t *testing.T) {
	setTestEnv(t)
	busy, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer busy.Close()
	t.Setenv("PORT", strconv.Itoa(busy.Addr().(*net.TCPAddr).Port))

	_, _, err = execute(t, strings.NewReader(""), "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen on port")
}

func TestDecoder_PostgresFeedUsesTriggerTimeField(t *testing.T) {
	setTestEnv(t)
	t.Setenv("AIRWATCH_TIME_FIELD", "ts")
	a := newApp(config.Load(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	triggerPayload := []byte(`{"at":"2021-05-15T14:34:00+00:00","VOC-TGS":474,"PM25":1.9,"PM10":2.7}`)
	_, ok := a.decoder("postgres").Decode(triggerPayload)
	assert.True(t, ok, "postgres notifications carry the timestamp under \"at\"")

	_, ok = a.decoder("mqtt").Decode(triggerPayload)
	assert.False(t, ok, "other feeds follow AIRWATCH_TIME_FIELD")
	_, ok = a.decoder("mqtt").Decode([]byte(`{"ts":"2021-05-15T14:34:00Z","VOC-TGS":474,"PM25":1.9,"PM10":2.7}`))
	assert.True(t, ok)
}
