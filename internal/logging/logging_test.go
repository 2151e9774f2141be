package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Debug("hidden")
	log.Info("sample accepted", "window", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sample accepted", line["msg"])
	assert.Equal(t, float64(3), line["window"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "text")

	log.Debug("window trimmed", "evicted", 2)

	out := buf.String()
	assert.Contains(t, out, "window trimmed")
	assert.Contains(t, out, "evicted=2")
	assert.NotContains(t, out, "\x1b[", "buffers must not get ANSI colors")
}

func TestNew_TextToFileHasNoColor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	f, err := os.Create(path)
	require.NoError(t, err)

	log := New(f, "info", "text")
	log.Warn("alert fired", "identity", "continue_rise-[PM10]")
	require.NoError(t, f.Close())

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "alert fired")
	assert.NotContains(t, string(out), "\x1b[", "redirected output must not get ANSI colors")
}
