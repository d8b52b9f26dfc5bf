package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeLines parses every JSON log line written to buf.
func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry), "log line must be valid JSON: %s", scanner.Text())
		entries = append(entries, entry)
	}
	return entries
}

func TestModuleLoggerWritesStructuredFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewTestLogger(buf, LogLevelDebug).Module("catalog")

	log.Info("List loaded",
		String("resource", "Aves"),
		Int("count", 3),
		Bool("cached", false),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("boom")))

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "List loaded", e["msg"])
	assert.Equal(t, "INFO", e["level"])
	assert.Equal(t, "test.catalog", e["module"])
	assert.Equal(t, "Aves", e["resource"])
	assert.InDelta(t, 3, e["count"], 0)
	assert.Equal(t, false, e["cached"])
	assert.Equal(t, "1.5s", e["elapsed"])
	assert.Equal(t, "boom", e["error"])
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewTestLogger(buf, LogLevelWarn)

	log.Trace("trace")
	log.Debug("debug")
	log.Info("info")
	log.Warn("warn")
	log.Log(LogLevelError, "error")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestTraceLevelEncoding(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	NewTestLogger(buf, LogLevelTrace).Trace("very detailed")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "TRACE", entries[0]["level"])
}

func TestWithDoesNotLeakIntoParent(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	parent := NewTestLogger(buf, LogLevelInfo)
	child := parent.With(String("request_id", "req-1"))

	child.Info("child")
	parent.Info("parent")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.NotContains(t, entries[1], "request_id")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewTestLogger(buf, LogLevelInfo)

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("traced")
	log.WithContext(context.Background()).Info("untraced")

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "abc-123", entries[0]["trace_id"])
	assert.NotContains(t, entries[1], "trace_id")
}

func TestModuleLevelsResolveByPrefix(t *testing.T) {
	t.Parallel()

	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "warn",
		Console:      &ConsoleOutput{Enabled: false},
		ModuleLevels: map[string]string{"catalog": "debug"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	assert.Equal(t, parseLevel("debug"), cl.levelFor("catalog.birds"))
	assert.Equal(t, parseLevel("warn"), cl.levelFor("web"))
}

func TestFileOutputWritesJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "info",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path},
	})
	require.NoError(t, err)

	cl.Module("web").Info("Server started", Int("port", 8080))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, entries, 1)
	assert.Equal(t, "web", entries[0]["module"])
	assert.Contains(t, entries[0], "time")
}

func TestNewCentralLoggerRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)

	_, err = NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestNopLoggerIsSilent(t *testing.T) {
	t.Parallel()

	log := NewNopLogger()
	assert.NotPanics(t, func() {
		log.Module("x").With(String("k", "v")).Error("ignored")
		_ = log.Flush()
	})
}
