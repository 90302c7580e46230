package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Debug("debug")
		l.Info("info", slog.String("k", "v"))
		assert.Nil(t, l.With("k", "v"))
		assert.NoError(t, l.Close())
	})
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	l := New("debug", dir)
	require.NotEmpty(t, l.LogFile)

	l.With("request_id", "abc").Info("flight added", slog.String("callsign", "F1"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.LogFile)
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		if rec["msg"] == "flight added" {
			found = true
			assert.Equal(t, "F1", rec["callsign"])
			assert.Equal(t, "abc", rec["request_id"])
			assert.Equal(t, "INFO", rec["level"])
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
