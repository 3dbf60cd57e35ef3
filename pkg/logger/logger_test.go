package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var entry map[string]any
		require.NoError(t, dec.Decode(&entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewWritesJSONEntries(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, zapcore.InfoLevel, zap.String("service", "test"))

	log.Debug("dropped")
	log.Info("Vote recorded", zap.Int64("idea_id", 7))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1, "debug is below the configured level")
	entry := entries[0]
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "Vote recorded", entry["msg"])
	assert.Equal(t, "test", entry["service"])
	assert.EqualValues(t, 7, entry["idea_id"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "caller")
}

func TestSetRestoresPreviousLogger(t *testing.T) {
	before := Log

	var buf bytes.Buffer
	restore := Set(New(&buf, zapcore.DebugLevel))
	Sugar.Warnf("Idea %d not found", 3)
	restore()

	assert.Same(t, before, Log)
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "Idea 3 not found", entries[0]["msg"])
}
