package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogHandler(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buffer bytes.Buffer
		logger := slog.New(newLogHandler(&buffer, HandlerTypeJSON, LogLevelInfo))
		logger.Info("Inserted key.", "key", "a")

		record := make(map[string]any)
		require.NoError(t, json.Unmarshal(buffer.Bytes(), &record))
		assert.Equal(t, "Inserted key.", record["msg"])
		assert.Equal(t, "a", record["key"])
	})
	t.Run("text", func(t *testing.T) {
		var buffer bytes.Buffer
		logger := slog.New(newLogHandler(&buffer, HandlerTypeText, LogLevelInfo))
		logger.Info("Inserted key.", "key", "a")
		assert.Contains(t, buffer.String(), `msg="Inserted key."`)
		assert.Contains(t, buffer.String(), "key=a")
	})
	t.Run("level_filtering", func(t *testing.T) {
		var buffer bytes.Buffer
		handler := newLogHandler(&buffer, HandlerTypeJSON, LogLevelWarn)
		assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
		assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
	})
	t.Run("unsupported_level_defaults_to_info", func(t *testing.T) {
		before := GetMetricValue("log", "unsupported_log_level")
		handler := newLogHandler(&bytes.Buffer{}, HandlerTypeJSON, "verbose")
		assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
		assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
		assert.Equal(t, before+1, GetMetricValue("log", "unsupported_log_level"))
	})
}
