package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetLevel(WARN)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("boom"))

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
	assert.Contains(t, output, "boom")
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)

	logger.Info("snapshot fetched",
		Int("tables", 9),
		Component("warehouse"),
		RequestID("req-1"))

	output := buf.String()
	assert.Contains(t, output, "[INFO] snapshot fetched")
	assert.Contains(t, output, "component=warehouse")
	assert.Contains(t, output, "request_id=req-1")
	assert.Contains(t, output, "tables=9")
}

func TestLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetOutput(&buf)
	logger.SetFormat("json")

	logger.Info("model trained", String("key", "review_model"), Float("duration_ms", 12.5))

	var entry LogEntry
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))

	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "model trained", entry.Message)
	assert.Equal(t, "orderlens", entry.Service)
	assert.Equal(t, "review_model", entry.Fields["key"])
	assert.Equal(t, 12.5, entry.Fields["duration_ms"])
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LoggingConfig{Level: "debug", Format: "json"}))

	logger := GetLogger()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer func() {
		logger.SetLevel(INFO)
		logger.SetFormat("text")
	}()

	logger.Debug("visible at debug level")
	assert.Contains(t, buf.String(), "visible at debug level")
}
