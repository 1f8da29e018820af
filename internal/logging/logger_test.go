package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, "json", &buf)

	logger.Info("event forwarded", SourceApp("demo"), Status(200))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "event forwarded", entry["msg"])
	assert.Equal(t, "demo", entry[FieldSourceApp])
	assert.Equal(t, float64(200), entry[FieldStatus])
}

func TestNew_TextFormatIsDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, "", &buf)

	logger.Warn("transcript skipped", Path("/tmp/x.jsonl"))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "path=/tmp/x.jsonl")
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelWarn, "text", &buf)

	logger.Info("hidden")
	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestWith_AddsAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := New(slog.LevelInfo, "text", &buf).With(EventType("PreToolUse"))

	logger.Info("hello")
	assert.Contains(t, buf.String(), "hook_event_type=PreToolUse")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.NotNil(t, logger)
	logger.Error("goes nowhere")
}

func TestFieldHelpers(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want string
	}{
		{"SourceApp", SourceApp("app"), FieldSourceApp, "app"},
		{"EventType", EventType("Stop"), FieldEventType, "Stop"},
		{"SessionID", SessionID("abc"), FieldSessionID, "abc"},
		{"Path", Path("/p"), FieldPath, "/p"},
		{"URL", URL("http://x"), FieldURL, "http://x"},
		{"Sink", Sink("http"), FieldSink, "http"},
		{"Error", Error(errors.New("boom")), FieldError, "boom"},
		{"NilError", Error(nil), FieldError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.String())
		})
	}
}

func TestDuration(t *testing.T) {
	attr := Duration(1500 * time.Millisecond)
	assert.Equal(t, FieldDuration, attr.Key)
	assert.Equal(t, int64(1500), attr.Value.Int64())
}
