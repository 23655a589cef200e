package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestTimerLogsCompletion(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	var buf bytes.Buffer
	SetupWriter(&buf, "debug", "json")

	done := Timer(WithComponent("test"), "precurate", "rows", 10)
	done()

	out := buf.String()
	assert.Contains(t, out, `"msg":"starting precurate"`)
	assert.Contains(t, out, `"msg":"completed precurate"`)
	assert.Contains(t, out, `"component":"test"`)
	assert.Contains(t, out, `"rows":10`)
	assert.Contains(t, out, `"duration"`)
}
