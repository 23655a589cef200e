// Package logging configures the process-wide slog logger and provides the
// small helpers every pipeline stage uses.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Setup installs the default logger. format is "json" or "text".
func Setup(level string, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns the default logger tagged with a component name.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// Timer logs the start of operation at debug level and returns a func that
// logs its completion with the elapsed time.
func Timer(logger *slog.Logger, operation string, args ...any) func() {
	start := time.Now()
	logger.Debug("starting "+operation, args...)
	return func() {
		logger.Info("completed "+operation, append(args, "duration", time.Since(start).Round(time.Millisecond))...)
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
