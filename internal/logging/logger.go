// internal/logging/logger.go
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger
func NewLogger(format string, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
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

// WithContextName returns a logger with the context name attached
func WithContextName(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("context", name)
}

// WithTrigger returns a logger with the trigger name attached
func WithTrigger(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("trigger", name)
}

// WithAction returns a logger with the action name attached
func WithAction(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("action", name)
}

// Discard returns a logger that drops everything. Used when no logger is
// configured.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
