// Package logger provides structured logging for the game server.
// Every player action and save should be traceable through this.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configures a Logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// Logger provides structured logging with context.
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a text logger at info level on stdout.
func NewLogger() *Logger {
	return New(Options{})
}

// New creates a logger from options.
func New(opts Options) *Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return &Logger{slog: slog.New(handler).With("component", "studio")}
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return New(Options{Output: io.Discard, Level: "error"})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Debug logs verbose diagnostics.
func (l *Logger) Debug(msg string, args ...any) {
	l.slog.Debug(msg, args...)
}

// Info logs informational messages.
func (l *Logger) Info(msg string, args ...any) {
	l.slog.Info(msg, args...)
}

// Warn logs warning messages.
func (l *Logger) Warn(msg string, args ...any) {
	l.slog.Warn(msg, args...)
}

// Error logs error messages.
func (l *Logger) Error(msg string, args ...any) {
	l.slog.Error(msg, args...)
}

// Event logs a specific game event.
func (l *Logger) Event(eventType string, actorID string, details string) {
	l.slog.Info("event", "type", eventType, "actor", actorID, "details", details)
}
