// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
)

// New returns a logger writing to stderr. format is "json" or "text";
// level is one of debug, info, warn, error (unknown values mean info).
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// CronLogger adapts a slog.Logger to cron.Logger. cron's routine info
// messages (schedule, wake, run) are logged at debug.
type CronLogger struct {
	l *slog.Logger
}

// NewCronLogger wraps l.
func NewCronLogger(l *slog.Logger) CronLogger {
	return CronLogger{l: l.With("component", "cron")}
}

func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

var _ cron.Logger = CronLogger{}
