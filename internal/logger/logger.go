// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
)

// Init installs a text or JSON handler writing to w as the default logger
// and returns it.
func Init(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	if format != "json" && format != "text" && format != "" {
		l.Warn("Unsupported log format, defaulting to text", "format", format)
	}
	return l
}

// Discard returns a logger that drops everything, for the terminal UI when no
// log file is given.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
