package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Formats lists the accepted log formats.
var Formats = []string{"text", "json"}

// NewLoggerWithWriter creates a configured slog.Logger writing to w, which
// is normally stderr; stdout belongs to the report and the monitored
// command.
//
// level: slog level (DEBUG, INFO, WARN, ERROR)
// format: "text" (human-readable, no timestamp) or "json" (structured)
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		opts.ReplaceAttr = dropTime
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("app", "peak-mem")
}

func dropTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	l, err := ValidateLevel(s)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ValidateLevel is ParseLevel that reports unrecognized values.
func ValidateLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

// ValidateFormat reports whether format is one of Formats.
func ValidateFormat(format string) error {
	for _, f := range Formats {
		if strings.EqualFold(format, f) {
			return nil
		}
	}
	return fmt.Errorf("unknown log format %q (want %s)", format, strings.Join(Formats, " or "))
}
