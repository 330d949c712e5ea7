// Package logging configures structured logging for the server.
//
// Usage:
//
//	logging.Setup(cfg.LogLevel, cfg.LogFormat)  // colored text or JSON
//	logging.SetupWithLevel(slog.LevelDebug)     // colored text at an explicit level
//
// Levels: debug, info, warn, error (default: info). Formats: text, json.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Setup installs the default logger for the given level and format.
func Setup(level, format string) {
	slog.SetDefault(New(os.Stderr, ParseLevel(level), format))
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) {
	slog.SetDefault(New(os.Stderr, level, "text"))
}

// New returns a logger writing to w. format "json" selects JSON output for
// log collectors; anything else is colored text.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
		NoColor:    !isTerminal(w),
	}))
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
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

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
