// Package logging configures the global slog logger for clipstash binaries.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// Options selects the log output format and level.
type Options struct {
	// Format is "auto", "text" or "json". Auto picks text on a terminal.
	Format string
	// Level is parsed by slog.Level.UnmarshalText; empty means info.
	Level string
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ParseLevel converts a string to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Setup configures the global slog logger. Call once after flag/viper
// parsing.
func Setup(opts Options) {
	w := os.Stderr
	level := ParseLevel(opts.Level)

	useTint := false
	switch strings.ToLower(opts.Format) {
	case "text", "tint", "human":
		useTint = true
	case "json":
	default:
		useTint = IsTTY(w)
	}

	var h slog.Handler
	if useTint {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(h))
}
