// Package telemetry sets up the harness's own logging, metrics and tracing.
// None of it runs inside a measured loop.
package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Verbosity levels accepted on the command line.
const (
	VerbositySilent = "silent"
	VerbosityNormal = "normal"
	VerbosityExtra  = "extra"
)

// ParseVerbosity maps a verbosity name, or a slog level name, to a level.
func ParseVerbosity(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", VerbosityNormal:
		return slog.LevelInfo, nil
	case VerbositySilent:
		return slog.LevelError, nil
	case VerbosityExtra:
		return slog.LevelDebug, nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown verbosity %q: want %s, %s or %s",
			s, VerbositySilent, VerbosityNormal, VerbosityExtra)
	}

	return level, nil
}

// NewLogger returns a text or JSON logger writing to w.
func NewLogger(w io.Writer, level slog.Level, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
