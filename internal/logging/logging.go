// Package logging wraps log/slog with a per-record subsystem attribute.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Subsystem tags every record with the component that emitted it.
type Subsystem string

const (
	Dataset    Subsystem = "dataset"
	Training   Subsystem = "training"
	Render     Subsystem = "render"
	Controller Subsystem = "controller"
	TUI        Subsystem = "tui"
	Server     Subsystem = "server"
	Config     Subsystem = "config"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

// Setup installs the default logger writing to w.
func Setup(w io.Writer, level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	switch strings.ToLower(format) {
	case "", FormatText:
		h = slog.NewTextHandler(w, opts)
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("logging: unknown format %q", format)
	}

	slog.SetDefault(slog.New(h))
	return nil
}

// Discard silences the default logger, e.g. while a full-screen UI owns
// the terminal.
func Discard() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(100)})))
}

func Warn(msg string, subsystem Subsystem, keyvals ...any) {
	slog.Warn(msg, withSubsystem(subsystem, keyvals)...)
}

func Info(msg string, subsystem Subsystem, keyvals ...any) {
	slog.Info(msg, withSubsystem(subsystem, keyvals)...)
}

func Error(msg string, subsystem Subsystem, keyvals ...any) {
	slog.Error(msg, withSubsystem(subsystem, keyvals)...)
}

func Debug(msg string, subsystem Subsystem, keyvals ...any) {
	slog.Debug(msg, withSubsystem(subsystem, keyvals)...)
}

func withSubsystem(subsystem Subsystem, keyvals []any) []any {
	return append([]any{"subsystem", subsystem}, keyvals...)
}
