// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// LogLevel is the level of loggers built by the root command. Loading
// the configuration sets it from log.level.
var LogLevel = new(slog.LevelVar)

// NewCommandLogger creates the logger for command diagnostics. A
// terminal on stderr gets slog's text format; a pipe or file gets JSON
// lines, the same format the daemon writes.
func NewCommandLogger(level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(os.Stderr, level))
}

// NewHandler returns the text or JSON handler for w depending on
// whether it is a terminal.
func NewHandler(w io.Writer, level slog.Leveler) slog.Handler {
	options := &slog.HandlerOptions{Level: level}
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.NewTextHandler(w, options)
	}
	return slog.NewJSONHandler(w, options)
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}

// IsTerminal reports whether file is attached to a terminal.
func IsTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}
