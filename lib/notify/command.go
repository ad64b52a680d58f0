// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout bounds a notification command.
const DefaultCommandTimeout = 15 * time.Second

// Command runs an external program per notification. Each argument
// may contain the placeholders {title}, {message} and {status}
// ("success" or "failure"); they are substituted textually, never
// through a shell.
//
//	notify:
//	  command: ["terminal-notifier", "-title", "{title}", "-message", "{message}"]
type Command struct {
	Argv    []string
	Title   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Expand returns the argument vector with placeholders substituted.
func (c Command) Expand(success bool, details string) []string {
	status := "failure"
	if success {
		status = "success"
	}
	replacer := strings.NewReplacer(
		"{title}", c.Title,
		"{message}", details,
		"{status}", status,
	)
	argv := make([]string, len(c.Argv))
	for index, arg := range c.Argv {
		argv[index] = replacer.Replace(arg)
	}
	return argv
}

// Notify runs the command and waits for it. Failures are logged.
func (c Command) Notify(success bool, details string) {
	if len(c.Argv) == 0 {
		return
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	argv := c.Expand(success, details)
	output, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	if err != nil && c.Logger != nil {
		c.Logger.Warn("notification command failed",
			"command", argv[0],
			"error", err,
			"output", strings.TrimSpace(string(output)),
		)
	}
}
