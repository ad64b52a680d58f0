// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the complete brewkeep command tree.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/daemon"
	historycmd "github.com/brewkeep/brewkeep/cmd/brewkeep/history"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/job"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/remote"
	"github.com/brewkeep/brewkeep/lib/version"
)

// Root builds and returns the brewkeep command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "brewkeep",
		Description: `brewkeep: interactive Homebrew maintenance.

Runs brew update, upgrade, cleanup and friends as one pipeline, streams
their output, answers password prompts from the terminal, and archives
every job. Jobs run in this process by default; with --remote they run
in the background daemon, which also runs them on a schedule.`,
		Subcommands: []*cli.Command{
			job.RunCommand(),
			job.DoctorCommand(),
			job.MissingCommand(),
			job.OutdatedCommand(),
			job.ServicesCommand(),
			job.SoftwareUpdateCommand(),
			job.DevUpdateCommand(),
			daemon.Command(),
			remote.StatusCommand(),
			remote.TailCommand(),
			remote.AttachCommand(),
			remote.InputCommand(),
			remote.CancelCommand(),
			historycmd.Command(),
			historycmd.LogsCommand(),
			configCommand(),
			checkCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					if len(args) > 0 {
						return cli.Validation("version takes no arguments")
					}
					fmt.Printf("brewkeep %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "Update everything, answering prompts here", Command: "brewkeep run"},
			{Description: "Run in the daemon and watch it in the full-screen view", Command: "brewkeep run --remote --tui"},
			{Description: "Check the installation", Command: "brewkeep check --fix"},
		},
		Logger: func() *slog.Logger { return cli.NewCommandLogger(cli.LogLevel) },
	}
}
