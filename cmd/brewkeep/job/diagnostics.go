// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// simpleCommand builds a job command that takes no arguments and runs
// one request kind.
func simpleCommand(name, summary, description string, kind pipeline.Kind) *cli.Command {
	var params jobParams

	return &cli.Command{
		Name:        name,
		Summary:     summary,
		Description: description,
		Params:      func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("%s takes no arguments, got %q", name, args)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: kind, Preferences: cfg.Preferences},
			}, logger)
			return params.report(result, err)
		},
	}
}

// DoctorCommand returns the "doctor" command.
func DoctorCommand() *cli.Command {
	return simpleCommand("doctor", "Run brew doctor and summarize its warnings",
		`Run "brew doctor". The summary lists each warning and error it reported;
the command fails unless Homebrew says the system is ready to brew.`,
		pipeline.KindDoctor)
}

// SoftwareUpdateCommand returns the "software-update" command.
func SoftwareUpdateCommand() *cli.Command {
	return simpleCommand("software-update", "Install macOS software updates",
		`Run "softwareupdate --install --all". It usually asks for an administrator
password, which is read from the terminal and forwarded.`,
		pipeline.KindSoftwareUpdate)
}

// DevUpdateCommand returns the "dev-update" command.
func DevUpdateCommand() *cli.Command {
	return simpleCommand("dev-update", "Update global npm and pip packages",
		`Update globally installed developer tool packages with npm and pip3.
Tools that are not installed are reported and skipped; their failures
never fail the job.`,
		pipeline.KindDevUpdate)
}

type missingParams struct {
	jobParams
	Reinstall bool `flag:"reinstall" desc:"reinstall the packages that lack dependencies"`
}

// MissingCommand returns the "missing" command.
func MissingCommand() *cli.Command {
	var params missingParams

	return &cli.Command{
		Name:    "missing",
		Summary: "Find installed packages with missing dependencies",
		Description: `Run "brew missing" and list the packages whose dependencies are not
installed. With --reinstall, those packages are reinstalled afterwards.`,
		Examples: []cli.Example{
			{Description: "Find and repair broken packages", Command: "brewkeep missing --reinstall"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("missing takes no arguments, got %q", args)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: pipeline.KindMissing, Preferences: cfg.Preferences},
			}, logger)
			if err != nil || !params.Reinstall || len(result.Missing) == 0 {
				return params.report(result, err)
			}

			packages := make([]string, 0, len(result.Missing))
			for _, entry := range result.Missing {
				packages = append(packages, entry.Package)
			}
			if !params.OutputJSON {
				fmt.Fprintln(os.Stderr, result.Summary)
			}
			result, err = params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: pipeline.KindReinstall, Packages: packages, Preferences: cfg.Preferences},
			}, logger)
			return params.report(result, err)
		},
	}
}
