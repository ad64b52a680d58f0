// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"context"
	"log/slog"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

type runParams struct {
	jobParams
	TUI    bool `flag:"tui" desc:"show the interactive run view"`
	DryRun bool `flag:"dry-run" desc:"pass --dry-run to brew upgrade"`
	Greedy bool `flag:"greedy" desc:"also upgrade casks that update themselves"`
	Fast   bool `flag:"fast" desc:"skip the App Store, cleanup and broken cask steps"`
}

// RunCommand returns the "run" command: the full maintenance pipeline.
func RunCommand() *cli.Command {
	var params runParams

	return &cli.Command{
		Name:    "run",
		Summary: "Update Homebrew and upgrade everything",
		Description: `Run the maintenance pipeline: update Homebrew, upgrade formulae and casks,
and, as configured, upgrade App Store apps, clean the cache, disable broken
casks and run the pre/post scripts.

Output streams to the terminal. When a step asks for a password, brewkeep
reads it from the terminal without echo and forwards it to the step. With
--tui the run is shown in a full-screen view instead.

Steps run in order; a failing step does not stop the ones after it.
Interrupting stops the run after the current step.`,
		Examples: []cli.Example{
			{Description: "Run with the configured preferences", Command: "brewkeep run"},
			{Description: "Preview the upgrade in the run view", Command: "brewkeep run --tui --dry-run"},
			{Description: "Start the run in the daemon and follow it", Command: "brewkeep run --remote"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("run takes no arguments, got %q", args)
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}
			preferences := params.apply(cfg.Preferences)
			result, err := params.execute(ctx, cfg, execution{
				request: pipeline.Request{Kind: pipeline.KindRun, Preferences: preferences},
				tui:     params.TUI,
			}, logger)
			return params.report(result, err)
		},
	}
}

// apply overrides preferences with the command line.
func (params *runParams) apply(preferences config.Preferences) config.Preferences {
	if params.DryRun {
		preferences.DryRun = true
	}
	if params.Greedy {
		preferences.GreedyUpgrade = true
	}
	if params.Fast {
		preferences.RunAppStore = false
		preferences.RunCleanup = false
		preferences.RunBrokenCaskCheck = false
	}
	return preferences
}
