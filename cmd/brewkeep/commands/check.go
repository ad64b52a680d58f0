// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli/check"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/daemon"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/history"
	"github.com/brewkeep/brewkeep/lib/netcheck"
	"github.com/brewkeep/brewkeep/lib/stepdef"
)

type checkParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Fix     bool `flag:"fix" desc:"repair what can be repaired automatically"`
	Offline bool `flag:"offline" desc:"skip the connectivity probe"`
}

func checkCommand() *cli.Command {
	var params checkParams

	return &cli.Command{
		Name:    "check",
		Summary: "Check the brewkeep installation",
		Description: `Check the configuration, the tools brewkeep runs, its state
directories, the custom steps file, the history archive, connectivity
and the daemon. Missing directories are created with --fix.

This checks brewkeep itself; 'brewkeep doctor' runs brew doctor.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("check takes no arguments")
			}
			results := runChecks(ctx, params.Path, params.Offline)
			var outcome check.Outcome
			if params.Fix {
				outcome = check.ExecuteFixes(ctx, results)
			}
			if params.JSONEnabled() {
				if err := cli.WriteJSON(check.BuildReport(results, outcome)); err != nil {
					return err
				}
				if check.Failed(results) {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}
			return check.PrintChecklist(os.Stdout, results, params.Fix, outcome)
		},
	}
}

// runChecks loads the configuration at configPath and checks what it
// names. A configuration that fails to load skips everything else.
func runChecks(ctx context.Context, configPath string, offline bool) []check.Result {
	cfg, err := config.Resolve(configPath)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		return []check.Result{
			check.Fail("config", strings.ReplaceAll(err.Error(), "\n", "; "), "see 'brewkeep config show' and 'brewkeep config init'"),
			check.Skip("remaining checks", "configuration did not load"),
		}
	}

	results := []check.Result{check.Pass("config", configSource(configPath))}
	results = append(results,
		checkExecutable("brew", cfg.Paths.Brew, "'brewkeep run' installs Homebrew when it is missing"),
		checkAppStore(cfg),
		checkShell(cfg.Paths.Shell),
		checkDirectories(cfg),
		checkSteps(cfg.Paths.StepsFile),
		checkHistory(ctx, cfg.History),
		checkSchedule(cfg.Schedule),
	)
	if offline || !cfg.Connectivity.Enabled {
		results = append(results, check.Skip("connectivity", "not probed"))
	} else {
		results = append(results, checkConnectivity(ctx, cfg))
	}
	results = append(results, checkDaemon(ctx, cfg.Control.Socket))
	return results
}

func configSource(flagPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case os.Getenv(config.EnvVar) != "":
		return os.Getenv(config.EnvVar)
	}
	return "built-in defaults"
}

func executable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Mode()&0o111 != 0
}

func checkExecutable(name, path, hint string) check.Result {
	if executable(path) {
		return check.Pass(name, path)
	}
	result := check.Warn(name, path+" not found")
	result.FixHint = hint
	return result
}

func checkAppStore(cfg *config.Config) check.Result {
	if !cfg.Preferences.RunAppStore {
		return check.Skip("mas", "App Store updates are disabled")
	}
	return checkExecutable("mas", cfg.Paths.Mas, "'brewkeep run' installs mas when App Store updates are enabled")
}

func checkShell(shell string) check.Result {
	if executable(shell) {
		return check.Pass("shell", shell)
	}
	return check.Fail("shell", shell+" is not executable", "set paths.shell to an installed shell")
}

func checkDirectories(cfg *config.Config) check.Result {
	directories := []string{cfg.Paths.State, filepath.Dir(cfg.Log.File), filepath.Dir(cfg.Control.Socket)}
	if cfg.History.Enabled {
		directories = append(directories, filepath.Dir(cfg.History.Database))
	}
	var missing []string
	for _, directory := range directories {
		if info, err := os.Stat(directory); err != nil || !info.IsDir() {
			missing = append(missing, directory)
		}
	}
	if len(missing) == 0 {
		return check.Pass("state directories", cfg.Paths.State)
	}
	return check.FailWithFix("state directories", "missing "+strings.Join(missing, ", "), "create them",
		func(context.Context) error { return cfg.EnsurePaths() })
}

func checkSteps(path string) check.Result {
	if path == "" {
		return check.Skip("steps file", "none configured")
	}
	file, err := stepdef.ReadFile(path)
	if err != nil {
		return check.Fail("steps file", err.Error(), "")
	}
	if issues := stepdef.Validate(file); len(issues) > 0 {
		return check.Fail("steps file", strings.Join(issues, "; "), "")
	}
	return check.Pass("steps file", fmt.Sprintf("%d custom step(s)", len(file.Steps)))
}

func checkHistory(ctx context.Context, cfg config.HistoryConfig) check.Result {
	if !cfg.Enabled {
		return check.Skip("history", "disabled")
	}
	if _, err := os.Stat(cfg.Database); errors.Is(err, fs.ErrNotExist) {
		return check.Pass("history", "no jobs archived yet")
	}
	store, err := history.Open(history.Config{Path: cfg.Database, Keep: cfg.Keep})
	if err != nil {
		return check.Fail("history", err.Error(), "move "+cfg.Database+" aside to start a new archive")
	}
	defer store.Close()
	records, err := store.List(ctx, cfg.Keep)
	if err != nil {
		return check.Fail("history", err.Error(), "move "+cfg.Database+" aside to start a new archive")
	}
	return check.Pass("history", fmt.Sprintf("%d job(s) archived", len(records)))
}

func checkSchedule(cfg config.ScheduleConfig) check.Result {
	sched, err := daemon.Schedule(cfg)
	if err != nil {
		return check.Fail("schedule", err.Error(), "")
	}
	if sched == nil {
		return check.Skip("schedule", "scheduled runs are disabled")
	}
	next, err := sched.Next(time.Now())
	if err != nil {
		return check.Fail("schedule", err.Error(), "")
	}
	return check.Pass("schedule", fmt.Sprintf("%s, next at %s", sched, next.Local().Format("2006-01-02 15:04")))
}

func checkConnectivity(ctx context.Context, cfg *config.Config) check.Result {
	timeout, err := cfg.ConnectivityTimeout()
	if err != nil {
		return check.Fail("connectivity", err.Error(), "")
	}
	checker := netcheck.Checker{Address: cfg.Connectivity.Address, Timeout: timeout}
	if err := checker.Check(ctx); err != nil {
		return check.Warn("connectivity", err.Error())
	}
	return check.Pass("connectivity", "reached "+cfg.Connectivity.Address)
}

func checkDaemon(ctx context.Context, socket string) check.Result {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	state, err := control.NewClient(socket).State(ctx)
	if err != nil {
		return check.Warn("daemon", "not running; --remote commands need 'brewkeep daemon'")
	}
	if state.Running {
		return check.Pass("daemon", fmt.Sprintf("running a %s job", state.Kind))
	}
	return check.Pass("daemon", "idle")
}
