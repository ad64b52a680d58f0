// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/stepdef"
)

// Output lines appended by plan hooks.
const (
	npmMissing  = "npm not found, skipping."
	pip3Missing = "pip3 not found, skipping."
)

// Plan returns the steps that carry out request.
func Plan(request Request, toolchain Toolchain) ([]Step, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	brew := toolchain.Brew
	switch request.Kind {
	case KindRun:
		return RunPlan(request.Preferences, toolchain), nil
	case KindDoctor:
		return []Step{{Label: "Running brew doctor...", Tag: "doctor", Path: brew, Args: []string{"doctor"}}}, nil
	case KindMissing:
		return []Step{{Label: "Checking for missing dependencies...", Tag: "missing", Path: brew, Args: []string{"missing"}}}, nil
	case KindReinstall:
		return []Step{{
			Label: fmt.Sprintf("Reinstalling %d package(s)...", len(request.Packages)),
			Tag:   "reinstall",
			Path:  brew,
			Args:  append([]string{"reinstall"}, request.Packages...),
		}}, nil
	case KindOutdated:
		return []Step{{Label: "Checking for outdated packages...", Tag: "outdated", Path: brew, Args: []string{"outdated", "--verbose"}}}, nil
	case KindServices:
		return []Step{{Label: "Listing services...", Tag: "services", Path: brew, Args: []string{"services", "list"}}}, nil
	case KindService:
		return []Step{{
			Label: fmt.Sprintf("%s %s...", actionProgressive(request.Action), request.Service),
			Tag:   "service",
			Path:  brew,
			Args:  []string{"services", request.Action, request.Service},
		}}, nil
	case KindSoftwareUpdate:
		return []Step{{
			Label: "Running macOS Software Update...",
			Tag:   "software-update",
			Path:  toolchain.softwareUpdate(),
			Args:  []string{"--install", "--all"},
		}}, nil
	case KindDevUpdate:
		return []Step{
			{
				Label:    "Updating npm globals...",
				Tag:      "npm",
				Path:     toolchain.Shell,
				Args:     []string{"-c", "which npm && npm update -g"},
				SkipExit: 1,
				After:    reportMissingTool(npmMissing),
			},
			{
				Label:    "Updating pip3...",
				Tag:      "pip3",
				Path:     toolchain.Shell,
				Args:     []string{"-c", "which pip3 && pip3 install --upgrade pip"},
				SkipExit: 1,
				After:    reportMissingTool(pip3Missing),
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, request.Kind)
}

func actionProgressive(action string) string {
	switch action {
	case "start":
		return "Starting"
	case "stop":
		return "Stopping"
	case "restart":
		return "Restarting"
	}
	return action
}

// reportMissingTool appends text when a `which tool && ...` step
// exits 1, the status `which` uses for "not found". The step's
// SkipExit keeps that status from failing the job.
func reportMissingTool(text string) Hook {
	return func(run *StepContext, outcome StepOutcome) []Step {
		if outcome.Skipped {
			run.Append(text)
		}
		return nil
	}
}

// RunPlan returns the maintenance pipeline for preferences. Steps the
// preferences exclude are absent from the result.
func RunPlan(preferences config.Preferences, toolchain Toolchain) []Step {
	brew := toolchain.Brew
	var plan []Step

	if script := strings.TrimSpace(preferences.PreScript); script != "" {
		plan = append(plan, Step{Label: "Running pre-update script...", Tag: "pre-script", Path: toolchain.Shell, Args: []string{"-c", script}})
	}
	if !toolchain.exists(brew) {
		plan = append(plan, Step{
			Label: "Installing Homebrew...",
			Tag:   "install-brew",
			Path:  toolchain.Shell,
			Args:  []string{"-c", fmt.Sprintf(`/bin/bash -c "$(curl -fsSL %s)"`, toolchain.HomebrewInstallURL)},
		})
	}
	if preferences.RunAppStore && !toolchain.exists(toolchain.Mas) {
		plan = append(plan, Step{Label: "Installing mas...", Tag: "install-mas", Path: brew, Args: []string{"install", "mas"}})
	}
	plan = append(plan, customSteps(toolchain, preferences, stepdef.BeforeUpdate)...)

	plan = append(plan, Step{Label: "Updating Homebrew...", Tag: "update", Path: brew, Args: []string{"update"}})
	if preferences.BackupBeforeUpgrade {
		plan = append(plan, Step{
			Label: "Backing up package list...",
			Tag:   "backup",
			Path:  brew,
			Args:  []string{"bundle", "dump", "--force", "--file=" + filepath.Join(toolchain.HomebrewConfig, "Brewfile.bak")},
		})
	}

	upgradeArgs := []string{"upgrade"}
	if preferences.GreedyUpgrade {
		upgradeArgs = append(upgradeArgs, "--greedy")
	}
	if preferences.DryRun {
		upgradeArgs = append(upgradeArgs, "--dry-run")
	}
	plan = append(plan, Step{Label: "Upgrading packages...", Tag: "upgrade", Path: brew, Args: upgradeArgs, After: afterUpgrade})
	plan = append(plan, customSteps(toolchain, preferences, stepdef.AfterUpgrade)...)

	if preferences.RunAppStore {
		plan = append(plan,
			Step{Label: "Checking App Store updates...", Tag: "mas-outdated", Path: toolchain.Mas, Args: []string{"outdated"}},
			Step{Label: "Upgrading App Store apps...", Tag: "mas-upgrade", Path: toolchain.Mas, Args: []string{"upgrade"}},
		)
	}
	if preferences.RunCleanup {
		cleanup := cleanupStep(toolchain)
		cleanup.Before = func(run *StepContext) { run.recordFreeSpace() }
		cleanup.After = afterCleanup
		plan = append(plan, cleanup)
	}
	plan = append(plan, customSteps(toolchain, preferences, stepdef.AfterCleanup)...)

	if preferences.RunBrokenCaskCheck {
		plan = append(plan, Step{Label: "Checking for broken casks...", Tag: "broken-casks", Script: checkBrokenCasks})
	}
	plan = append(plan, customSteps(toolchain, preferences, stepdef.End)...)

	if script := strings.TrimSpace(preferences.PostScript); script != "" {
		plan = append(plan, Step{Label: "Running post-update script...", Tag: "post-script", Path: toolchain.Shell, Args: []string{"-c", script}})
	}
	return plan
}

func cleanupStep(toolchain Toolchain) Step {
	return Step{Label: "Cleaning up Homebrew cache...", Tag: "cleanup", Path: toolchain.Brew, Args: []string{"cleanup", "--prune=all"}}
}

// forceUpgradeStep re-upgrades packages the upgrade skipped because a
// version was not installed.
func forceUpgradeStep(toolchain Toolchain, packages []string, announce string) Step {
	return Step{
		Label: fmt.Sprintf("Force-upgrading %d skipped package(s)...", len(packages)),
		Tag:   "force-upgrade",
		Path:  toolchain.Brew,
		Args:  append([]string{"upgrade", "--force"}, packages...),
		Before: func(run *StepContext) {
			run.Append(announce + strings.Join(packages, ", "))
		},
	}
}

func afterUpgrade(run *StepContext, outcome StepOutcome) []Step {
	skipped := run.noteSkipped(parse.SkippedPackages(run.Output(), outcome.FirstSeq))
	if len(skipped) == 0 || run.Request.Preferences.DryRun {
		return nil
	}
	return []Step{forceUpgradeStep(run.Toolchain, skipped, "🔁 Force-upgrading skipped: ")}
}

// afterCleanup force-upgrades packages the cleanup reported as skipped
// and cleans again, then reports the disk space freed.
func afterCleanup(run *StepContext, outcome StepOutcome) []Step {
	var followUps []Step
	skipped := run.noteSkipped(parse.SkippedPackages(run.Output(), outcome.FirstSeq))
	if len(skipped) > 0 && !run.Request.Preferences.DryRun {
		reclean := cleanupStep(run.Toolchain)
		reclean.Tag = "recleanup"
		followUps = append(followUps, forceUpgradeStep(run.Toolchain, skipped, "🔁 Force-upgrading: "), reclean)
	}
	return append(followUps, Step{Label: "Measuring freed disk space...", Tag: "freed-space", Script: reportFreedSpace})
}

// customSteps converts the user-defined steps at position that
// preferences include.
func customSteps(toolchain Toolchain, preferences config.Preferences, position stepdef.Position) []Step {
	var steps []Step
	for _, definition := range toolchain.Custom.At(position) {
		include, err := stepdef.Include(definition, preferences)
		if err != nil || !include {
			continue
		}
		step := Step{
			Label:    "Running " + definition.Name + "...",
			Tag:      "custom:" + definition.Name,
			Env:      definition.Env,
			Optional: definition.Optional,
		}
		if definition.Run != "" {
			step.Path = toolchain.Shell
			step.Args = []string{"-c", definition.Run}
		} else {
			step.Path = definition.Command
			step.Args = definition.Args
		}
		if definition.Timeout != "" {
			if timeout, err := time.ParseDuration(definition.Timeout); err == nil {
				step.Timeout = timeout
			}
		}
		steps = append(steps, step)
	}
	return steps
}
