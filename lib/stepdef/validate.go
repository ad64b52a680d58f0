// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package stepdef

import (
	"fmt"
	"strings"
	"time"

	"github.com/brewkeep/brewkeep/lib/config"
)

// Validate checks a steps file for structural issues. Returns a list
// of human-readable issue descriptions; an empty list means the file
// is valid.
func Validate(file *File) []string {
	var issues []string

	names := make(map[string]int, len(file.Steps))
	for index, step := range file.Steps {
		prefix := fmt.Sprintf("steps[%d]", index)
		if step.Name == "" {
			issues = append(issues, fmt.Sprintf("%s: name is required", prefix))
		} else {
			if first, exists := names[step.Name]; exists {
				issues = append(issues, fmt.Sprintf("%s %q: duplicate step name (first used at steps[%d])", prefix, step.Name, first))
			} else {
				names[step.Name] = index
			}
			prefix = fmt.Sprintf("%s %q", prefix, step.Name)
		}

		hasCommand := step.Command != ""
		hasRun := strings.TrimSpace(step.Run) != ""
		switch {
		case hasCommand && hasRun:
			issues = append(issues, fmt.Sprintf("%s: command and run are mutually exclusive (set exactly one)", prefix))
		case !hasCommand && !hasRun:
			issues = append(issues, fmt.Sprintf("%s: must set exactly one of command or run", prefix))
		}
		if hasRun && len(step.Args) > 0 {
			issues = append(issues, fmt.Sprintf("%s: args are only valid with command", prefix))
		}

		if step.Position != "" && !validPosition(step.Position) {
			issues = append(issues, fmt.Sprintf("%s: unknown position %q (want one of %v)", prefix, step.Position, Positions))
		}

		if step.When != "" {
			if _, err := Include(step, config.Preferences{}); err != nil {
				issues = append(issues, fmt.Sprintf("%s: %v", prefix, err))
			}
		}

		if _, overridesPath := step.Env["PATH"]; overridesPath {
			issues = append(issues, fmt.Sprintf("%s: env may not set PATH (use paths.search_path)", prefix))
		}

		if step.Timeout != "" {
			if duration, err := time.ParseDuration(step.Timeout); err != nil || duration <= 0 {
				issues = append(issues, fmt.Sprintf("%s: invalid timeout %q", prefix, step.Timeout))
			}
		}
	}

	return issues
}

func validPosition(position Position) bool {
	for _, valid := range Positions {
		if position == valid {
			return true
		}
	}
	return false
}

// preferenceFlags maps the names accepted by "when" to preference
// fields.
var preferenceFlags = map[string]func(config.Preferences) bool{
	"run_app_store":         func(p config.Preferences) bool { return p.RunAppStore },
	"run_cleanup":           func(p config.Preferences) bool { return p.RunCleanup },
	"run_broken_cask_check": func(p config.Preferences) bool { return p.RunBrokenCaskCheck },
	"dry_run":               func(p config.Preferences) bool { return p.DryRun },
	"backup_before_upgrade": func(p config.Preferences) bool { return p.BackupBeforeUpgrade },
	"greedy_upgrade":        func(p config.Preferences) bool { return p.GreedyUpgrade },
	"notify_on_success":     func(p config.Preferences) bool { return p.NotifyOnSuccess },
}

// Include evaluates step's When guard against preferences. A step
// without a guard is always included.
func Include(step Step, preferences config.Preferences) (bool, error) {
	when := strings.TrimSpace(step.When)
	if when == "" {
		return true, nil
	}
	negate := strings.HasPrefix(when, "!")
	name := strings.TrimSpace(strings.TrimPrefix(when, "!"))
	flag, known := preferenceFlags[name]
	if !known {
		return false, fmt.Errorf("unknown preference %q in when", name)
	}
	return flag(preferences) != negate, nil
}
