// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package stepdef parses the custom steps file: user-defined commands
// inserted into the maintenance pipeline at fixed positions.
//
// The file is JSONC (JSON with // and /* */ comments and trailing
// commas):
//
//	{
//	  "steps": [
//	    // Keep global npm packages current alongside Homebrew.
//	    {"name": "Updating npm globals", "command": "npm", "args": ["update", "-g"],
//	     "optional": true, "position": "after_upgrade"},
//	    {"name": "Refreshing shell completions", "run": "compaudit | xargs chmod g-w",
//	     "when": "!dry_run"},
//	  ]
//	}
//
// The typical flow is ReadFile, then Validate, then Include to decide
// per run which steps apply under the current preferences.
package stepdef

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Position is where in the pipeline a custom step runs.
type Position string

const (
	// BeforeUpdate runs after the pre-script and installs, before
	// `brew update`.
	BeforeUpdate Position = "before_update"

	// AfterUpgrade runs after the upgrade and its skipped-package
	// re-run.
	AfterUpgrade Position = "after_upgrade"

	// AfterCleanup runs after cache cleanup.
	AfterCleanup Position = "after_cleanup"

	// End runs after every built-in step, before the post-script.
	// This is the default.
	End Position = "end"
)

// Positions lists the valid positions in pipeline order.
var Positions = []Position{BeforeUpdate, AfterUpgrade, AfterCleanup, End}

// File is the top-level steps file.
type File struct {
	Steps []Step `json:"steps"`
}

// Step is one custom step. Exactly one of Command and Run is set.
type Step struct {
	// Name is the status label shown while the step runs.
	Name string `json:"name"`

	// Command is an executable, resolved against the configured
	// search path when it has no slash.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`

	// Run is a shell snippet executed with the configured shell.
	Run string `json:"run,omitempty"`

	// Optional steps do not count toward the run's failure.
	Optional bool `json:"optional,omitempty"`

	// When names a preference that must be true, or false with a
	// leading "!", for the step to be included.
	When string `json:"when,omitempty"`

	Position Position `json:"position,omitempty"`

	// Env adds to the child environment. PATH cannot be overridden.
	Env map[string]string `json:"env,omitempty"`

	// Timeout bounds the step's run time, as a Go duration.
	Timeout string `json:"timeout,omitempty"`
}

// EffectivePosition returns Position, defaulting to End.
func (step Step) EffectivePosition() Position {
	if step.Position == "" {
		return End
	}
	return step.Position
}

// Parse strips JSONC comments and trailing commas from data and
// decodes the result.
func Parse(data []byte) (*File, error) {
	stripped := jsonc.ToJSON(data)

	var file File
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing steps: %w", err)
	}
	return &file, nil
}

// ReadFile reads and parses a steps file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return file, nil
}

// At returns the steps at position, in file order.
func (file *File) At(position Position) []Step {
	if file == nil {
		return nil
	}
	var steps []Step
	for _, step := range file.Steps {
		if step.EffectivePosition() == position {
			steps = append(steps, step)
		}
	}
	return steps
}
