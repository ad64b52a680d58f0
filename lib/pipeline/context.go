// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/brewkeep/brewkeep/lib/diskspace"
	"github.com/brewkeep/brewkeep/lib/output"
)

// StepContext is the view of a run in progress that scripts and hooks
// receive. It is only used from the executor's goroutine.
type StepContext struct {
	Request   Request
	Toolchain Toolchain

	executor *Executor
	result   *Result

	freeBefore int64
	freeKnown  bool
}

// Append adds text to the run output and the run log as one
// non-error chunk.
func (run *StepContext) Append(text string) {
	run.executor.appendOutput(text, false)
}

// SetStatus replaces the status label shown for the current step.
func (run *StepContext) SetStatus(label string) {
	run.executor.setStatus(label)
}

// Output returns a snapshot of the run output.
func (run *StepContext) Output() []output.Line {
	return run.executor.buffer.Snapshot()
}

// Capture runs a command without touching the run output or the
// interactive bridge and returns what it printed. Its stdin is closed,
// so a command that prompts reads EOF.
func (run *StepContext) Capture(ctx context.Context, path string, args ...string) ([]output.Line, int, error) {
	return run.executor.capture(ctx, path, args...)
}

// noteSkipped records packages as skipped by the upgrade and returns
// them unchanged.
func (run *StepContext) noteSkipped(packages []string) []string {
	for _, name := range packages {
		if !slices.Contains(run.result.SkippedPackages, name) {
			run.result.SkippedPackages = append(run.result.SkippedPackages, name)
		}
	}
	return packages
}

func (run *StepContext) recordFreeSpace() {
	free, err := run.executor.freeBytes()
	if err != nil {
		run.executor.logger.Warn("measuring free disk space", "error", err)
		return
	}
	run.freeBefore = free
	run.freeKnown = true
}

// reportFreedSpace appends the space reclaimed since recordFreeSpace,
// when there is any.
func reportFreedSpace(ctx context.Context, run *StepContext) error {
	if !run.freeKnown {
		return nil
	}
	after, err := run.executor.freeBytes()
	if err != nil {
		return fmt.Errorf("measuring free disk space: %w", err)
	}
	megabytes, freed := diskspace.FreedMegabytes(run.freeBefore, after)
	if !freed {
		return nil
	}
	run.result.FreedBytes = after - run.freeBefore
	run.Append(fmt.Sprintf("🧹 Freed %d MB", megabytes))
	return nil
}
