// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brewkeep/brewkeep/lib/history"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/parse"
)

// doctorHealthyCue is printed by `brew doctor` when it finds nothing.
const doctorHealthyCue = "Your system is ready to brew"

// serviceStatusError is the `brew services list` status of a service
// that failed to start.
const serviceStatusError = "error"

// Result is the outcome of one executed request.
type Result struct {
	ID         uuid.UUID `json:"id"`
	Kind       Kind      `json:"kind"`
	Trigger    string    `json:"trigger,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Steps []StepOutcome `json:"steps,omitempty"`

	// AnyStepFailed is set when a non-optional step exited non-zero
	// or could not be launched.
	AnyStepFailed bool `json:"any_step_failed"`

	Cancelled bool `json:"cancelled,omitempty"`

	// Precondition is set when the connectivity check failed and no
	// step ran.
	Precondition string `json:"precondition,omitempty"`

	Output []output.Line `json:"output,omitempty"`

	// Parsed results, filled according to Kind.
	Outdated     []parse.OutdatedPackage   `json:"outdated,omitempty"`
	Services     []parse.Service           `json:"services,omitempty"`
	Missing      []parse.MissingDependency `json:"missing,omitempty"`
	DoctorIssues []string                  `json:"doctor_issues,omitempty"`

	BrokenCasks     []string `json:"broken_casks,omitempty"`
	SkippedPackages []string `json:"skipped_packages,omitempty"`
	FreedBytes      int64    `json:"freed_bytes,omitempty"`

	Success bool   `json:"success"`
	Summary string `json:"summary"`

	// Notified is false when the summary was not delivered, as for a
	// plain success with success notifications turned off.
	Notified bool `json:"notified"`
}

// Duration is the wall time of the run.
func (result *Result) Duration() time.Duration {
	return result.FinishedAt.Sub(result.StartedAt)
}

// Err returns an error describing why the run did not succeed, or nil.
func (result *Result) Err() error {
	switch {
	case result.Precondition != "":
		return fmt.Errorf("%w: %s", ErrPreconditionFailed, result.Precondition)
	case result.Cancelled:
		return ErrCancelled
	case result.AnyStepFailed:
		var failed []string
		for _, step := range result.Steps {
			if step.Failed() && !step.Optional {
				failed = append(failed, step.Tag)
			}
		}
		return fmt.Errorf("%w: %s", ErrStepsFailed, strings.Join(failed, ", "))
	}
	return nil
}

// summarize fills the parsed fields and the summary from the
// finished run and decides whether the summary is delivered.
func summarize(result *Result, request Request) (deliver bool) {
	failed := result.AnyStepFailed
	switch {
	case result.Precondition != "":
		result.Success, result.Summary = false, notify.NoConnection
		return true
	case result.Cancelled:
		result.Success, result.Summary = false, notify.RunCancelled
		return true
	}

	result.Success = !failed
	switch request.Kind {
	case KindRun:
		result.Success, result.Summary, deliver = notify.RunSummary(failed, result.BrokenCasks, request.Preferences.NotifyOnSuccess)
		return deliver

	case KindDoctor:
		result.DoctorIssues = parse.DoctorIssues(result.Output)
		healthy := !failed && containsText(result.Output, doctorHealthyCue)
		result.Success = healthy
		result.Summary = notify.DoctorSummary(healthy, result.DoctorIssues)

	case KindMissing:
		result.Missing = parse.MissingDependencies(result.Output)
		result.Summary = notify.MissingSummary(len(result.Missing))
		if failed {
			result.Summary = notify.JobSummary("Missing dependency check", true)
		}

	case KindOutdated:
		result.Outdated = parse.OutdatedPackages(result.Output)
		names := make([]string, 0, len(result.Outdated))
		for _, entry := range result.Outdated {
			names = append(names, entry.Name)
		}
		result.Summary = notify.OutdatedSummary(names)
		if failed {
			result.Summary = notify.JobSummary("Outdated check", true)
		}

	case KindServices:
		result.Services = parse.Services(result.Output)
		var failing []string
		for _, service := range result.Services {
			if service.Status == serviceStatusError {
				failing = append(failing, service.Name)
			}
		}
		result.Summary = notify.ServicesSummary(len(result.Services), failing)
		if failed {
			result.Summary = notify.JobSummary("Service listing", true)
		}

	case KindReinstall:
		result.Summary = notify.JobSummary("Reinstall", failed)
	case KindService:
		result.Summary = notify.JobSummary(fmt.Sprintf("brew services %s %s", request.Action, request.Service), failed)
	case KindSoftwareUpdate:
		result.Summary = notify.JobSummary("macOS Software Update", failed)
	case KindDevUpdate:
		result.Summary = notify.JobSummary("Developer tools update", failed)
	}
	return true
}

func containsText(lines []output.Line, text string) bool {
	for _, line := range lines {
		if strings.Contains(line.Text, text) {
			return true
		}
	}
	return false
}

// Record converts the result for the history archive.
func (result *Result) Record() history.Record {
	steps := make([]history.Step, 0, len(result.Steps))
	for _, step := range result.Steps {
		steps = append(steps, history.Step{
			Label:      step.Label,
			ExitCode:   step.ExitCode,
			Error:      step.Err,
			Optional:   step.Optional,
			Skipped:    step.Skipped,
			DurationMS: step.Duration.Milliseconds(),
		})
	}
	return history.Record{
		ID:         result.ID,
		Kind:       string(result.Kind),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Success:    result.Success,
		Cancelled:  result.Cancelled,
		Summary:    result.Summary,
		Steps:      steps,
		Output:     result.Output,
	}
}

// formatDuration formats a duration for status output: seconds with
// one decimal place.
func formatDuration(duration time.Duration) string {
	return fmt.Sprintf("%.1fs", duration.Seconds())
}
