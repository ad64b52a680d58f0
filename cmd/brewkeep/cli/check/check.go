// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package check provides the workflow behind "brewkeep check": a list
// of named checks, each passing, warning or failing, where some
// failures carry a fix that --fix applies.
//
// What to check lives with the command. This package runs fixes and
// prints the results as a checklist or as JSON.
package check

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
)

// Status is the outcome of a single check.
type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusWarn  Status = "warn"
	StatusSkip  Status = "skip"
	StatusFixed Status = "fixed"
)

// FixAction repairs a failed check. Whatever it needs is captured in
// the closure when the check is built.
type FixAction func(ctx context.Context) error

// Result holds the outcome of a single check.
type Result struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	FixHint string `json:"fix_hint,omitempty"`
	fix     FixAction
}

// HasFix reports whether this result carries a fix action.
func (r *Result) HasFix() bool {
	return r.fix != nil
}

func Pass(name, message string) Result {
	return Result{Name: name, Status: StatusPass, Message: message}
}

// Fail creates a failing result with no automatic fix. hint, when
// not empty, tells the user what to do instead.
func Fail(name, message, hint string) Result {
	return Result{Name: name, Status: StatusFail, Message: message, FixHint: hint}
}

func FailWithFix(name, message, fixHint string, fix FixAction) Result {
	return Result{Name: name, Status: StatusFail, Message: message, FixHint: fixHint, fix: fix}
}

// Warn creates a warning. Warnings do not fail the command.
func Warn(name, message string) Result {
	return Result{Name: name, Status: StatusWarn, Message: message}
}

// Skip creates a skipped result, used when a prerequisite failed.
func Skip(name, message string) Result {
	return Result{Name: name, Status: StatusSkip, Message: message}
}

// Outcome holds the aggregate results of a fix pass.
type Outcome struct {
	FixedCount int

	// PermissionDenied is true if any fix failed with EPERM or EACCES.
	PermissionDenied bool
}

// Report is the JSON form of a check run.
type Report struct {
	Checks           []Result `json:"checks"`
	OK               bool     `json:"ok"`
	PermissionDenied bool     `json:"permission_denied,omitempty"`
}

// ExecuteFixes runs the fix for each fixable failure, updating results
// in place.
func ExecuteFixes(ctx context.Context, results []Result) Outcome {
	var outcome Outcome
	for i := range results {
		if results[i].Status != StatusFail || results[i].fix == nil {
			continue
		}
		if err := results[i].fix(ctx); err != nil {
			if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
				outcome.PermissionDenied = true
				results[i].Message = fmt.Sprintf("%s (insufficient permissions)", results[i].Message)
			} else {
				results[i].Message = fmt.Sprintf("%s (fix failed: %v)", results[i].Message, err)
			}
			continue
		}
		results[i].Status = StatusFixed
		outcome.FixedCount++
	}
	return outcome
}

// Failed reports whether any result failed.
func Failed(results []Result) bool {
	for _, result := range results {
		if result.Status == StatusFail {
			return true
		}
	}
	return false
}

// BuildReport builds the JSON form of results.
func BuildReport(results []Result, outcome Outcome) Report {
	return Report{
		Checks:           results,
		OK:               !Failed(results),
		PermissionDenied: outcome.PermissionDenied,
	}
}

// PrintChecklist prints results one per line followed by a verdict.
// It returns an ExitError when any check failed.
func PrintChecklist(w io.Writer, results []Result, fixMode bool, outcome Outcome) error {
	fixableCount := 0
	fixedCount := 0
	for _, result := range results {
		fmt.Fprintf(w, "[%-5s]  %-24s  %s\n", strings.ToUpper(string(result.Status)), result.Name, result.Message)
		switch result.Status {
		case StatusFail:
			if result.HasFix() {
				fixableCount++
			} else if result.FixHint != "" {
				fmt.Fprintf(w, "         %-24s  %s\n", "", result.FixHint)
			}
		case StatusFixed:
			fixedCount++
		}
	}
	fmt.Fprintln(w)

	if Failed(results) {
		if !fixMode && fixableCount > 0 {
			fmt.Fprintf(w, "Run with --fix to repair %d issue(s).\n", fixableCount)
		} else {
			fmt.Fprintln(w, "Some checks failed.")
		}
		if outcome.PermissionDenied {
			fmt.Fprintln(w, "Some fixes failed due to insufficient permissions.")
		}
		return &cli.ExitError{Code: 1}
	}

	if fixedCount > 0 {
		fmt.Fprintf(w, "%d issue(s) repaired.\n", fixedCount)
		return nil
	}
	fmt.Fprintln(w, "All checks passed.")
	return nil
}
