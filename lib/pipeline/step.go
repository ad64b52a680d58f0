// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/stepdef"
)

// Kind names the job a request asks for.
type Kind string

const (
	// KindRun is the full maintenance pipeline.
	KindRun Kind = "run"

	KindDoctor    Kind = "doctor"
	KindMissing   Kind = "missing"
	KindReinstall Kind = "reinstall"
	KindOutdated  Kind = "outdated"
	KindServices  Kind = "services"

	// KindService starts, stops, or restarts one service.
	KindService Kind = "service"

	KindSoftwareUpdate Kind = "software-update"
	KindDevUpdate      Kind = "dev-update"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{
	KindRun, KindDoctor, KindMissing, KindReinstall, KindOutdated,
	KindServices, KindService, KindSoftwareUpdate, KindDevUpdate,
}

// ServiceActions are the verbs accepted by KindService.
var ServiceActions = []string{"start", "stop", "restart"}

// ErrInvalidRequest is wrapped by Request.Validate failures.
var ErrInvalidRequest = errors.New("invalid request")

// Request asks the executor for one job.
type Request struct {
	Kind Kind `json:"kind"`

	// Preferences select the optional steps of a run. Other kinds
	// only read NotifyOnSuccess.
	Preferences config.Preferences `json:"preferences"`

	// Service and Action are required for KindService.
	Service string `json:"service,omitempty"`
	Action  string `json:"action,omitempty"`

	// Packages are reinstalled by KindReinstall.
	Packages []string `json:"packages,omitempty"`

	// Trigger records who asked: "manual", "schedule", "socket".
	// Informational only.
	Trigger string `json:"trigger,omitempty"`
}

// Validate reports whether the request is well formed.
func (request Request) Validate() error {
	if !slices.Contains(Kinds, request.Kind) {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, request.Kind)
	}
	switch request.Kind {
	case KindService:
		if strings.TrimSpace(request.Service) == "" {
			return fmt.Errorf("%w: service name is required", ErrInvalidRequest)
		}
		if !slices.Contains(ServiceActions, request.Action) {
			return fmt.Errorf("%w: action must be one of %s, got %q",
				ErrInvalidRequest, strings.Join(ServiceActions, ", "), request.Action)
		}
	case KindReinstall:
		if len(request.Packages) == 0 {
			return fmt.Errorf("%w: no packages to reinstall", ErrInvalidRequest)
		}
	}
	return nil
}

// Hook inspects a finished step and returns steps to run immediately
// after it, in order. It runs on the executor's goroutine.
type Hook func(run *StepContext, outcome StepOutcome) []Step

// Script is an in-process step body. It may run commands through
// StepContext.Capture and append lines with StepContext.Append.
type Script func(ctx context.Context, run *StepContext) error

// Step is one unit of a plan: either a command (Path and Args) or a
// Script.
type Step struct {
	// Label is shown as the status while the step runs and is written
	// to the run log. Labels carry a trailing ellipsis.
	Label string

	// Tag identifies the step in results and history independently
	// of its label: "update", "upgrade", "custom:<name>".
	Tag string

	Path string
	Args []string

	// Env is merged over the toolchain environment.
	Env map[string]string

	// Timeout bounds the step. Zero means none.
	Timeout time.Duration

	// Optional steps record failures without failing the run.
	Optional bool

	// SkipExit, when non-zero, is the exit status meaning the step had
	// nothing to do. It is recorded as skipped, not failed.
	SkipExit int

	Script Script

	// Before runs just before the step starts.
	Before func(run *StepContext)

	After Hook
}

// StepOutcome is the recorded result of one step.
type StepOutcome struct {
	Label    string        `json:"label"`
	Tag      string        `json:"tag"`
	ExitCode int           `json:"exit_code"`
	Err      string        `json:"error,omitempty"`
	Optional bool          `json:"optional,omitempty"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`

	// FirstSeq is the output sequence number at which the step began.
	FirstSeq uint64 `json:"first_seq"`
}

// Failed reports whether the step exited non-zero or could not run.
// A skipped step has not failed.
func (outcome StepOutcome) Failed() bool {
	return (outcome.ExitCode != 0 && !outcome.Skipped) || outcome.Err != ""
}

// Status is the short word recorded in logs and history.
func (outcome StepOutcome) Status() string {
	switch {
	case outcome.Skipped && !outcome.Failed():
		return "skipped"
	case !outcome.Failed():
		return "ok"
	case outcome.Optional:
		return "failed (optional)"
	default:
		return "failed"
	}
}

// DefaultSoftwareUpdate is the macOS software update tool.
const DefaultSoftwareUpdate = "/usr/sbin/softwareupdate"

// Toolchain locates the executables a plan invokes and the
// environment they run in.
type Toolchain struct {
	Brew  string
	Mas   string
	Shell string

	// SoftwareUpdate defaults to DefaultSoftwareUpdate.
	SoftwareUpdate string

	// Env is the complete child environment, PATH included.
	Env map[string]string

	// HomebrewConfig receives the Brewfile backup and
	// ignored-casks.rb.
	HomebrewConfig string

	HomebrewInstallURL string

	// Custom holds user-defined steps merged into runs. May be nil.
	Custom *stepdef.File

	// Exists reports whether path names an existing file. Nil uses
	// os.Stat.
	Exists func(path string) bool
}

// NewToolchain derives a Toolchain from configuration. The child
// environment is built from getenv.
func NewToolchain(cfg *config.Config, custom *stepdef.File, getenv func(string) string) Toolchain {
	return Toolchain{
		Brew:               cfg.Paths.Brew,
		Mas:                cfg.Paths.Mas,
		Shell:              cfg.Paths.Shell,
		Env:                cfg.Paths.Environment(getenv),
		HomebrewConfig:     cfg.Paths.HomebrewConfig,
		HomebrewInstallURL: cfg.Paths.HomebrewInstallURL,
		Custom:             custom,
	}
}

func (toolchain Toolchain) exists(path string) bool {
	if toolchain.Exists != nil {
		return toolchain.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func (toolchain Toolchain) softwareUpdate() string {
	if toolchain.SoftwareUpdate == "" {
		return DefaultSoftwareUpdate
	}
	return toolchain.SoftwareUpdate
}

// environment returns the toolchain environment with extra merged in.
func (toolchain Toolchain) environment(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return toolchain.Env
	}
	merged := make(map[string]string, len(toolchain.Env)+len(extra))
	for key, value := range toolchain.Env {
		merged[key] = value
	}
	for key, value := range extra {
		merged[key] = value
	}
	return merged
}
