// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brewkeep/brewkeep/lib/clock"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/diskspace"
	"github.com/brewkeep/brewkeep/lib/history"
	"github.com/brewkeep/brewkeep/lib/interactive"
	"github.com/brewkeep/brewkeep/lib/logsink"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/prompt"
	"github.com/brewkeep/brewkeep/lib/runner"
)

// StatusIdle is the status shown when no step is running.
const StatusIdle = "Idle"

var (
	// ErrBusy is returned when a request arrives while another is
	// running or waiting for input.
	ErrBusy = errors.New("pipeline: a run is already in progress")

	// ErrPreconditionFailed is wrapped by Result.Err when the
	// connectivity check failed before the first step.
	ErrPreconditionFailed = errors.New("pipeline: precondition failed")

	// ErrCancelled is returned by Result.Err for a cancelled run.
	ErrCancelled = errors.New("pipeline: run cancelled")

	// ErrStepsFailed is wrapped by Result.Err when a required step
	// failed.
	ErrStepsFailed = errors.New("pipeline: steps failed")
)

// Archive stores finished runs. *history.Store implements it.
type Archive interface {
	Save(ctx context.Context, record history.Record) (uuid.UUID, error)
}

// Connectivity is checked before a run. *netcheck.Checker implements
// it.
type Connectivity interface {
	Check(ctx context.Context) error
}

// State is the observable executor state. It changes on every step,
// prompt, and completion; Subscribe reports each change.
type State struct {
	Status  string `json:"status"`
	Running bool   `json:"running"`
	Kind    Kind   `json:"kind,omitempty"`
	RunID   string `json:"run_id,omitempty"`

	// Step is the 1-based number of the running step out of Steps.
	// Steps grows when a hook adds follow-up steps.
	Step  int `json:"step,omitempty"`
	Steps int `json:"steps,omitempty"`

	WaitingForInput bool   `json:"waiting_for_input"`
	Prompt          string `json:"prompt,omitempty"`
	QueuedPrompts   int    `json:"queued_prompts,omitempty"`

	// Outdated and Services hold the most recent listings.
	Outdated []parse.OutdatedPackage `json:"outdated,omitempty"`
	Services []parse.Service         `json:"services,omitempty"`

	LastKind     Kind      `json:"last_kind,omitempty"`
	LastSuccess  bool      `json:"last_success,omitempty"`
	LastSummary  string    `json:"last_summary,omitempty"`
	LastFinished time.Time `json:"last_finished"`
}

// Config holds the executor's collaborators. Everything but Toolchain
// is optional.
type Config struct {
	Toolchain Toolchain

	// OutputCapacity bounds the retained output lines. Zero selects
	// output.DefaultCapacity.
	OutputCapacity int

	Detector *prompt.Detector

	// PromptTimeout bounds an unanswered prompt. Zero selects
	// interactive.DefaultTimeout; negative waits forever.
	PromptTimeout time.Duration

	Log      logsink.Sink
	Notifier notify.Notifier
	Archive  Archive

	// Connectivity is checked before each KindRun. Nil skips the
	// check.
	Connectivity Connectivity

	// DiskSpace measures the space freed by cleanup, on the
	// filesystem containing DiskPath ("/" when empty).
	DiskSpace diskspace.Probe
	DiskPath  string

	Clock       clock.Clock
	Logger      *slog.Logger
	GracePeriod time.Duration

	// RefreshAfterRun refreshes the outdated listing after a run and
	// the services listing after a service action.
	RefreshAfterRun bool
}

// Executor runs one request at a time against a shared output buffer
// and interactive bridge.
type Executor struct {
	toolchain       Toolchain
	buffer          *output.Buffer
	bridge          *interactive.Bridge
	runner          *runner.Runner
	detector        *prompt.Detector
	log             logsink.Sink
	notifier        notify.Notifier
	archive         Archive
	connectivity    Connectivity
	disk            diskspace.Probe
	diskPath        string
	clock           clock.Clock
	logger          *slog.Logger
	gracePeriod     time.Duration
	refreshAfterRun bool

	// mutex guards the fields below. The bridge calls into the
	// executor with its own lock held, so the executor never calls the
	// bridge while holding mutex.
	mutex       sync.Mutex
	busy        bool
	state       State
	cancel      context.CancelFunc
	current     *handle
	last        *Result
	subscribers map[chan struct{}]struct{}
}

// handle tracks one started request.
type handle struct {
	done   chan struct{}
	result *Result
}

// New creates an idle executor.
func New(config Config) *Executor {
	if config.Log == nil {
		config.Log = logsink.Discard
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Detector == nil {
		config.Detector = prompt.NewDetector(nil)
	}
	if config.DiskSpace == nil {
		config.DiskSpace = diskspace.Statfs{}
	}
	if config.DiskPath == "" {
		config.DiskPath = "/"
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = runner.DefaultGracePeriod
	}

	executor := &Executor{
		toolchain:       config.Toolchain,
		buffer:          output.NewBuffer(config.OutputCapacity),
		detector:        config.Detector,
		log:             config.Log,
		notifier:        config.Notifier,
		archive:         config.Archive,
		connectivity:    config.Connectivity,
		disk:            config.DiskSpace,
		diskPath:        config.DiskPath,
		clock:           config.Clock,
		logger:          config.Logger,
		gracePeriod:     config.GracePeriod,
		refreshAfterRun: config.RefreshAfterRun,
		state:           State{Status: StatusIdle},
		subscribers:     make(map[chan struct{}]struct{}),
	}
	executor.bridge = interactive.NewBridge(interactive.Config{
		Clock:    config.Clock,
		Timeout:  config.PromptTimeout,
		Logger:   config.Logger,
		OnChange: executor.bridgeChanged,
	})
	executor.runner = runner.New(runner.Config{
		Output:      executor.buffer,
		Detector:    config.Detector,
		Bridge:      executor.bridge,
		Log:         config.Log,
		Clock:       config.Clock,
		Logger:      config.Logger,
		GracePeriod: config.GracePeriod,
	})
	return executor
}

// Start begins request in the background. It returns ErrBusy while
// another request is running, including while that request waits for
// input, and a wrapped ErrInvalidRequest for a malformed request.
//
// ctx bounds the child processes of the whole run, so it must outlive
// the caller's own request handling. Cancel stops the run at the next
// step boundary without killing the running process.
func (executor *Executor) Start(ctx context.Context, request Request) error {
	_, err := executor.start(ctx, request)
	return err
}

// Execute runs request and waits for it to finish. The result is
// returned together with Result.Err.
func (executor *Executor) Execute(ctx context.Context, request Request) (*Result, error) {
	started, err := executor.start(ctx, request)
	if err != nil {
		return nil, err
	}
	<-started.done
	return started.result, started.result.Err()
}

// StartRun starts the maintenance pipeline with preferences. It does
// nothing and returns false when a run is already in progress.
func (executor *Executor) StartRun(ctx context.Context, preferences config.Preferences) bool {
	return executor.Start(ctx, Request{Kind: KindRun, Preferences: preferences, Trigger: "manual"}) == nil
}

// StartDiagnostic starts a single-step diagnostic such as KindDoctor.
// It returns false when a run is in progress or kind needs arguments.
func (executor *Executor) StartDiagnostic(ctx context.Context, kind Kind) bool {
	return executor.Start(ctx, Request{Kind: kind, Trigger: "manual"}) == nil
}

// StartServiceAction starts `brew services <action> <service>`.
func (executor *Executor) StartServiceAction(ctx context.Context, service, action string) error {
	return executor.Start(ctx, Request{Kind: KindService, Service: service, Action: action, Trigger: "manual"})
}

func (executor *Executor) start(ctx context.Context, request Request) (*handle, error) {
	plan, err := Plan(request, executor.toolchain)
	if err != nil {
		return nil, err
	}

	executor.mutex.Lock()
	if executor.busy {
		executor.mutex.Unlock()
		return nil, ErrBusy
	}
	boundary, cancel := context.WithCancel(ctx)
	started := &handle{done: make(chan struct{})}
	id := uuid.New()
	executor.busy = true
	executor.cancel = cancel
	executor.current = started
	executor.state.Running = true
	executor.state.Kind = request.Kind
	executor.state.RunID = id.String()
	executor.state.Status = StatusIdle
	executor.state.Step = 0
	executor.state.Steps = len(plan)
	executor.changedLocked()
	executor.mutex.Unlock()

	// A Cancel that lands before Reset has already ended boundary, so
	// the run stops before its first step.
	executor.bridge.Reset()
	go executor.execute(ctx, boundary, cancel, id, request, plan, started)
	return started, nil
}

func (executor *Executor) execute(ctx, boundary context.Context, cancel context.CancelFunc, id uuid.UUID, request Request, plan []Step, started *handle) {
	defer cancel()

	result := &Result{ID: id, Kind: request.Kind, Trigger: request.Trigger, StartedAt: executor.clock.Now()}
	executor.buffer.Clear()
	executor.log.Append(result.StartedAt, fmt.Sprintf("--- brewkeep %s started ---", request.Kind))
	executor.logger.Info("run started", "kind", request.Kind, "id", id, "steps", len(plan), "trigger", request.Trigger)

	if request.Kind == KindRun && executor.connectivity != nil {
		executor.setStatus("Checking network connection...")
		if err := executor.connectivity.Check(boundary); err != nil {
			executor.logger.Warn("connectivity check failed, skipping run", "error", err)
			executor.log.Append(executor.clock.Now(), "connectivity check failed: "+err.Error())
			result.Precondition = err.Error()
			executor.appendOutput(notify.NoConnection, false)
			plan = nil
		}
	}

	run := &StepContext{Request: request, Toolchain: executor.toolchain, executor: executor, result: result}
	executor.runSteps(ctx, boundary, run, plan)

	result.FinishedAt = executor.clock.Now()
	result.Output = executor.buffer.Snapshot()
	deliver := summarize(result, request)
	executor.log.Append(result.FinishedAt, fmt.Sprintf("--- brewkeep %s finished (success: %t) ---", request.Kind, result.Success))
	executor.logger.Info("run finished",
		"kind", request.Kind,
		"id", id,
		"success", result.Success,
		"cancelled", result.Cancelled,
		"duration", formatDuration(result.Duration()),
	)

	executor.mutex.Lock()
	executor.state.Running = false
	executor.state.Status = StatusIdle
	executor.state.Step = 0
	executor.state.Steps = 0
	executor.state.LastKind = request.Kind
	executor.state.LastSuccess = result.Success
	executor.state.LastSummary = result.Summary
	executor.state.LastFinished = result.FinishedAt
	switch request.Kind {
	case KindOutdated:
		executor.state.Outdated = result.Outdated
	case KindServices:
		executor.state.Services = result.Services
	}
	executor.changedLocked()
	executor.mutex.Unlock()

	if deliver && executor.notifier != nil {
		executor.notifier.Notify(result.Success, result.Summary)
		result.Notified = true
	}
	if executor.archive != nil {
		if _, err := executor.archive.Save(context.WithoutCancel(ctx), result.Record()); err != nil {
			executor.logger.Warn("archiving run failed", "id", id, "error", err)
		}
	}

	executor.mutex.Lock()
	executor.busy = false
	executor.cancel = nil
	executor.current = nil
	executor.last = result
	executor.mutex.Unlock()
	started.result = result
	close(started.done)

	if executor.refreshAfterRun && ctx.Err() == nil {
		switch request.Kind {
		case KindRun:
			go executor.refresh(ctx, "outdated", func(ctx context.Context) error {
				_, err := executor.Outdated(ctx)
				return err
			})
		case KindService:
			go executor.refresh(ctx, "services", func(ctx context.Context) error {
				_, err := executor.Services(ctx)
				return err
			})
		}
	}
}

func (executor *Executor) refresh(ctx context.Context, what string, fetch func(context.Context) error) {
	if err := fetch(ctx); err != nil && ctx.Err() == nil {
		executor.logger.Warn("refreshing listing failed", "listing", what, "error", err)
	}
}

// runSteps executes the plan in order. Follow-up steps returned by a
// hook run next. The run stops early only when boundary is done.
func (executor *Executor) runSteps(ctx, boundary context.Context, run *StepContext, plan []Step) {
	queue := slices.Clone(plan)
	for number := 1; len(queue) > 0; number++ {
		if boundary.Err() != nil {
			executor.cancelled(run, len(queue))
			return
		}
		step := queue[0]
		queue = queue[1:]

		executor.beginStep(step.Label, number, number+len(queue))
		if step.Before != nil {
			step.Before(run)
		}
		outcome := executor.runStep(ctx, run, step)
		run.result.Steps = append(run.result.Steps, outcome)
		if outcome.Failed() && !step.Optional {
			run.result.AnyStepFailed = true
		}
		executor.log.Append(executor.clock.Now(), fmt.Sprintf("step %d: %s %s (%s)",
			number, step.Label, outcome.Status(), formatDuration(outcome.Duration)))
		executor.logger.Debug("step finished",
			"step", number,
			"tag", step.Tag,
			"status", outcome.Status(),
			"exit_code", outcome.ExitCode,
		)

		// The skipped hook counts as remaining work.
		remaining := len(queue)
		if step.After != nil {
			remaining++
		}
		// Prompts the step raised must be settled before the next
		// step takes over stdin.
		if err := executor.bridge.WaitResolved(boundary); err != nil {
			executor.cancelled(run, remaining)
			return
		}
		// An unanswered prompt stops the run like Cancel does.
		if err := executor.bridge.Err(); err != nil {
			if errors.Is(err, interactive.ErrPromptTimeout) {
				executor.log.Append(executor.clock.Now(), "prompt timed out")
				executor.logger.Warn("prompt timed out, stopping run", "step", number, "tag", step.Tag)
			}
			executor.cancelled(run, remaining)
			return
		}
		if step.After != nil {
			if boundary.Err() != nil {
				executor.cancelled(run, remaining)
				return
			}
			queue = append(step.After(run, outcome), queue...)
		}
	}
}

func (executor *Executor) cancelled(run *StepContext, remaining int) {
	if remaining == 0 {
		return
	}
	run.result.Cancelled = true
	executor.log.Append(executor.clock.Now(), "run cancelled")
	executor.logger.Info("run cancelled", "remaining_steps", remaining)
}

func (executor *Executor) runStep(ctx context.Context, run *StepContext, step Step) StepOutcome {
	outcome := StepOutcome{
		Label:    step.Label,
		Tag:      step.Tag,
		Optional: step.Optional,
		FirstSeq: executor.buffer.NextSeq(),
	}
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	start := executor.clock.Now()
	var err error
	if step.Script != nil {
		executor.log.Append(start, step.Label)
		if err = step.Script(ctx, run); err != nil {
			executor.appendOutput(err.Error(), true)
		}
	} else {
		outcome.ExitCode, err = executor.runner.Run(ctx, runner.Invocation{
			Label: step.Label,
			Path:  step.Path,
			Args:  step.Args,
			Env:   executor.toolchain.environment(step.Env),
		})
	}
	outcome.Duration = executor.clock.Now().Sub(start)
	outcome.Skipped = err == nil && step.SkipExit != 0 && outcome.ExitCode == step.SkipExit
	if err != nil {
		outcome.Err = err.Error()
		if outcome.ExitCode == 0 {
			outcome.ExitCode = -1
		}
	}
	return outcome
}

// capture runs a command into a private buffer.
func (executor *Executor) capture(ctx context.Context, path string, args ...string) ([]output.Line, int, error) {
	buffer := output.NewBuffer(0)
	capture := runner.New(runner.Config{
		Output:      buffer,
		Detector:    executor.detector,
		Clock:       executor.clock,
		Logger:      executor.logger,
		GracePeriod: executor.gracePeriod,
	})
	exitCode, err := capture.Run(ctx, runner.Invocation{
		Label: strings.Join(append([]string{filepath.Base(path)}, args...), " "),
		Path:  path,
		Args:  args,
		Env:   executor.toolchain.Env,
	})
	return buffer.Snapshot(), exitCode, err
}

// Outdated lists outdated packages without touching the run output
// and records them in State. It may run alongside a request.
func (executor *Executor) Outdated(ctx context.Context) ([]parse.OutdatedPackage, error) {
	lines, exitCode, err := executor.capture(ctx, executor.toolchain.Brew, "outdated", "--verbose")
	if err != nil {
		return nil, err
	}
	packages := parse.OutdatedPackages(lines)
	if exitCode != 0 && len(packages) == 0 {
		return nil, listingFailed("brew outdated", exitCode, lines)
	}
	executor.mutex.Lock()
	executor.state.Outdated = packages
	executor.changedLocked()
	executor.mutex.Unlock()
	return packages, nil
}

// Services lists registered services without touching the run output
// and records them in State.
func (executor *Executor) Services(ctx context.Context) ([]parse.Service, error) {
	lines, exitCode, err := executor.capture(ctx, executor.toolchain.Brew, "services", "list")
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, listingFailed("brew services list", exitCode, lines)
	}
	services := parse.Services(lines)
	executor.mutex.Lock()
	executor.state.Services = services
	executor.changedLocked()
	executor.mutex.Unlock()
	return services, nil
}

func listingFailed(command string, exitCode int, lines []output.Line) error {
	var errorLines []string
	for _, line := range lines {
		if line.IsError {
			errorLines = append(errorLines, line.Text)
		}
	}
	if len(errorLines) == 0 {
		return fmt.Errorf("%s exited %d", command, exitCode)
	}
	return fmt.Errorf("%s exited %d: %s", command, exitCode, strings.Join(errorLines, "; "))
}

// SubmitInput answers the outstanding prompt. It returns false, doing
// nothing, when no prompt is outstanding.
func (executor *Executor) SubmitInput(text string) bool {
	return executor.bridge.Submit(text)
}

// Cancel stops the current request at the next step boundary and
// abandons any outstanding prompt. The running process is not killed;
// its stdin is closed. Returns false when nothing is running.
func (executor *Executor) Cancel() bool {
	executor.mutex.Lock()
	cancel := executor.cancel
	executor.mutex.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	executor.bridge.Abort()
	return true
}

// Wait blocks until the current request, if any, has finished and
// returns its result. It returns the previous result when idle.
func (executor *Executor) Wait(ctx context.Context) (*Result, error) {
	executor.mutex.Lock()
	current := executor.current
	last := executor.last
	executor.mutex.Unlock()
	if current == nil {
		return last, nil
	}
	select {
	case <-current.done:
		return current.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Last returns the most recent finished result, or nil.
func (executor *Executor) Last() *Result {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	return executor.last
}

// State returns a copy of the current state.
func (executor *Executor) State() State {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	state := executor.state
	state.Outdated = slices.Clone(state.Outdated)
	state.Services = slices.Clone(state.Services)
	return state
}

// Output returns every retained output line.
func (executor *Executor) Output() []output.Line {
	return executor.buffer.Snapshot()
}

// OutputSince returns retained lines with Seq >= seq.
func (executor *Executor) OutputSince(seq uint64) []output.Line {
	return executor.buffer.Since(seq)
}

// SubscribeOutput reports output appends. See output.Buffer.Subscribe.
func (executor *Executor) SubscribeOutput() (<-chan struct{}, func()) {
	return executor.buffer.Subscribe()
}

// ClearOutput empties the output between runs. It returns false while
// a request is running.
func (executor *Executor) ClearOutput() bool {
	executor.mutex.Lock()
	busy := executor.busy
	executor.mutex.Unlock()
	if busy {
		return false
	}
	executor.buffer.Clear()
	return true
}

// Subscribe returns a channel that receives a value after state
// changes. Notifications coalesce: a slow reader sees one value for
// many changes and should re-read State. Call the returned function to
// unsubscribe.
func (executor *Executor) Subscribe() (<-chan struct{}, func()) {
	channel := make(chan struct{}, 1)
	executor.mutex.Lock()
	executor.subscribers[channel] = struct{}{}
	executor.mutex.Unlock()
	return channel, func() {
		executor.mutex.Lock()
		delete(executor.subscribers, channel)
		executor.mutex.Unlock()
	}
}

func (executor *Executor) changedLocked() {
	for channel := range executor.subscribers {
		select {
		case channel <- struct{}{}:
		default:
		}
	}
}

// bridgeChanged mirrors the bridge into State. Called with the
// bridge's lock held.
func (executor *Executor) bridgeChanged(snapshot interactive.Snapshot) {
	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	executor.state.WaitingForInput = snapshot.Waiting()
	executor.state.Prompt = snapshot.Prompt
	executor.state.QueuedPrompts = snapshot.Queued
	executor.changedLocked()
}

func (executor *Executor) beginStep(label string, number, total int) {
	executor.mutex.Lock()
	executor.state.Status = label
	executor.state.Step = number
	executor.state.Steps = total
	executor.changedLocked()
	executor.mutex.Unlock()
}

func (executor *Executor) setStatus(label string) {
	executor.mutex.Lock()
	executor.state.Status = label
	executor.changedLocked()
	executor.mutex.Unlock()
}

// appendOutput publishes text produced by brewkeep itself and mirrors
// it to the run log.
func (executor *Executor) appendOutput(text string, isError bool) {
	lines := executor.buffer.Append(text, isError, false)
	now := executor.clock.Now()
	for _, line := range lines {
		executor.log.Append(now, line.Text)
	}
}

func (executor *Executor) freeBytes() (int64, error) {
	return executor.disk.FreeBytes(executor.diskPath)
}
