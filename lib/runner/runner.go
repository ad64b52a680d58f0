// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/brewkeep/brewkeep/lib/clock"
	"github.com/brewkeep/brewkeep/lib/interactive"
	"github.com/brewkeep/brewkeep/lib/logsink"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/prompt"
)

// ChunkSize is the read size for each output stream.
const ChunkSize = 4096

// DefaultGracePeriod is the delay between SIGTERM and SIGKILL when
// the context is cancelled.
const DefaultGracePeriod = 5 * time.Second

// Output receives classified chunks. *output.Buffer implements it.
type Output interface {
	Append(text string, isError, isPrompt bool) []output.Line
}

// Invocation describes one command to run.
type Invocation struct {
	// Label is the human-readable step name, used in logs.
	Label string

	// Path is the executable. A name without a slash is resolved
	// against Env["PATH"].
	Path string

	Args []string

	// Env is the complete child environment. Nothing is inherited.
	Env map[string]string

	// Dir is the working directory. Empty means the parent's.
	Dir string
}

// Line returns the command as echoed into the output: "$ " followed
// by the executable's base name and arguments.
func (invocation Invocation) Line() string {
	return strings.Join(append([]string{"$", filepath.Base(invocation.Path)}, invocation.Args...), " ")
}

// LaunchError reports that the process could not be started.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Config holds the collaborators of a Runner. Output is required.
type Config struct {
	Output   Output
	Detector *prompt.Detector

	// Bridge receives detected prompts. When nil, prompts are
	// classified and published but never block, and the child's stdin
	// is closed at start.
	Bridge *interactive.Bridge

	Log         logsink.Sink
	Clock       clock.Clock
	Logger      *slog.Logger
	GracePeriod time.Duration
}

// Runner runs commands one at a time on behalf of a pipeline. A
// Runner is safe for concurrent use, but the bridge it feeds tracks a
// single active step, so the executor never runs two commands at once.
type Runner struct {
	output      Output
	detector    *prompt.Detector
	bridge      *interactive.Bridge
	log         logsink.Sink
	clock       clock.Clock
	logger      *slog.Logger
	gracePeriod time.Duration
}

// New creates a Runner from config.
func New(config Config) *Runner {
	if config.Output == nil {
		config.Output = output.NewBuffer(0)
	}
	if config.Detector == nil {
		config.Detector = prompt.NewDetector(nil)
	}
	if config.Log == nil {
		config.Log = logsink.Discard
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	return &Runner{
		output:      config.Output,
		detector:    config.Detector,
		bridge:      config.Bridge,
		log:         config.Log,
		clock:       config.Clock,
		logger:      config.Logger,
		gracePeriod: config.GracePeriod,
	}
}

// Run executes invocation and blocks until it exits. A non-zero exit
// status is returned as exitCode with a nil error. A *LaunchError is
// returned when the process cannot be started. If ctx is cancelled
// the process group is terminated and ctx's error is returned.
func (runner *Runner) Run(ctx context.Context, invocation Invocation) (exitCode int, err error) {
	runner.output.Append(invocation.Line(), false, false)

	path, err := LookPath(invocation.Path, invocation.Env["PATH"])
	if err != nil {
		return -1, runner.launchFailed(invocation, err)
	}
	runner.log.Append(runner.clock.Now(), strings.Join(append([]string{"$", path}, invocation.Args...), " "))

	cmd := exec.CommandContext(ctx, path, invocation.Args...)
	cmd.Env = EnvList(invocation.Env)
	cmd.Dir = invocation.Dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	gracePeriod := runner.gracePeriod
	cmd.Cancel = func() error {
		processGroupID := -cmd.Process.Pid
		if err := syscall.Kill(processGroupID, syscall.SIGTERM); err != nil {
			return syscall.Kill(processGroupID, syscall.SIGKILL)
		}
		go func() {
			time.Sleep(gracePeriod)
			// ESRCH once the group is gone.
			_ = syscall.Kill(processGroupID, syscall.SIGKILL)
		}()
		return nil
	}

	// A background descendant may inherit stdout or stderr and keep
	// it open after the step's process exits. exec copies the output
	// into these pipes, and WaitDelay bounds how long Wait waits for
	// that copy once the process is gone.
	cmd.WaitDelay = gracePeriod
	stdout, stdoutWriter := io.Pipe()
	stderr, stderrWriter := io.Pipe()
	cmd.Stdout = stdoutWriter
	cmd.Stderr = stderrWriter

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return -1, runner.launchFailed(invocation, err)
	}

	if err := cmd.Start(); err != nil {
		return -1, runner.launchFailed(invocation, err)
	}
	runner.logger.Debug("process started", "label", invocation.Label, "path", path, "pid", cmd.Process.Pid)

	if runner.bridge != nil {
		runner.bridge.BeginStep(stdin)
		defer runner.bridge.EndStep()
	} else {
		// Nobody can answer a prompt, so the child reads EOF.
		stdin.Close()
	}

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		runner.stream(ctx, stdout, false)
	}()
	go func() {
		defer readers.Done()
		runner.stream(ctx, stderr, true)
	}()

	waitErr := cmd.Wait()
	// Wait has finished copying, so closing the writers ends the
	// streams after the last chunk.
	stdoutWriter.Close()
	stderrWriter.Close()
	readers.Wait()

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		runner.logger.Debug("output left open by a descendant", "label", invocation.Label)
		waitErr = nil
	}
	exitCode = 0
	if waitErr != nil {
		var exitError *exec.ExitError
		if !errors.As(waitErr, &exitError) && ctx.Err() == nil {
			return -1, fmt.Errorf("waiting for %s: %w", invocation.Label, waitErr)
		}
		exitCode = -1
		if exitError != nil {
			exitCode = exitError.ExitCode()
		}
	}
	runner.log.Append(runner.clock.Now(), fmt.Sprintf("exit: %d", exitCode))
	runner.logger.Debug("process exited", "label", invocation.Label, "exit_code", exitCode)

	if ctx.Err() != nil {
		return exitCode, fmt.Errorf("%s interrupted: %w", invocation.Label, ctx.Err())
	}
	return exitCode, nil
}

func (runner *Runner) launchFailed(invocation Invocation, err error) error {
	launchErr := &LaunchError{Path: invocation.Path, Err: err}
	runner.output.Append(launchErr.Error(), true, false)
	runner.log.Append(runner.clock.Now(), "launch failed: "+launchErr.Error())
	runner.logger.Warn("launch failed", "label", invocation.Label, "path", invocation.Path, "error", err)
	return launchErr
}

// stream reads source to EOF, dispatching each decoded chunk.
func (runner *Runner) stream(ctx context.Context, source io.Reader, isError bool) {
	err := decodeChunks(source, ChunkSize, func(text string) {
		runner.dispatch(ctx, text, isError)
	})
	if err != nil {
		runner.logger.Debug("output stream ended", "stderr", isError, "error", err)
	}
}

// dispatch classifies one chunk, publishes it, mirrors it to the log,
// and parks on the bridge if it is a prompt.
func (runner *Runner) dispatch(ctx context.Context, text string, isError bool) {
	isPrompt := runner.detector.Detect(text)
	if isPrompt {
		runner.output.Append(text, false, true)
	} else {
		runner.output.Append(text, isError, false)
	}

	prefix := "stdout: "
	if isError {
		prefix = "stderr: "
	}
	now := runner.clock.Now()
	for _, line := range output.SplitLines(text) {
		runner.log.Append(now, prefix+line)
	}

	if isPrompt && runner.bridge != nil {
		if err := runner.bridge.AwaitInput(ctx, strings.TrimSpace(text)); err != nil {
			runner.logger.Warn("prompt not answered", "prompt", text, "error", err)
			runner.output.Append("input request abandoned: "+err.Error(), true, false)
		}
	}
}
