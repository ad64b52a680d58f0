// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package job implements the commands that run a maintenance job:
// the full pipeline, the diagnostics, the listings and the service
// actions. A job runs in this process by default and in the daemon
// with --remote; either way its output streams to the terminal and
// its prompts are answered from stdin.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/engine"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/runview"
)

// jobParams are the flags every job command takes.
type jobParams struct {
	cli.ConfigFlag
	cli.JSONOutput
	Remote bool `flag:"remote" desc:"run the job in the daemon instead of in this process"`
}

// execution describes how one job is shown.
type execution struct {
	request pipeline.Request

	// quiet suppresses the job's output; listings print a table of
	// the parsed result instead.
	quiet bool

	// tui shows the run view instead of plain lines.
	tui bool
}

// execute runs the job and waits for it. The result is returned even
// when the job failed; the error then describes why.
func (params *jobParams) execute(ctx context.Context, cfg *config.Config, job execution, logger *slog.Logger) (*pipeline.Result, error) {
	if err := job.request.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}
	if job.request.Trigger == "" {
		job.request.Trigger = "manual"
	}

	console := Console{Out: os.Stdout, Err: os.Stderr, Answer: TerminalAnswerer(os.Stdin, os.Stderr)}
	if params.OutputJSON {
		// stdout carries the JSON result.
		console.Out = os.Stderr
	}
	if job.quiet {
		console.Out, console.Err = io.Discard, io.Discard
	}

	if params.Remote {
		return executeRemote(ctx, cfg, job, console)
	}
	return executeLocal(ctx, cfg, job, console, logger)
}

func executeLocal(ctx context.Context, cfg *config.Config, job execution, console Console, logger *slog.Logger) (*pipeline.Result, error) {
	var logHandler *runview.LogHandler
	if job.tui {
		// The run view owns the terminal; diagnostics go to its status
		// bar.
		logHandler = runview.NewLogHandler(cli.LogLevel.Level())
		logger = slog.New(logHandler)
	}

	eng, err := engine.Open(cfg, engine.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	defer eng.Close()
	executor := eng.Executor

	// Interrupts stop the job at a step boundary; the running step's
	// processes outlive ctx.
	if err := executor.Start(context.WithoutCancel(ctx), job.request); err != nil {
		if errors.Is(err, pipeline.ErrInvalidRequest) {
			return nil, cli.Validation("%w", err)
		}
		return nil, err
	}
	source := runview.ExecutorSource{Executor: executor}
	runID := executor.State().RunID

	if job.tui {
		err = showRunView(ctx, source, cfg, logHandler)
	} else {
		_, err = console.Follow(ctx, source, 0, runID)
	}
	if err != nil || executor.State().Running {
		if executor.Cancel() {
			fmt.Fprintln(os.Stderr, "Cancelling: the job stops after the current step.")
		}
	}

	result, waitErr := executor.Wait(context.Background())
	if waitErr != nil {
		return nil, waitErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return result, err
	}
	return result, result.Err()
}

func executeRemote(ctx context.Context, cfg *config.Config, job execution, console Console) (*pipeline.Result, error) {
	client := control.NewClient(cfg.Control.Socket)

	// Lines already in the daemon's buffer belong to an earlier job.
	previous, err := client.Output(ctx, 0)
	if err != nil {
		return nil, daemonError(cfg.Control.Socket, err)
	}
	preferences := job.request.Preferences
	state, err := client.Start(ctx, control.StartRequest{
		Kind:        job.request.Kind,
		Preferences: &preferences,
		Service:     job.request.Service,
		Verb:        job.request.Action,
		Packages:    job.request.Packages,
	})
	if err != nil {
		return nil, daemonError(cfg.Control.Socket, err)
	}

	source := runview.ClientSource{Client: client}
	if job.tui {
		err = showRunView(ctx, source, cfg, nil)
	} else {
		_, err = console.Follow(ctx, source, previous.Next, state.RunID)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Detaching leaves the daemon's job running.
			fmt.Fprintf(os.Stderr, "Detached; the job continues in the daemon (run %s).\n", state.RunID)
			return nil, &cli.ExitError{Code: 130}
		}
		return nil, daemonError(cfg.Control.Socket, err)
	}

	result, err := client.Last(context.WithoutCancel(ctx))
	if err != nil {
		return nil, daemonError(cfg.Control.Socket, err)
	}
	if result == nil || result.ID.String() != state.RunID {
		return nil, cli.Conflict("run %s finished but the daemon reports another result", state.RunID)
	}
	return result, result.Err()
}

// showRunView runs the TUI until the job finishes or the user quits.
func showRunView(ctx context.Context, source runview.Source, cfg *config.Config, logHandler *runview.LogHandler) error {
	model := runview.NewModel(source, runview.Options{
		ExitWhenDone: true,
		MaxLines:     cfg.Output.MaxLines,
	})
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if logHandler != nil {
		logHandler.SetProgram(program)
		defer logHandler.SetProgram(nil)
	}
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return context.Canceled
		}
		return fmt.Errorf("run view: %w", err)
	}
	return nil
}

// daemonError categorizes a control socket failure.
func daemonError(socket string, err error) error {
	var daemon *control.Error
	switch {
	case errors.As(err, &daemon) && strings.Contains(daemon.Message, pipeline.ErrBusy.Error()):
		return cli.Conflict("%s", daemon.Message)
	case errors.As(err, &daemon) && strings.Contains(daemon.Message, pipeline.ErrInvalidRequest.Error()):
		return cli.Validation("%s", daemon.Message)
	case errors.As(err, &daemon):
		return cli.Internal("%w", err)
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.ECONNREFUSED):
		return cli.Transient("the daemon is not running (no socket at %s); start it with 'brewkeep daemon'", socket)
	}
	return cli.Transient("%w", err)
}

// report prints the result's JSON when requested and converts a
// failure into the exit status.
func (params *jobParams) report(result *pipeline.Result, err error) error {
	if result != nil && params.OutputJSON {
		if writeErr := cli.WriteJSON(result); writeErr != nil {
			return writeErr
		}
		if err != nil {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}
	if result != nil && result.Summary != "" {
		fmt.Fprintln(os.Stderr, result.Summary)
	}
	if errors.Is(err, pipeline.ErrBusy) {
		return cli.Conflict("%w", err)
	}
	if errors.Is(err, pipeline.ErrPreconditionFailed) {
		return cli.Transient("%w", err)
	}
	return err
}
