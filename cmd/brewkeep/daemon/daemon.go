// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon runs brewkeep as a long-lived background process: it
// serves the control socket, starts scheduled runs, and stops itself
// when Homebrew upgrades the brewkeep binary underneath it.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/engine"
	"github.com/brewkeep/brewkeep/lib/clock"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/schedule"
	"github.com/brewkeep/brewkeep/lib/version"
)

// ErrAlreadyRunning is returned by Run when another daemon answers on
// the control socket.
var ErrAlreadyRunning = errors.New("daemon: another daemon is serving the control socket")

// ErrUpgraded is the cause Run stops with after the watched binary
// changed on disk.
var ErrUpgraded = errors.New("daemon: brewkeep binary was replaced")

// Options adjust a daemon.
type Options struct {
	Logger *slog.Logger

	// Clock drives the schedule. Defaults to the real clock.
	Clock clock.Clock

	// Binary, when set, is rechecked after every job. The daemon
	// stops with ErrUpgraded once it has changed.
	Binary *version.Binary

	// Notifier replaces the notifiers built from the notify section.
	Notifier notify.Notifier

	// SkipSchedule disables scheduled runs even when configured.
	SkipSchedule bool

	SkipConnectivity bool
}

// Schedule returns the configured run schedule, or nil when scheduled
// runs are disabled.
func Schedule(cfg config.ScheduleConfig) (schedule.Schedule, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Cron != "" {
		return schedule.Parse(cfg.Cron, time.Local)
	}
	return schedule.Parse("@every "+cfg.Interval, nil)
}

// Run serves the control socket and the schedule until ctx is done or
// the binary is upgraded, then waits for the current job to finish
// and closes the engine. A job in progress when ctx is cancelled is
// cancelled at its next step boundary.
func Run(ctx context.Context, cfg *config.Config, options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}

	sched, err := Schedule(cfg.Schedule)
	if err != nil {
		return err
	}
	if options.SkipSchedule {
		sched = nil
	}

	if alive(ctx, cfg.Control.Socket) {
		return fmt.Errorf("%w (%s)", ErrAlreadyRunning, cfg.Control.Socket)
	}

	eng, err := engine.Open(cfg, engine.Options{
		Logger:           logger,
		Clock:            clk,
		Notifier:         options.Notifier,
		SkipConnectivity: options.SkipConnectivity,
		RefreshAfterRun:  true,
	})
	if err != nil {
		return err
	}
	executor := eng.Executor

	ctx, stop := context.WithCancelCause(ctx)
	defer stop(nil)

	server := control.NewServer(cfg.Control.Socket, logger.With("component", "control"))
	control.Register(server, executor, cfg.Preferences)

	var group sync.WaitGroup
	if options.Binary != nil {
		changes, unsubscribe := executor.Subscribe()
		seen := executor.State().LastFinished
		group.Go(func() {
			defer unsubscribe()
			watchBinary(ctx, executor, changes, seen, options.Binary, stop, logger)
		})
	}

	serveErr := make(chan error, 1)
	group.Go(func() {
		err := server.Serve(ctx)
		serveErr <- err
		if err != nil {
			stop(err)
		}
	})

	if sched != nil {
		logger.Info("schedule enabled", "schedule", sched.String())
		group.Go(func() {
			trigger := func(time.Time) bool {
				request := pipeline.Request{Kind: pipeline.KindRun, Preferences: cfg.Preferences, Trigger: "schedule"}
				err := executor.Start(context.WithoutCancel(ctx), request)
				if err != nil && !errors.Is(err, pipeline.ErrBusy) {
					logger.Error("scheduled run failed to start", "error", err)
				}
				return err == nil
			}
			err := schedule.Loop(ctx, clk, sched, trigger, logger.With("component", "schedule"))
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("schedule stopped", "error", err)
			}
		})
	}


	logger.Info("daemon started", "socket", cfg.Control.Socket, "version", version.Short())
	<-ctx.Done()
	cause := context.Cause(ctx)
	logger.Info("daemon stopping", "cause", cause)

	group.Wait()
	if executor.Cancel() {
		logger.Info("cancelling the running job at its next step")
	}
	if _, err := executor.Wait(context.Background()); err != nil {
		logger.Error("waiting for the running job", "error", err)
	}
	closeErr := eng.Close()

	if err := <-serveErr; err != nil {
		return err
	}
	if errors.Is(cause, ErrUpgraded) {
		return errors.Join(ErrUpgraded, closeErr)
	}
	return closeErr
}

// alive reports whether a daemon answers on socket.
func alive(ctx context.Context, socket string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := control.NewClient(socket).State(ctx)
	return err == nil
}

// watchBinary checks the binary each time a job finishes and stops
// the daemon once it has been replaced.
func watchBinary(ctx context.Context, executor *pipeline.Executor, changes <-chan struct{}, seen time.Time, binary *version.Binary, stop context.CancelCauseFunc, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
		}
		finished := executor.State().LastFinished
		if finished.Equal(seen) {
			continue
		}
		seen = finished
		changed, err := binary.Changed()
		if err != nil {
			logger.Warn("checking the brewkeep binary", "path", binary.Path, "error", err)
			continue
		}
		if changed {
			logger.Info("brewkeep binary was upgraded, stopping so the service manager restarts it",
				"path", binary.Path, "previous", binary.Digest.Short())
			stop(ErrUpgraded)
			return
		}
	}
}
