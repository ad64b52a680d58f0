// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine assembles a pipeline executor and its collaborators
// from a loaded configuration. The foreground job commands and the
// daemon share it so both run with the same log, archive and
// notification setup.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/brewkeep/brewkeep/lib/clock"
	"github.com/brewkeep/brewkeep/lib/compress"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/history"
	"github.com/brewkeep/brewkeep/lib/logsink"
	"github.com/brewkeep/brewkeep/lib/netcheck"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/prompt"
	"github.com/brewkeep/brewkeep/lib/stepdef"
)

// Options adjust how the engine is assembled.
type Options struct {
	Logger *slog.Logger

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Getenv reads the parent environment for paths.pass_env.
	// Defaults to os.Getenv.
	Getenv func(string) string

	// SkipConnectivity leaves out the network check even when the
	// configuration enables it.
	SkipConnectivity bool

	// Notifier replaces the notifiers built from the notify section.
	Notifier notify.Notifier

	// RefreshAfterRun is passed to the executor.
	RefreshAfterRun bool
}

// Engine owns an executor and the files it writes to.
type Engine struct {
	Config   *config.Config
	Executor *pipeline.Executor

	// History is nil when history is disabled.
	History *history.Store

	// Notifier is what the executor delivers summaries to.
	Notifier notify.Notifier

	log    *logsink.File
	logger *slog.Logger
}

// Open creates the state directories and opens the run log and the
// history archive. The caller must Close the engine.
func Open(cfg *config.Config, options Options) (*Engine, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	getenv := options.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	var custom *stepdef.File
	if cfg.Paths.StepsFile != "" {
		file, err := stepdef.ReadFile(cfg.Paths.StepsFile)
		if err != nil {
			return nil, err
		}
		if issues := stepdef.Validate(file); len(issues) > 0 {
			return nil, fmt.Errorf("steps file %s:\n  %s", cfg.Paths.StepsFile, strings.Join(issues, "\n  "))
		}
		custom = file
	}

	promptTimeout, err := cfg.PromptTimeout()
	if err != nil {
		return nil, err
	}
	// A configured zero waits forever; the executor reads zero as
	// "use the default".
	if promptTimeout == 0 {
		promptTimeout = -1
	}

	tag, err := compress.Parse(cfg.Log.Compression)
	if err != nil {
		return nil, err
	}
	logFile, err := logsink.Open(logsink.Config{
		Path:        cfg.Log.File,
		MaxBytes:    cfg.Log.MaxBytes,
		Keep:        cfg.Log.Keep,
		Compression: tag,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{Config: cfg, log: logFile, logger: logger}

	executorConfig := pipeline.Config{
		Toolchain:       pipeline.NewToolchain(cfg, custom, getenv),
		OutputCapacity:  cfg.Output.MaxLines,
		Detector:        prompt.NewDetector(Cues(cfg.Prompt.Patterns)),
		PromptTimeout:   promptTimeout,
		Log:             logFile,
		Clock:           options.Clock,
		Logger:          logger,
		RefreshAfterRun: options.RefreshAfterRun,
	}

	if cfg.History.Enabled {
		store, err := history.Open(history.Config{
			Path:   cfg.History.Database,
			Keep:   cfg.History.Keep,
			Logger: logger,
		})
		if err != nil {
			logFile.Close()
			return nil, err
		}
		engine.History = store
		executorConfig.Archive = store
	}

	if cfg.Connectivity.Enabled && !options.SkipConnectivity {
		timeout, err := cfg.ConnectivityTimeout()
		if err != nil {
			engine.Close()
			return nil, err
		}
		executorConfig.Connectivity = netcheck.Checker{Address: cfg.Connectivity.Address, Timeout: timeout}
	}

	engine.Notifier = options.Notifier
	if engine.Notifier == nil {
		engine.Notifier = Notifier(cfg.Notify, logger)
	}
	executorConfig.Notifier = engine.Notifier

	engine.Executor = pipeline.New(executorConfig)
	return engine, nil
}

// Close closes the run log and the history archive. Wait for the
// executor first: a finishing job still writes to both.
func (engine *Engine) Close() error {
	var errs []error
	if engine.History != nil {
		errs = append(errs, engine.History.Close())
	}
	errs = append(errs, engine.log.Close())
	return errors.Join(errs...)
}

// LogPath is the live run log.
func (engine *Engine) LogPath() string {
	return engine.log.Path()
}

// Notifier builds the notifier chain for cfg: every summary is logged,
// and the notify command runs when one is configured. With
// suppress_unchanged, a success identical to the previous one is
// dropped.
func Notifier(cfg config.NotifyConfig, logger *slog.Logger) notify.Notifier {
	chain := notify.Multi{notify.Log{Logger: logger}}
	if len(cfg.Command) > 0 {
		chain = append(chain, notify.Command{Argv: cfg.Command, Title: cfg.Title, Logger: logger})
	}
	if cfg.SuppressUnchanged {
		return notify.NewDedup(chain)
	}
	return chain
}

// Cues converts the configured prompt patterns.
func Cues(patterns []config.PromptPattern) []prompt.Cue {
	if len(patterns) == 0 {
		return nil
	}
	cues := make([]prompt.Cue, 0, len(patterns))
	for _, pattern := range patterns {
		cues = append(cues, prompt.Cue{Text: pattern.Text, CaseSensitive: pattern.CaseSensitive})
	}
	return cues
}
