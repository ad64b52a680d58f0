// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Summary: "Show, validate or create the configuration",
		Description: `brewkeep reads its YAML configuration from --config, then from $` + config.EnvVar + `,
and otherwise runs on built-in defaults. Paths may use ${BREWKEEP_STATE}
and ${VAR:-default}.`,
		Subcommands: []*cli.Command{
			configShowCommand(),
			configValidateCommand(),
			configInitCommand(),
		},
	}
}

func configShowCommand() *cli.Command {
	var params cli.ConfigFlag

	return &cli.Command{
		Name:    "show",
		Summary: "Print the effective configuration as YAML",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("config show takes no arguments")
			}
			cfg, err := config.Resolve(params.Path)
			if err != nil {
				return cli.Validation("%w", err)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func configValidateCommand() *cli.Command {
	var params cli.ConfigFlag

	return &cli.Command{
		Name:    "validate",
		Summary: "Check the configuration for errors",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("config validate takes no arguments")
			}
			if _, err := params.Load(); err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, "Configuration is valid.")
			return nil
		},
	}
}

type configInitParams struct {
	Output string `flag:"output,o" desc:"where to write the configuration (default $BREWKEEP_CONFIG)"`
	Force  bool   `flag:"force" desc:"overwrite an existing file"`
}

func configInitCommand() *cli.Command {
	var params configInitParams

	return &cli.Command{
		Name:    "init",
		Summary: "Write the default configuration to a file",
		Params:  func() any { return &params },
		Run: func(_ context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("config init takes no arguments")
			}
			path := params.Output
			if path == "" {
				path = os.Getenv(config.EnvVar)
			}
			if path == "" {
				return cli.Validation("no destination: pass --output or set $%s", config.EnvVar)
			}
			return writeDefaultConfig(path, params.Force, logger)
		},
	}
}

func writeDefaultConfig(path string, force bool, logger *slog.Logger) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return cli.Conflict("%s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	data, err := config.Default().Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	logger.Info("wrote default configuration", "path", path)
	return nil
}
