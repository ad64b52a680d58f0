// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"github.com/spf13/pflag"

	"github.com/brewkeep/brewkeep/lib/config"
)

// ConfigFlag adds --config to a command's parameters.
//
//	type runParams struct {
//	    cli.ConfigFlag
//	}
//
//	cfg, err := params.Load()
type ConfigFlag struct {
	Path string
}

// AddFlags registers --config and its -c shorthand.
func (c *ConfigFlag) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.Path, "config", "c", "",
		"configuration file (default $"+config.EnvVar+", then built-in defaults)")
}

// Load resolves and validates the configuration and applies its log
// level to [LogLevel].
func (c *ConfigFlag) Load() (*config.Config, error) {
	cfg, err := config.Resolve(c.Path)
	if err != nil {
		return nil, Validation("%w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Validation("invalid configuration:\n%w", err)
	}
	if level, err := ParseLevel(cfg.Log.Level); err == nil {
		LogLevel.Set(level)
	}
	return cfg, nil
}
