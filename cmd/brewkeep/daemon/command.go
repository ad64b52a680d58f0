// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/version"
)

type daemonParams struct {
	cli.ConfigFlag
	NoSchedule     bool `flag:"no-schedule" desc:"serve the control socket without starting scheduled runs"`
	NoUpgradeWatch bool `flag:"no-upgrade-watch" desc:"keep running after the brewkeep binary is upgraded"`
}

// Command returns the "daemon" command.
func Command() *cli.Command {
	var params daemonParams

	return &cli.Command{
		Name:    "daemon",
		Summary: "Run jobs in the background and serve the control socket",
		Description: `Run brewkeep in the foreground as a background service. The daemon
listens on control.socket, where the --remote job commands and status,
tail, attach, input and cancel find it, and starts runs on the
configured schedule.

After each job the daemon checks whether its own binary was replaced
(for example by 'brew upgrade brewkeep') and exits so that the service
manager restarts the new version. Run it under launchd with KeepAlive.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("daemon takes no arguments")
			}
			cfg, err := params.Load()
			if err != nil {
				return err
			}

			options := Options{Logger: logger, SkipSchedule: params.NoSchedule}
			if !params.NoUpgradeWatch {
				binary, err := version.Watch(os.Args[0])
				if err != nil {
					logger.Warn("not watching for upgrades", "error", err)
				} else {
					options.Binary = binary
				}
			}

			err = Run(ctx, cfg, options)
			switch {
			case errors.Is(err, ErrUpgraded):
				logger.Info("exiting after upgrade")
				return nil
			case errors.Is(err, ErrAlreadyRunning):
				return cli.Conflict("%v", err)
			case errors.Is(err, context.Canceled):
				return nil
			}
			return err
		},
	}
}
