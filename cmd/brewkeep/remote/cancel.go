// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
)

type cancelParams struct {
	Connection
	cli.JSONOutput
}

// CancelCommand returns the "cancel" command.
func CancelCommand() *cli.Command {
	var params cancelParams

	return &cli.Command{
		Name:    "cancel",
		Summary: "Stop the daemon's job after its current step",
		Description: `Ask the daemon to stop its running job. The current step is not killed:
it runs to completion, a waiting prompt is abandoned, and no further steps
start.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("cancel takes no arguments, got %q", args)
			}
			client, socket, err := params.Client()
			if err != nil {
				return err
			}
			cancelled, err := client.Cancel(ctx)
			if err != nil {
				return unreachable(socket, err)
			}
			if done, err := params.EmitJSON(map[string]bool{"cancelled": cancelled}); done {
				return err
			}
			if !cancelled {
				return cli.NotFound("no job is running")
			}
			fmt.Fprintln(os.Stdout, "Cancelling: the job stops after the current step.")
			return nil
		},
	}
}
