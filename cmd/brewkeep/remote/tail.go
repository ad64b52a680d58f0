// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/job"
	"github.com/brewkeep/brewkeep/lib/runview"
)

type tailParams struct {
	Connection
	Follow bool `flag:"follow,f" desc:"keep printing until the current job finishes"`
	Lines  int  `flag:"lines,n" default:"0" desc:"print only the last N retained lines (0 prints all)"`
}

// TailCommand returns the "tail" command.
func TailCommand() *cli.Command {
	var params tailParams

	return &cli.Command{
		Name:    "tail",
		Summary: "Print the daemon's job output",
		Description: `Print the output the daemon retains for its current or last job. With
--follow, keep printing new lines until the job finishes. tail never
answers prompts; use attach for that.`,
		Examples: []cli.Example{
			{Description: "Follow a scheduled run", Command: "brewkeep tail -f"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("tail takes no arguments, got %q", args)
			}
			if params.Lines < 0 {
				return cli.Validation("--lines must not be negative")
			}
			client, socket, err := params.Client()
			if err != nil {
				return err
			}
			response, err := client.Output(ctx, 0)
			if err != nil {
				return unreachable(socket, err)
			}
			retained := response.Lines
			if params.Lines > 0 && len(retained) > params.Lines {
				retained = retained[len(retained)-params.Lines:]
			}
			console := job.Console{Out: os.Stdout, Err: os.Stderr}
			for _, line := range retained {
				console.Print(line)
			}
			if !params.Follow || !response.Running {
				return nil
			}

			source := runview.ClientSource{Client: client}
			if _, err := console.Follow(ctx, source, response.Next, ""); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return unreachable(socket, err)
			}
			return nil
		},
	}
}
