// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/cmd/brewkeep/job"
)

type inputParams struct {
	Connection
	cli.JSONOutput
}

type inputResult struct {
	Prompt   string `json:"prompt"`
	Accepted bool   `json:"accepted"`
}

// InputCommand returns the "input" command.
func InputCommand() *cli.Command {
	var params inputParams

	return &cli.Command{
		Name:    "input",
		Summary: "Answer the prompt the daemon's job is waiting on",
		Description: `Read one answer from the terminal without echo and send it to the daemon's
waiting prompt, typically a sudo password. When stdin is not a terminal,
one line is read from it. The answer is never logged.`,
		Examples: []cli.Example{
			{Description: "Answer a password prompt", Command: "brewkeep input"},
			{Description: "Answer from a password manager", Command: "pass show mac/sudo | brewkeep input"},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("input reads the answer from stdin, not from arguments")
			}
			client, socket, err := params.Client()
			if err != nil {
				return err
			}
			state, err := client.State(ctx)
			if err != nil {
				return unreachable(socket, err)
			}
			if !state.WaitingForInput {
				return cli.NotFound("no prompt is waiting for input")
			}

			fmt.Fprintf(os.Stderr, "%s ", state.Prompt)
			text, err := job.TerminalAnswerer(os.Stdin, os.Stderr)(ctx, state.Prompt)
			if err != nil {
				return err
			}
			accepted, err := client.SubmitInput(ctx, text)
			if err != nil {
				return unreachable(socket, err)
			}
			if done, err := params.EmitJSON(inputResult{Prompt: state.Prompt, Accepted: accepted}); done {
				if err == nil && !accepted {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			if !accepted {
				return cli.Conflict("the prompt was answered or timed out before the input arrived")
			}
			return nil
		},
	}
}
