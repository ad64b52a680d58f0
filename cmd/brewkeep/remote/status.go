// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

type statusParams struct {
	Connection
	cli.JSONOutput
}

// StatusCommand returns the "status" command.
func StatusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show what the daemon is doing",
		Description: `Show the daemon's current job, its step, any prompt waiting for input,
and the outcome of the last finished job.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("status takes no arguments, got %q", args)
			}
			client, socket, err := params.Client()
			if err != nil {
				return err
			}
			state, err := client.State(ctx)
			if err != nil {
				return unreachable(socket, err)
			}
			if done, err := params.EmitJSON(state); done {
				return err
			}
			printStatus(os.Stdout, state, time.Now())
			return nil
		},
	}
}

func printStatus(w io.Writer, state pipeline.State, now time.Time) {
	if state.Running {
		fmt.Fprintf(w, "Running %s (run %s)\n", state.Kind, state.RunID)
		if state.Steps > 0 {
			fmt.Fprintf(w, "  step:    [%d/%d] %s\n", state.Step, state.Steps, state.Status)
		} else {
			fmt.Fprintf(w, "  status:  %s\n", state.Status)
		}
	} else {
		fmt.Fprintln(w, "Idle")
	}
	if state.WaitingForInput {
		fmt.Fprintf(w, "  waiting: %q", state.Prompt)
		if state.QueuedPrompts > 0 {
			fmt.Fprintf(w, " (+%d queued)", state.QueuedPrompts)
		}
		fmt.Fprintln(w, "; answer with 'brewkeep input' or 'brewkeep attach'")
	}
	if !state.LastFinished.IsZero() {
		outcome := "succeeded"
		if !state.LastSuccess {
			outcome = "failed"
		}
		fmt.Fprintf(w, "Last: %s %s %s ago\n", state.LastKind, outcome, now.Sub(state.LastFinished).Round(time.Second))
		if state.LastSummary != "" {
			fmt.Fprintf(w, "  %s\n", state.LastSummary)
		}
	}
}
