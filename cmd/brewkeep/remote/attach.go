// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/runview"
)

type attachParams struct {
	Connection
	Exit bool `flag:"exit" desc:"quit the view when the job finishes"`
}

// AttachCommand returns the "attach" command.
func AttachCommand() *cli.Command {
	var params attachParams

	return &cli.Command{
		Name:    "attach",
		Summary: "Watch and answer the daemon's job in the run view",
		Description: `Open the full-screen run view on the daemon's job. Output scrolls live,
prompts open a masked input box, and the action menu cancels the job.
Quitting the view detaches; the job keeps running.`,
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) > 0 {
				return cli.Validation("attach takes no arguments, got %q", args)
			}
			client, socket, err := params.Client()
			if err != nil {
				return err
			}
			if _, err := client.State(ctx); err != nil {
				return unreachable(socket, err)
			}

			model := runview.NewModel(runview.ClientSource{Client: client}, runview.Options{ExitWhenDone: params.Exit})
			program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
			final, err := program.Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run view: %w", err)
			}
			if view, ok := final.(runview.Model); ok {
				state := view.State()
				logger.Debug("detached", "running", state.Running, "run_id", state.RunID)
			}
			return nil
		},
	}
}
