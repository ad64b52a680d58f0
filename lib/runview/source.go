// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runview

import (
	"context"

	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// Snapshot is one poll of a run: the executor state and the output
// appended since the requested sequence number.
type Snapshot struct {
	State pipeline.State
	Lines []output.Line

	// Next is the sequence number to poll from next time.
	Next uint64
}

// Source is where the view reads run progress from and sends the
// user's actions to.
type Source interface {
	Poll(ctx context.Context, since uint64) (Snapshot, error)
	SubmitInput(ctx context.Context, text string) (bool, error)
	Cancel(ctx context.Context) (bool, error)
}

// ExecutorSource reads an executor in the same process.
type ExecutorSource struct {
	Executor *pipeline.Executor
}

// Poll implements [Source].
func (source ExecutorSource) Poll(_ context.Context, since uint64) (Snapshot, error) {
	// Output first: a state read afterwards can only be newer.
	lines := source.Executor.OutputSince(since)
	return Snapshot{
		State: source.Executor.State(),
		Lines: lines,
		Next:  nextSeq(lines, since),
	}, nil
}

// SubmitInput implements [Source].
func (source ExecutorSource) SubmitInput(_ context.Context, text string) (bool, error) {
	return source.Executor.SubmitInput(text), nil
}

// Cancel implements [Source].
func (source ExecutorSource) Cancel(_ context.Context) (bool, error) {
	return source.Executor.Cancel(), nil
}

// ClientSource reads the daemon's executor through its control socket.
type ClientSource struct {
	Client *control.Client
}

// Poll implements [Source].
func (source ClientSource) Poll(ctx context.Context, since uint64) (Snapshot, error) {
	response, err := source.Client.Output(ctx, since)
	if err != nil {
		return Snapshot{}, err
	}
	state, err := source.Client.State(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{State: state, Lines: response.Lines, Next: response.Next}, nil
}

// SubmitInput implements [Source].
func (source ClientSource) SubmitInput(ctx context.Context, text string) (bool, error) {
	return source.Client.SubmitInput(ctx, text)
}

// Cancel implements [Source].
func (source ClientSource) Cancel(ctx context.Context) (bool, error) {
	return source.Client.Cancel(ctx)
}

func nextSeq(lines []output.Line, since uint64) uint64 {
	if len(lines) == 0 {
		return since
	}
	return lines[len(lines)-1].Seq + 1
}
