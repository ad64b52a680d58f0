// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package job

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/runview"
)

// DefaultPollInterval is how often a console polls its source.
const DefaultPollInterval = 200 * time.Millisecond

// Answerer reads the answer to prompt from the user.
type Answerer func(ctx context.Context, prompt string) (string, error)

// Console prints a job's output as plain lines and answers its
// prompts. It is the non-TUI counterpart of the run view.
type Console struct {
	// Out receives standard output lines and Err the lines the job
	// wrote to stderr.
	Out io.Writer
	Err io.Writer

	// Answer is asked for input whenever the job waits for some. Nil
	// leaves prompts unanswered until they time out.
	Answer Answerer

	PollInterval time.Duration
}

// Follow prints output from since onward until the job identified by
// runID is no longer running, then returns the last state seen. An
// empty runID follows whatever runs. Follow returns ctx.Err() when ctx
// is done first; the job keeps running.
func (console Console) Follow(ctx context.Context, source runview.Source, since uint64, runID string) (pipeline.State, error) {
	interval := console.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var state pipeline.State
	for {
		snapshot, err := source.Poll(ctx, since)
		if err != nil {
			return state, err
		}
		console.print(snapshot)
		since = snapshot.Next
		state = snapshot.State

		if !state.Running || (runID != "" && state.RunID != runID) {
			// Output is read before state, so lines written just before
			// the job finished may still be pending.
			if final, err := source.Poll(ctx, since); err == nil {
				console.print(final)
			}
			return state, nil
		}

		// Submitting is synchronous, so any later poll that still shows
		// a waiting prompt shows a different one.
		if state.WaitingForInput && console.Answer != nil {
			text, err := console.Answer(ctx, state.Prompt)
			if err != nil {
				return state, err
			}
			accepted, err := source.SubmitInput(ctx, text)
			if err != nil {
				return state, err
			}
			if !accepted {
				fmt.Fprintln(console.errWriter(), "(the prompt was no longer waiting; input discarded)")
			}
			continue
		}

		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (console Console) print(snapshot runview.Snapshot) {
	for _, line := range snapshot.Lines {
		console.Print(line)
	}
}

// Print writes one output line to Out, or to Err when the job wrote it
// to stderr.
func (console Console) Print(line output.Line) {
	if line.IsError {
		fmt.Fprintln(console.errWriter(), line.Text)
	} else {
		fmt.Fprintln(console.outWriter(), line.Text)
	}
}

func (console Console) outWriter() io.Writer {
	if console.Out == nil {
		return io.Discard
	}
	return console.Out
}

func (console Console) errWriter() io.Writer {
	if console.Err == nil {
		return io.Discard
	}
	return console.Err
}

// TerminalAnswerer reads answers from in. On a terminal the input is
// not echoed; otherwise one line is read per prompt. Prompts whose
// text was already printed as output are not repeated.
func TerminalAnswerer(in *os.File, out io.Writer) Answerer {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(in)
		return func(ctx context.Context, _ string) (string, error) {
			line, err := reader.ReadString('\n')
			if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
				return "", fmt.Errorf("reading input: %w", err)
			}
			return strings.TrimRight(line, "\r\n"), nil
		}
	}

	return func(ctx context.Context, _ string) (string, error) {
		saved, err := term.GetState(fd)
		if err != nil {
			return "", fmt.Errorf("reading terminal state: %w", err)
		}
		type answer struct {
			text []byte
			err  error
		}
		done := make(chan answer, 1)
		go func() {
			text, err := term.ReadPassword(fd)
			done <- answer{text, err}
		}()

		select {
		case result := <-done:
			fmt.Fprintln(out)
			if result.err != nil {
				return "", fmt.Errorf("reading input: %w", result.err)
			}
			return string(result.text), nil
		case <-ctx.Done():
			// The reader stays blocked until the process exits; put the
			// echo back now.
			term.Restore(fd, saved)
			fmt.Fprintln(out)
			return "", ctx.Err()
		}
	}
}
