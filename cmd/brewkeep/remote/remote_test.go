// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brewkeep/brewkeep/cmd/brewkeep/cli"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/testutil"
)

const testTimeout = 5 * time.Second

// serveIdle starts a control server over an idle executor and returns
// its socket path.
func serveIdle(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := control.NewServer(socketPath, nil)
	executor := pipeline.New(pipeline.Config{Toolchain: pipeline.Toolchain{Brew: "/usr/bin/false", Shell: "/bin/sh"}})
	control.Register(server, executor, config.Preferences{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, testTimeout, "server did not stop")
	})
	testutil.RequireEventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, testTimeout, "socket never appeared")
	return socketPath
}

func category(err error) cli.ErrorCategory {
	var toolError *cli.ToolError
	if errors.As(err, &toolError) {
		return toolError.Category
	}
	return ""
}

func TestCommandsAgainstIdleDaemon(t *testing.T) {
	t.Parallel()

	socket := serveIdle(t)
	for _, test := range []struct {
		name    string
		command *cli.Command
		want    cli.ErrorCategory
	}{
		{"cancel", CancelCommand(), cli.CategoryNotFound},
		{"input", InputCommand(), cli.CategoryNotFound},
	} {
		t.Run(test.name, func(t *testing.T) {
			err := test.command.Execute(context.Background(), []string{"--socket", socket})
			if got := category(err); got != test.want {
				t.Errorf("error = %v (category %q), want category %q", err, got, test.want)
			}
		})
	}
}

func TestCommandsWithoutDaemon(t *testing.T) {
	t.Parallel()

	socket := filepath.Join(t.TempDir(), "missing.sock")
	for _, command := range []*cli.Command{StatusCommand(), CancelCommand(), TailCommand(), AttachCommand()} {
		t.Run(command.Name, func(t *testing.T) {
			err := command.Execute(context.Background(), []string{"--socket", socket})
			if got := category(err); got != cli.CategoryTransient {
				t.Errorf("error = %v (category %q), want transient", err, got)
			}
			if err != nil && !strings.Contains(err.Error(), "brewkeep daemon") {
				t.Errorf("error %q does not say how to start the daemon", err)
			}
		})
	}
}

func TestTailRejectsNegativeLines(t *testing.T) {
	t.Parallel()

	err := TailCommand().Execute(context.Background(), []string{"--lines", "-1"})
	if got := category(err); got != cli.CategoryValidation {
		t.Errorf("error = %v, want a validation error", err)
	}
}

func TestPrintStatus(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, test := range []struct {
		name  string
		state pipeline.State
		want  []string
	}{
		{
			name:  "idle",
			state: pipeline.State{Status: pipeline.StatusIdle},
			want:  []string{"Idle"},
		},
		{
			name: "waiting",
			state: pipeline.State{
				Running: true, Kind: pipeline.KindRun, RunID: "3f2a", Step: 2, Steps: 5,
				Status: "Upgrading packages...", WaitingForInput: true, Prompt: "Password:", QueuedPrompts: 1,
			},
			want: []string{"Running run (run 3f2a)", "[2/5] Upgrading packages...", `waiting: "Password:" (+1 queued)`},
		},
		{
			name: "last failure",
			state: pipeline.State{
				LastKind: pipeline.KindDoctor, LastSummary: "2 issue(s)", LastFinished: now.Add(-90 * time.Second),
			},
			want: []string{"Last: doctor failed 1m30s ago", "2 issue(s)"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			var buffer bytes.Buffer
			printStatus(&buffer, test.state, now)
			for _, want := range test.want {
				if !strings.Contains(buffer.String(), want) {
					t.Errorf("status output %q lacks %q", buffer.String(), want)
				}
			}
		})
	}
}

func TestConnectionPrefersSocketFlag(t *testing.T) {
	t.Parallel()

	connection := Connection{Socket: "/tmp/explicit.sock"}
	_, socket, err := connection.Client()
	if err != nil || socket != "/tmp/explicit.sock" {
		t.Errorf("Client = %q, %v", socket, err)
	}
}
