// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brewkeep/brewkeep/lib/codec"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/parse"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/testutil"
)

const testTimeout = 10 * time.Second

// fakeExecutor records what the handlers ask of it.
type fakeExecutor struct {
	mutex    sync.Mutex
	started  []pipeline.Request
	inputs   []string
	startErr error
	lines    []output.Line
	running  bool
}

func (f *fakeExecutor) Start(ctx context.Context, request pipeline.Request) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, request)
	f.running = true
	return nil
}

func (f *fakeExecutor) State() pipeline.State {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return pipeline.State{Status: "Updating Homebrew...", Running: f.running, WaitingForInput: true, Prompt: "Password:"}
}

func (f *fakeExecutor) SubmitInput(text string) bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.inputs = append(f.inputs, text)
	return len(f.inputs) == 1
}

func (f *fakeExecutor) Cancel() bool { return true }

func (f *fakeExecutor) OutputSince(seq uint64) []output.Line {
	var lines []output.Line
	for _, line := range f.lines {
		if line.Seq >= seq {
			lines = append(lines, line)
		}
	}
	return lines
}

func (f *fakeExecutor) Outdated(context.Context) ([]parse.OutdatedPackage, error) {
	return []parse.OutdatedPackage{{Name: "git", Current: "2.40.0", Latest: "2.41.0"}}, nil
}

func (f *fakeExecutor) Services(context.Context) ([]parse.Service, error) {
	return nil, errors.New("brew services list exited 1")
}

func (f *fakeExecutor) Last() *pipeline.Result { return nil }

// serve starts a server for executor and returns a client for it.
func serve(t *testing.T, executor Executor, preferences config.Preferences) *Client {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := NewServer(socketPath, nil)
	Register(server, executor, preferences)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, testTimeout, "server did not stop"); err != nil {
			t.Errorf("Serve: %v", err)
		}
	})
	testutil.RequireEventually(t, func() bool {
		_, err := os.Stat(socketPath)
		return err == nil
	}, testTimeout, "socket never appeared")
	return NewClient(socketPath)
}

func TestSocketIsPrivate(t *testing.T) {
	t.Parallel()

	client := serve(t, &fakeExecutor{}, config.Preferences{})
	info, err := os.Stat(client.socketPath)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != 0o600 {
		t.Errorf("socket mode = %o, want 600", mode)
	}
}

func TestStartUsesConfiguredPreferences(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{}
	client := serve(t, executor, config.Preferences{RunCleanup: true})
	ctx := context.Background()

	if _, err := client.Start(ctx, StartRequest{Kind: pipeline.KindRun}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := client.Start(ctx, StartRequest{
		Kind:        pipeline.KindRun,
		Preferences: &config.Preferences{DryRun: true},
	}); err != nil {
		t.Fatalf("Start with preferences: %v", err)
	}
	if _, err := client.Start(ctx, StartRequest{Kind: pipeline.KindService, Service: "redis", Verb: "restart"}); err != nil {
		t.Fatalf("Start service: %v", err)
	}

	executor.mutex.Lock()
	defer executor.mutex.Unlock()
	if len(executor.started) != 3 {
		t.Fatalf("started = %+v", executor.started)
	}
	if first := executor.started[0]; !first.Preferences.RunCleanup || first.Trigger != "socket" {
		t.Errorf("first request = %+v, want configured preferences", first)
	}
	if second := executor.started[1]; !second.Preferences.DryRun || second.Preferences.RunCleanup {
		t.Errorf("second request = %+v, want explicit preferences", second)
	}
	if third := executor.started[2]; third.Service != "redis" || third.Action != "restart" {
		t.Errorf("third request = %+v", third)
	}
}

func TestStartErrorIsReported(t *testing.T) {
	t.Parallel()

	client := serve(t, &fakeExecutor{startErr: pipeline.ErrBusy}, config.Preferences{})
	_, err := client.Start(context.Background(), StartRequest{Kind: pipeline.KindDoctor})
	var daemonErr *Error
	if !errors.As(err, &daemonErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if daemonErr.Action != ActionStart || !strings.Contains(daemonErr.Message, "already in progress") {
		t.Errorf("error = %+v", daemonErr)
	}
}

func TestInputStateAndOutput(t *testing.T) {
	t.Parallel()

	executor := &fakeExecutor{lines: []output.Line{
		{Seq: 4, Text: "$ brew update"},
		{Seq: 5, Text: "Password:", IsPrompt: true},
	}}
	client := serve(t, executor, config.Preferences{})
	ctx := context.Background()

	state, err := client.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !state.WaitingForInput || state.Prompt != "Password:" {
		t.Errorf("state = %+v", state)
	}

	accepted, err := client.SubmitInput(ctx, "hunter2")
	if err != nil || !accepted {
		t.Errorf("SubmitInput = %t, %v; want accepted", accepted, err)
	}
	accepted, err = client.SubmitInput(ctx, "again")
	if err != nil || accepted {
		t.Errorf("second SubmitInput = %t, %v; want rejected", accepted, err)
	}

	response, err := client.Output(ctx, 5)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if len(response.Lines) != 1 || !response.Lines[0].IsPrompt || response.Next != 6 {
		t.Errorf("output = %+v", response)
	}
	response, err = client.Output(ctx, 6)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if len(response.Lines) != 0 || response.Next != 6 {
		t.Errorf("empty output = %+v", response)
	}
}

func TestListingsAndLast(t *testing.T) {
	t.Parallel()

	client := serve(t, &fakeExecutor{}, config.Preferences{})
	ctx := context.Background()

	packages, err := client.Outdated(ctx)
	if err != nil || len(packages) != 1 || packages[0].Latest != "2.41.0" {
		t.Errorf("Outdated = %+v, %v", packages, err)
	}
	if _, err := client.Services(ctx); err == nil || !strings.Contains(err.Error(), "exited 1") {
		t.Errorf("Services err = %v, want the listing failure", err)
	}
	last, err := client.Last(ctx)
	if err != nil || last != nil {
		t.Errorf("Last = %+v, %v; want nil", last, err)
	}
	cancelled, err := client.Cancel(ctx)
	if err != nil || !cancelled {
		t.Errorf("Cancel = %t, %v", cancelled, err)
	}
}

func TestUnknownAndMalformedRequests(t *testing.T) {
	t.Parallel()

	client := serve(t, &fakeExecutor{}, config.Preferences{})
	ctx := context.Background()

	var daemonErr *Error
	if err := client.Call(ctx, "reboot", nil, nil); !errors.As(err, &daemonErr) || !strings.Contains(daemonErr.Message, "unknown action") {
		t.Errorf("unknown action err = %v", err)
	}
	if err := client.Call(ctx, ActionState, []string{"not", "a", "map"}, nil); err == nil {
		t.Error("Call accepted non-map fields")
	}

	// A request without an action field.
	response, err := client.send(ctx, map[string]any{"text": "x"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if response.OK || response.Error != "missing required field: action" {
		t.Errorf("response = %+v", response)
	}
}

func TestRoundTripWithExecutor(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	brew := filepath.Join(dir, "brew")
	script := "#!/bin/sh\ncase \"$1\" in update) printf \"Password:\"; read answer; echo \"got $answer\" ;; esac\n"
	if err := os.WriteFile(brew, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	executor := pipeline.New(pipeline.Config{Toolchain: pipeline.Toolchain{
		Brew:  brew,
		Shell: "/bin/sh",
		Env:   map[string]string{"PATH": "/usr/bin:/bin"},
	}})
	client := serve(t, executor, config.Preferences{})
	ctx := context.Background()

	if _, err := client.Start(ctx, StartRequest{Kind: pipeline.KindRun}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testutil.RequireEventually(t, func() bool {
		state, err := client.State(ctx)
		return err == nil && state.WaitingForInput
	}, testTimeout, "prompt never surfaced over the socket")

	if accepted, err := client.SubmitInput(ctx, "sesame"); err != nil || !accepted {
		t.Fatalf("SubmitInput = %t, %v", accepted, err)
	}
	testutil.RequireEventually(t, func() bool {
		last, err := client.Last(ctx)
		return err == nil && last != nil
	}, testTimeout, "run never finished")

	response, err := client.Output(ctx, 0)
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if !strings.Contains(strings.Join(output.Texts(response.Lines), "\n"), "got sesame") {
		t.Errorf("output = %v", output.Texts(response.Lines))
	}
}

func TestResponseEnvelopeEncoding(t *testing.T) {
	t.Parallel()

	data, err := codec.Marshal(Response{OK: true})
	if err != nil {
		t.Fatal(err)
	}
	diagnostic, err := codec.Diagnose(data)
	if err != nil {
		t.Fatal(err)
	}
	if diagnostic != `{"ok": true}` {
		t.Errorf("envelope = %s, want {\"ok\": true}", diagnostic)
	}
}
