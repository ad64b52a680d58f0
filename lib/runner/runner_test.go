// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brewkeep/brewkeep/lib/interactive"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/testutil"
)

const testTimeout = 10 * time.Second

var testEnv = map[string]string{"PATH": "/usr/bin:/bin"}

// recordingLog captures log entries.
type recordingLog struct {
	mutex   sync.Mutex
	entries []string
}

func (log *recordingLog) Append(_ time.Time, text string) {
	log.mutex.Lock()
	defer log.mutex.Unlock()
	log.entries = append(log.entries, text)
}

func (log *recordingLog) Entries() []string {
	log.mutex.Lock()
	defer log.mutex.Unlock()
	return append([]string(nil), log.entries...)
}

func contains(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}

func shell(script string) Invocation {
	return Invocation{Label: "test", Path: "sh", Args: []string{"-c", script}, Env: testEnv}
}

func TestRunStreamsBothChannels(t *testing.T) {
	t.Parallel()

	buffer := output.NewBuffer(0)
	log := &recordingLog{}
	runner := New(Config{Output: buffer, Log: log})

	script := `printf 'hello\n'; printf 'oops\n' >&2; exit 3`
	exitCode, err := runner.Run(context.Background(), shell(script))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != 3 {
		t.Errorf("exit code = %d, want 3", exitCode)
	}

	lines := buffer.Snapshot()
	if len(lines) != 3 {
		t.Fatalf("got lines %q, want echo plus two", output.Texts(lines))
	}
	if !strings.HasPrefix(lines[0].Text, "$ sh -c ") {
		t.Errorf("echo line = %q, want command echo", lines[0].Text)
	}

	var sawStdout, sawStderr bool
	for _, line := range lines[1:] {
		switch line.Text {
		case "hello":
			sawStdout = !line.IsError
		case "oops":
			sawStderr = line.IsError
		}
	}
	if !sawStdout || !sawStderr {
		t.Errorf("lines = %+v, want hello (stdout) and oops (stderr)", lines)
	}

	entries := log.Entries()
	for _, want := range []string{"stdout: hello", "stderr: oops", "exit: 3"} {
		if !contains(entries, want) {
			t.Errorf("log entries %q missing %q", entries, want)
		}
	}
	if !strings.HasPrefix(entries[0], "$ /") || !strings.HasSuffix(entries[0], "/sh -c "+script) {
		t.Errorf("first log entry = %q, want full-path command echo", entries[0])
	}
}

func TestRunUsesExactEnvironment(t *testing.T) {
	t.Setenv("BREWKEEP_LEAK_CHECK", "leaked")
	buffer := output.NewBuffer(0)
	runner := New(Config{Output: buffer})

	invocation := shell(`printf '%s|%s\n' "${BREWKEEP_LEAK_CHECK-unset}" "$FOO"`)
	invocation.Env = map[string]string{"PATH": "/usr/bin:/bin", "FOO": "bar"}
	if _, err := runner.Run(context.Background(), invocation); err != nil {
		t.Fatalf("Run: %v", err)
	}

	texts := output.Texts(buffer.Snapshot())
	if !contains(texts, "unset|bar") {
		t.Errorf("output = %q, want %q", texts, "unset|bar")
	}
}

func TestRunLaunchFailure(t *testing.T) {
	t.Parallel()

	buffer := output.NewBuffer(0)
	runner := New(Config{Output: buffer})

	for _, path := range []string{"/nonexistent/brew", "definitely-not-a-command"} {
		exitCode, err := runner.Run(context.Background(), Invocation{Label: "missing", Path: path, Env: testEnv})
		var launchErr *LaunchError
		if !errors.As(err, &launchErr) {
			t.Fatalf("Run(%s) error = %v, want *LaunchError", path, err)
		}
		if exitCode != -1 {
			t.Errorf("Run(%s) exit code = %d, want -1", path, exitCode)
		}
	}

	lines := buffer.Snapshot()
	if !lines[len(lines)-1].IsError {
		t.Errorf("launch failure line %q not marked as error", lines[len(lines)-1].Text)
	}
}

func TestRunPromptRoundTrip(t *testing.T) {
	t.Parallel()

	buffer := output.NewBuffer(0)
	bridge := interactive.NewBridge(interactive.Config{})
	runner := New(Config{Output: buffer, Bridge: bridge})

	type result struct {
		exitCode int
		err      error
	}
	done := make(chan result, 1)
	go func() {
		exitCode, err := runner.Run(context.Background(),
			shell(`printf 'Password:'; read answer; printf 'got %s\n' "$answer"`))
		done <- result{exitCode, err}
	}()

	testutil.RequireEventually(t, func() bool { return bridge.Snapshot().Waiting() }, testTimeout,
		"prompt never surfaced")
	if prompt := bridge.Snapshot().Prompt; prompt != "Password:" {
		t.Errorf("prompt = %q, want %q", prompt, "Password:")
	}
	if !bridge.Submit("secret") {
		t.Fatal("Submit = false")
	}

	outcome := testutil.RequireReceive(t, done, testTimeout, "run did not finish after input")
	if outcome.err != nil || outcome.exitCode != 0 {
		t.Fatalf("Run = (%d, %v), want (0, nil)", outcome.exitCode, outcome.err)
	}

	var sawPrompt, sawAnswer bool
	for _, line := range buffer.Snapshot() {
		if line.Text == "Password:" {
			sawPrompt = line.IsPrompt && !line.IsError
		}
		if line.Text == "got secret" {
			sawAnswer = true
		}
	}
	if !sawPrompt || !sawAnswer {
		t.Errorf("output = %+v, want prompt line and echoed answer", buffer.Snapshot())
	}
	if bridge.Snapshot().State != interactive.StateIdle {
		t.Errorf("bridge state = %v after run, want idle", bridge.Snapshot().State)
	}
}

func TestRunPromptOnStderrIsNotError(t *testing.T) {
	t.Parallel()

	buffer := output.NewBuffer(0)
	bridge := interactive.NewBridge(interactive.Config{})
	runner := New(Config{Output: buffer, Bridge: bridge})

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(context.Background(), shell(`printf 'sudo: password for alice:' >&2; read answer`))
		done <- err
	}()
	testutil.RequireEventually(t, func() bool { return bridge.Snapshot().Waiting() }, testTimeout)
	bridge.Submit("x")
	if err := testutil.RequireReceive(t, done, testTimeout); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, line := range buffer.Snapshot() {
		if line.IsPrompt && line.IsError {
			t.Errorf("prompt line %q classified as error", line.Text)
		}
	}
}

func TestRunAbortClosesStdin(t *testing.T) {
	t.Parallel()

	bridge := interactive.NewBridge(interactive.Config{})
	runner := New(Config{Output: output.NewBuffer(0), Bridge: bridge})

	done := make(chan int, 1)
	go func() {
		exitCode, _ := runner.Run(context.Background(), shell(`printf 'Password:'; read answer || exit 7`))
		done <- exitCode
	}()
	testutil.RequireEventually(t, func() bool { return bridge.Snapshot().Waiting() }, testTimeout)
	bridge.Abort()

	if exitCode := testutil.RequireReceive(t, done, testTimeout, "aborted run did not finish"); exitCode != 7 {
		t.Errorf("exit code = %d, want 7 (read saw EOF)", exitCode)
	}
}

func TestRunCancellation(t *testing.T) {
	t.Parallel()

	runner := New(Config{Output: output.NewBuffer(0), GracePeriod: 100 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := runner.Run(ctx, shell(`sleep 30`))
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	err := testutil.RequireReceive(t, done, testTimeout, "cancelled run did not finish")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRunReturnsWhenDescendantHoldsOutput(t *testing.T) {
	t.Parallel()

	buffer := output.NewBuffer(0)
	runner := New(Config{Output: buffer, GracePeriod: 200 * time.Millisecond})

	type outcome struct {
		exitCode int
		err      error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		exitCode, err := runner.Run(context.Background(), shell(`sleep 5 & echo started`))
		done <- outcome{exitCode, err}
	}()

	result := testutil.RequireReceive(t, done, testTimeout, "Run waited for the background process")
	if result.err != nil || result.exitCode != 0 {
		t.Errorf("Run = %d, %v; want 0, nil", result.exitCode, result.err)
	}
	if elapsed := time.Since(start); elapsed >= 4*time.Second {
		t.Errorf("Run took %v, want it bounded by the grace period", elapsed)
	}
	if !contains(output.Texts(buffer.Snapshot()), "started") {
		t.Errorf("output = %v, want %q", output.Texts(buffer.Snapshot()), "started")
	}
}

func TestInvocationLine(t *testing.T) {
	t.Parallel()

	invocation := Invocation{Path: "/opt/homebrew/bin/brew", Args: []string{"upgrade", "--greedy"}}
	if got := invocation.Line(); got != "$ brew upgrade --greedy" {
		t.Errorf("Line() = %q, want %q", got, "$ brew upgrade --greedy")
	}
}

func TestEnvList(t *testing.T) {
	t.Parallel()

	got := EnvList(map[string]string{"PATH": "/bin", "HOME": "/Users/a", "A": "1"})
	want := []string{"A=1", "HOME=/Users/a", "PATH=/bin"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("EnvList = %q, want %q", got, want)
	}
	if EnvList(nil) == nil {
		t.Error("EnvList(nil) = nil, want empty non-nil slice")
	}
}

func TestLookPath(t *testing.T) {
	t.Parallel()

	path, err := LookPath("sh", "/nonexistent:/bin:/usr/bin")
	if err != nil {
		t.Fatalf("LookPath(sh): %v", err)
	}
	if !strings.HasSuffix(path, "/sh") {
		t.Errorf("LookPath(sh) = %q", path)
	}

	if _, err := LookPath("sh", "/nonexistent"); !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("LookPath with bad PATH error = %v, want exec.ErrNotFound", err)
	}
	if _, err := LookPath("/bin", ""); err == nil {
		t.Error("LookPath(/bin) succeeded for a directory")
	}
}
