// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/history"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/output"
	"github.com/brewkeep/brewkeep/lib/stepdef"
	"github.com/brewkeep/brewkeep/lib/testutil"
)

const testTimeout = 10 * time.Second

// harness runs the executor against shell-script stand-ins for brew
// and mas. Every invocation is appended to a calls file.
type harness struct {
	dir       string
	callsPath string
	toolchain Toolchain
	notified  *notify.Recorder
}

func newHarness(t *testing.T, brewBody string) *harness {
	t.Helper()
	dir := t.TempDir()
	h := &harness{dir: dir, callsPath: filepath.Join(dir, "calls"), notified: notify.NewRecorder(16)}
	h.toolchain = Toolchain{
		Brew:               writeScript(t, dir, "brew", `echo "brew $*" >> "$CALLS"`+"\n"+brewBody),
		Mas:                writeScript(t, dir, "mas", `echo "mas $*" >> "$CALLS"`),
		Shell:              "/bin/sh",
		Env:                map[string]string{"PATH": "/usr/bin:/bin", "CALLS": h.callsPath},
		HomebrewConfig:     filepath.Join(dir, "homebrew"),
		HomebrewInstallURL: "https://example.invalid/install.sh",
	}
	return h
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func (h *harness) executor(config Config) *Executor {
	config.Toolchain = h.toolchain
	if config.Notifier == nil {
		config.Notifier = h.notified
	}
	if config.DiskSpace == nil {
		config.DiskSpace = &fakeDisk{}
	}
	return New(config)
}

func (h *harness) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(h.callsPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func (h *harness) lastNotification(t *testing.T) notify.Notification {
	t.Helper()
	notification, ok := h.notified.Last()
	if !ok {
		t.Fatal("no notification delivered")
	}
	return notification
}

// fakeDisk returns its readings in order, repeating the last.
type fakeDisk struct {
	mutex    sync.Mutex
	readings []int64
}

func (disk *fakeDisk) FreeBytes(string) (int64, error) {
	disk.mutex.Lock()
	defer disk.mutex.Unlock()
	if len(disk.readings) == 0 {
		return 0, nil
	}
	reading := disk.readings[0]
	if len(disk.readings) > 1 {
		disk.readings = disk.readings[1:]
	}
	return reading, nil
}

// recordingLog keeps every run log entry.
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
	return slices.Clone(log.entries)
}

// gatedLog blocks the first Append until release is closed.
type gatedLog struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (log *gatedLog) Append(time.Time, string) {
	log.once.Do(func() {
		close(log.entered)
		<-log.release
	})
}

// cancellingDisk cancels the run the first time free space is read,
// which is just before cleanup starts.
type cancellingDisk struct {
	once     sync.Once
	executor *Executor
}

func (disk *cancellingDisk) FreeBytes(string) (int64, error) {
	disk.once.Do(func() { disk.executor.Cancel() })
	return 0, nil
}

type connectivityFunc func(ctx context.Context) error

func (f connectivityFunc) Check(ctx context.Context) error { return f(ctx) }

func hasLine(lines []output.Line, text string) bool {
	for _, line := range lines {
		if line.Text == text {
			return true
		}
	}
	return false
}

func TestExecuteRunsOnlyIncludedSteps(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in update) echo "Already up-to-date." ;; esac`)
	executor := h.executor(Config{})

	result, err := executor.Execute(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{RunAppStore: true, NotifyOnSuccess: true},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"brew update", "brew upgrade", "mas outdated", "mas upgrade"}
	if got := h.calls(t); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !result.Success || result.AnyStepFailed {
		t.Errorf("success = %t, any failed = %t", result.Success, result.AnyStepFailed)
	}
	if !hasLine(result.Output, "$ brew update") || !hasLine(result.Output, "Already up-to-date.") {
		t.Errorf("output = %v, want echo and command output", output.Texts(result.Output))
	}
	if hasLine(result.Output, "$ brew cleanup --prune=all") {
		t.Error("excluded cleanup step appears in output")
	}

	notification := h.lastNotification(t)
	if !notification.Success || notification.Details != notify.RunSucceeded {
		t.Errorf("notification = %+v, want success %q", notification, notify.RunSucceeded)
	}
	if state := executor.State(); state.Running || state.Status != StatusIdle || state.LastSummary != notify.RunSucceeded {
		t.Errorf("state after run = %+v", state)
	}
}

func TestSuccessNotificationSuppressedWhenDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	executor := h.executor(Config{})
	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Notified || len(h.notified.All()) != 0 {
		t.Errorf("notified = %t, deliveries = %v", result.Notified, h.notified.All())
	}
}

func TestFailingStepDoesNotStopRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in upgrade) echo "Error: upgrade failed" >&2; exit 1 ;; esac`)
	executor := h.executor(Config{})

	result, err := executor.Execute(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{RunCleanup: true},
	})
	if !errors.Is(err, ErrStepsFailed) {
		t.Errorf("err = %v, want ErrStepsFailed", err)
	}
	want := []string{"brew update", "brew upgrade", "brew cleanup --prune=all"}
	if got := h.calls(t); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !result.AnyStepFailed || result.Success {
		t.Errorf("any failed = %t, success = %t", result.AnyStepFailed, result.Success)
	}
	exitCodes := map[string]int{}
	for _, step := range result.Steps {
		exitCodes[step.Tag] = step.ExitCode
	}
	if exitCodes["update"] != 0 || exitCodes["upgrade"] != 1 || exitCodes["cleanup"] != 0 {
		t.Errorf("steps = %+v", result.Steps)
	}
	var stderrSeen bool
	for _, line := range result.Output {
		if line.Text == "Error: upgrade failed" && line.IsError {
			stderrSeen = true
		}
	}
	if !stderrSeen {
		t.Errorf("stderr line missing or misclassified: %+v", result.Output)
	}

	notification := h.lastNotification(t)
	if notification.Success || notification.Details != notify.RunFailed {
		t.Errorf("notification = %+v, want failure %q", notification, notify.RunFailed)
	}
}

func TestDryRunLogsMandatoryStepsOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	log := &recordingLog{}
	result, err := h.executor(Config{Log: log}).Execute(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{DryRun: true},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, want := h.calls(t), []string{"brew update", "brew upgrade --dry-run"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if result.AnyStepFailed || !result.Success {
		t.Errorf("any failed = %t, success = %t", result.AnyStepFailed, result.Success)
	}

	var stepEntries []string
	for _, entry := range log.Entries() {
		if strings.HasPrefix(entry, "step ") {
			stepEntries = append(stepEntries, entry)
		}
	}
	wantPrefixes := []string{"step 1: Updating Homebrew... ok", "step 2: Upgrading packages... ok"}
	if len(stepEntries) != len(wantPrefixes) {
		t.Fatalf("step log entries = %q, want %d", stepEntries, len(wantPrefixes))
	}
	for index, prefix := range wantPrefixes {
		if !strings.HasPrefix(stepEntries[index], prefix) {
			t.Errorf("log entry %d = %q, want prefix %q", index, stepEntries[index], prefix)
		}
	}
}

func TestRunStartsIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	log := &gatedLog{entered: make(chan struct{}), release: make(chan struct{})}
	executor := h.executor(Config{Log: log})
	if err := executor.Start(context.Background(), Request{Kind: KindRun}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testutil.RequireClosed(t, log.entered, testTimeout, "run never began")

	state := executor.State()
	close(log.release)
	if !state.Running || state.Status != StatusIdle || state.Step != 0 {
		t.Errorf("state before the first step = %+v, want running with idle status", state)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	if _, err := executor.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestOptionalStepFailureKeepsRunSuccessful(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.toolchain.Custom = &stepdef.File{Steps: []stepdef.Step{
		{Name: "flaky", Run: "exit 3", Optional: true},
	}}
	executor := h.executor(Config{})

	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	last := result.Steps[len(result.Steps)-1]
	if last.Tag != "custom:flaky" || last.ExitCode != 3 || last.Status() != "failed (optional)" {
		t.Errorf("custom step = %+v", last)
	}
	if !result.Success {
		t.Error("optional failure failed the run")
	}
}

func TestStepTimeout(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.toolchain.Custom = &stepdef.File{Steps: []stepdef.Step{
		{Name: "slow", Run: "sleep 30", Timeout: "200ms", Position: stepdef.BeforeUpdate},
	}}
	executor := h.executor(Config{GracePeriod: 100 * time.Millisecond})

	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if !errors.Is(err, ErrStepsFailed) {
		t.Errorf("err = %v, want ErrStepsFailed", err)
	}
	if result.Steps[0].Err == "" {
		t.Errorf("timed out step recorded no error: %+v", result.Steps[0])
	}
	if got, want := h.calls(t), []string{"brew update", "brew upgrade"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestPreconditionFailureRunsNothing(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	executor := h.executor(Config{
		Connectivity: connectivityFunc(func(context.Context) error { return errors.New("no route to host") }),
	})

	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("err = %v, want ErrPreconditionFailed", err)
	}
	if calls := h.calls(t); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
	if !hasLine(result.Output, notify.NoConnection) {
		t.Errorf("output = %v, want %q", output.Texts(result.Output), notify.NoConnection)
	}
	notification := h.lastNotification(t)
	if notification.Success || notification.Details != notify.NoConnection {
		t.Errorf("notification = %+v", notification)
	}
}

func TestConnectivityOnlyGatesRuns(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `echo "Your system is ready to brew."`)
	executor := h.executor(Config{
		Connectivity: connectivityFunc(func(context.Context) error { return errors.New("offline") }),
	})
	result, err := executor.Execute(context.Background(), Request{Kind: KindDoctor})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Summary != notify.DoctorHealthy {
		t.Errorf("summary = %q, want %q", result.Summary, notify.DoctorHealthy)
	}
}

func TestSkippedPackagesAreForceUpgraded(t *testing.T) {
	t.Parallel()

	body := `case "$1 $2" in
"upgrade ") echo "Warning: Skipping foo: most recent version 1.2 not installed" >&2
            echo "Warning: Skipping bar: most recent version 3 not installed" >&2 ;;
"upgrade --dry-run") echo "Warning: Skipping foo: most recent version 1.2 not installed" >&2 ;;
esac`

	t.Run("upgrade", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, body)
		result, err := h.executor(Config{}).Execute(context.Background(), Request{Kind: KindRun})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		want := []string{"brew update", "brew upgrade", "brew upgrade --force foo bar"}
		if got := h.calls(t); !reflect.DeepEqual(got, want) {
			t.Errorf("calls = %v, want %v", got, want)
		}
		if !hasLine(result.Output, "🔁 Force-upgrading skipped: foo, bar") {
			t.Errorf("output = %v", output.Texts(result.Output))
		}
		if got := result.Steps[2].Label; got != "Force-upgrading 2 skipped package(s)..." {
			t.Errorf("follow-up label = %q", got)
		}
		if !reflect.DeepEqual(result.SkippedPackages, []string{"foo", "bar"}) {
			t.Errorf("skipped = %v", result.SkippedPackages)
		}
	})

	t.Run("dry run", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t, body)
		result, err := h.executor(Config{}).Execute(context.Background(), Request{
			Kind:        KindRun,
			Preferences: config.Preferences{DryRun: true},
		})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		want := []string{"brew update", "brew upgrade --dry-run"}
		if got := h.calls(t); !reflect.DeepEqual(got, want) {
			t.Errorf("calls = %v, want %v", got, want)
		}
		if !reflect.DeepEqual(result.SkippedPackages, []string{"foo"}) {
			t.Errorf("skipped = %v", result.SkippedPackages)
		}
	})
}

func TestCleanupReportsFreedSpaceAndRecleans(t *testing.T) {
	t.Parallel()

	body := `if [ "$1" = cleanup ] && [ ! -f "$CALLS.cleaned" ]; then
  touch "$CALLS.cleaned"
  echo "Warning: Skipping baz: most recent version 2 not installed"
fi`
	h := newHarness(t, body)
	disk := &fakeDisk{readings: []int64{1_000_000_000, 1_250_000_000}}
	result, err := h.executor(Config{DiskSpace: disk}).Execute(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{RunCleanup: true},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{
		"brew update", "brew upgrade", "brew cleanup --prune=all",
		"brew upgrade --force baz", "brew cleanup --prune=all",
	}
	if got := h.calls(t); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if !hasLine(result.Output, "🔁 Force-upgrading: baz") {
		t.Errorf("output = %v, want force-upgrade announcement", output.Texts(result.Output))
	}
	if !hasLine(result.Output, "🧹 Freed 250 MB") || result.FreedBytes != 250_000_000 {
		t.Errorf("freed = %d, output = %v", result.FreedBytes, output.Texts(result.Output))
	}
	if got := result.Steps[len(result.Steps)-1].Tag; got != "freed-space" {
		t.Errorf("last step = %q, want freed-space", got)
	}
}

func TestBrokenCasksAreDisabled(t *testing.T) {
	t.Parallel()

	body := `case "$1 $2" in
"list --cask") echo "good"; echo "bad" ;;
"info --cask") [ "$3" = bad ] && { echo "Error: Cask 'bad' is unreadable" >&2; exit 1; } ;;
esac
exit 0`
	h := newHarness(t, body)
	result, err := h.executor(Config{}).Execute(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{RunBrokenCaskCheck: true},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !reflect.DeepEqual(result.BrokenCasks, []string{"bad"}) {
		t.Errorf("broken = %v, want [bad]", result.BrokenCasks)
	}
	data, err := os.ReadFile(filepath.Join(h.toolchain.HomebrewConfig, IgnoredCasksFile))
	if err != nil {
		t.Fatalf("reading ignored casks: %v", err)
	}
	if want := "cask 'bad' do\n  disable!\nend\n"; string(data) != want {
		t.Errorf("ignored casks = %q, want %q", data, want)
	}
	// Capture output stays out of the run output.
	if hasLine(result.Output, "good") {
		t.Error("cask listing leaked into the run output")
	}
	notification := h.lastNotification(t)
	if want := "✅ Done! Disabled 1 broken cask(s): bad"; notification.Details != want {
		t.Errorf("notification = %q, want %q", notification.Details, want)
	}
}

func TestPromptRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in update) printf "Password:"; read answer; echo "got $answer" ;; esac`)
	executor := h.executor(Config{})
	ctx := context.Background()

	if !executor.StartRun(ctx, config.Preferences{}) {
		t.Fatal("StartRun refused on an idle executor")
	}
	testutil.RequireEventually(t, func() bool { return executor.State().WaitingForInput }, testTimeout, "prompt never surfaced")

	state := executor.State()
	if state.Prompt != "Password:" || state.Status != "Updating Homebrew..." {
		t.Errorf("state while waiting = %+v", state)
	}
	if executor.StartRun(ctx, config.Preferences{}) {
		t.Error("StartRun started a second run while waiting for input")
	}
	if !executor.SubmitInput("hunter2") {
		t.Fatal("SubmitInput found no prompt")
	}
	if executor.SubmitInput("again") {
		t.Error("second SubmitInput resolved a prompt")
	}

	result, err := executor.Wait(ctx)
	if err != nil || result == nil {
		t.Fatalf("Wait = %v, %v", result, err)
	}
	if !hasLine(result.Output, "got hunter2") {
		t.Errorf("output = %v", output.Texts(result.Output))
	}
	var promptLine bool
	for _, line := range result.Output {
		if line.Text == "Password:" && line.IsPrompt {
			promptLine = true
		}
	}
	if !promptLine {
		t.Error("prompt chunk not classified as a prompt")
	}
	if executor.State().WaitingForInput {
		t.Error("still waiting for input after the run")
	}
}

func TestCancelStopsAtStepBoundary(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in update) printf "Password:"; read answer; echo "finished update" ;; esac`)
	executor := h.executor(Config{})
	if err := executor.Start(context.Background(), Request{Kind: KindRun}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testutil.RequireEventually(t, func() bool { return executor.State().WaitingForInput }, testTimeout, "prompt never surfaced")

	if !executor.Cancel() {
		t.Fatal("Cancel reported nothing running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	result, err := executor.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.Cancelled || !errors.Is(result.Err(), ErrCancelled) {
		t.Errorf("cancelled = %t, err = %v", result.Cancelled, result.Err())
	}
	// The running process is not killed: it reads EOF and finishes.
	if !hasLine(result.Output, "finished update") {
		t.Errorf("output = %v, want the step to finish", output.Texts(result.Output))
	}
	if got, want := h.calls(t), []string{"brew update"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if notification := h.lastNotification(t); notification.Details != notify.RunCancelled {
		t.Errorf("notification = %q, want %q", notification.Details, notify.RunCancelled)
	}
	if executor.Cancel() {
		t.Error("Cancel succeeded with nothing running")
	}
}

func TestCancelBeforeStepStartsDoesNotWaitForInput(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in cleanup) printf "Password:"; read answer || exit 9 ;; esac`)
	disk := &cancellingDisk{}
	// No prompt timeout: only the abort can release the prompt.
	executor := h.executor(Config{DiskSpace: disk, PromptTimeout: -1})
	disk.executor = executor

	if err := executor.Start(context.Background(), Request{
		Kind:        KindRun,
		Preferences: config.Preferences{RunCleanup: true},
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	result, err := executor.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !result.Cancelled {
		t.Error("run not marked cancelled")
	}
	cleanup := result.Steps[len(result.Steps)-1]
	if cleanup.Tag != "cleanup" || cleanup.ExitCode != 9 {
		t.Errorf("cleanup step = %+v, want exit 9 (read saw EOF)", cleanup)
	}
	if executor.State().WaitingForInput {
		t.Error("still waiting for input after the run")
	}
}

func TestPromptTimeoutStopsRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1" in update) printf "Password:"; read answer || exit 9; echo "got $answer" ;; esac`)
	executor := h.executor(Config{PromptTimeout: 200 * time.Millisecond})

	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if !errors.Is(err, ErrCancelled) || !result.Cancelled {
		t.Errorf("err = %v, cancelled = %t, want ErrCancelled", err, result.Cancelled)
	}
	if got, want := h.calls(t), []string{"brew update"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
	if len(result.Steps) != 1 || result.Steps[0].ExitCode != 9 {
		t.Errorf("steps = %+v", result.Steps)
	}

	// The next run on the same executor answers prompts again.
	if !executor.StartRun(context.Background(), config.Preferences{}) {
		t.Fatal("StartRun refused after the timed out run")
	}
	testutil.RequireEventually(t, func() bool { return executor.State().WaitingForInput }, testTimeout, "prompt never surfaced")
	if !executor.SubmitInput("x") {
		t.Fatal("SubmitInput found no prompt")
	}
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	next, err := executor.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if next.Cancelled || !hasLine(next.Output, "got x") {
		t.Errorf("cancelled = %t, output = %v", next.Cancelled, output.Texts(next.Output))
	}
}

func TestRunsAreArchived(t *testing.T) {
	t.Parallel()

	store, err := history.Open(history.Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := newHarness(t, `echo "brew says $1"`)
	result, err := h.executor(Config{Archive: store}).Execute(context.Background(), Request{Kind: KindRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	record, err := store.Get(context.Background(), result.ID.String())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if record.Kind != "run" || record.Summary != notify.RunSucceeded || !record.Success {
		t.Errorf("record = %+v", record)
	}
	if len(record.Steps) != 2 || record.Steps[0].Label != "Updating Homebrew..." {
		t.Errorf("record steps = %+v", record.Steps)
	}
	if !hasLine(record.Output, "brew says update") {
		t.Errorf("record output = %v", output.Texts(record.Output))
	}
}

func TestDiagnostics(t *testing.T) {
	t.Parallel()

	body := `case "$1" in
doctor) echo "Warning: Some installed formulae are deprecated."; echo "Error: Unbrewed dylibs" >&2 ;;
missing) echo "php: icu4c"; echo "vim: lua perl" ;;
outdated) echo "git (2.40.0) < 2.41.0"; echo "node (20.1.0) < 20.2.0" ;;
services) echo "Name Status User File"; echo "redis started me ~/x.plist"; echo "pg error me ~/y.plist"; echo "mysql none" ;;
esac`
	h := newHarness(t, body)
	executor := h.executor(Config{})
	ctx := context.Background()

	t.Run("doctor", func(t *testing.T) {
		result, err := executor.Execute(ctx, Request{Kind: KindDoctor})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		want := []string{"Warning: Some installed formulae are deprecated.", "Error: Unbrewed dylibs"}
		if !reflect.DeepEqual(result.DoctorIssues, want) {
			t.Errorf("issues = %v, want %v", result.DoctorIssues, want)
		}
		if result.Success {
			t.Error("doctor with issues reported success")
		}
	})
	t.Run("missing", func(t *testing.T) {
		result, err := executor.Execute(ctx, Request{Kind: KindMissing})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if len(result.Missing) != 2 || result.Summary != notify.MissingSummary(2) {
			t.Errorf("missing = %+v, summary = %q", result.Missing, result.Summary)
		}
	})
	t.Run("outdated", func(t *testing.T) {
		result, err := executor.Execute(ctx, Request{Kind: KindOutdated})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if len(result.Outdated) != 2 || result.Outdated[0].Latest != "2.41.0" {
			t.Errorf("outdated = %+v", result.Outdated)
		}
		if got := executor.State().Outdated; len(got) != 2 {
			t.Errorf("state outdated = %+v", got)
		}
	})
	t.Run("services", func(t *testing.T) {
		result, err := executor.Execute(ctx, Request{Kind: KindServices})
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if want := notify.ServicesSummary(2, []string{"pg"}); result.Summary != want {
			t.Errorf("summary = %q, want %q", result.Summary, want)
		}
	})
}

func TestListingQueriesLeaveOutputAlone(t *testing.T) {
	t.Parallel()

	body := `case "$1" in
outdated) echo "git (2.40.0) < 2.41.0" ;;
services) echo "Name Status"; echo "redis started" ;;
esac`
	h := newHarness(t, body)
	executor := h.executor(Config{})
	ctx := context.Background()

	packages, err := executor.Outdated(ctx)
	if err != nil {
		t.Fatalf("Outdated: %v", err)
	}
	if len(packages) != 1 || packages[0].Name != "git" {
		t.Errorf("packages = %+v", packages)
	}
	services, err := executor.Services(ctx)
	if err != nil {
		t.Fatalf("Services: %v", err)
	}
	if len(services) != 1 || services[0].Status != "started" {
		t.Errorf("services = %+v", services)
	}
	if lines := executor.Output(); len(lines) != 0 {
		t.Errorf("output = %v, want empty", output.Texts(lines))
	}
	state := executor.State()
	if len(state.Outdated) != 1 || len(state.Services) != 1 {
		t.Errorf("state = %+v", state)
	}
}

func TestServiceActionRefreshesServices(t *testing.T) {
	t.Parallel()

	h := newHarness(t, `case "$1 $2" in "services list") echo "Name Status"; echo "redis started" ;; esac`)
	executor := h.executor(Config{RefreshAfterRun: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result, err := executor.Execute(ctx, Request{Kind: KindService, Service: "redis", Action: "start"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "✅ brew services start redis completed."; result.Summary != want {
		t.Errorf("summary = %q, want %q", result.Summary, want)
	}
	testutil.RequireEventually(t, func() bool { return len(executor.State().Services) == 1 }, testTimeout,
		"services not refreshed after the action")
}

func TestDevUpdateReportsMissingTools(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.toolchain.Shell = writeScript(t, h.dir, "shell", "exit 1")
	result, err := h.executor(Config{}).Execute(context.Background(), Request{Kind: KindDevUpdate})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, text := range []string{npmMissing, pip3Missing} {
		if !hasLine(result.Output, text) {
			t.Errorf("output = %v, want %q", output.Texts(result.Output), text)
		}
	}
}

func TestDevUpdateMissingToolIsSkipped(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	h.toolchain.Shell = writeScript(t, h.dir, "shell", "exit 1")
	result, err := h.executor(Config{}).Execute(context.Background(), Request{Kind: KindDevUpdate})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, step := range result.Steps {
		if !step.Skipped || step.Failed() || step.Status() != "skipped" {
			t.Errorf("%s: skipped = %t, status = %q", step.Tag, step.Skipped, step.Status())
		}
	}
	if record := result.Record(); !record.Steps[0].Skipped {
		t.Errorf("archived step = %+v, want skipped", record.Steps[0])
	}
	if !result.Success || result.AnyStepFailed {
		t.Errorf("success = %t, any failed = %t", result.Success, result.AnyStepFailed)
	}
}

func TestDevUpdateToolFailureFailsJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	// npm update exits 2; pip3 succeeds.
	h.toolchain.Shell = writeScript(t, h.dir, "shell", `case "$2" in *npm*) exit 2 ;; esac`)
	result, err := h.executor(Config{}).Execute(context.Background(), Request{Kind: KindDevUpdate})
	if !errors.Is(err, ErrStepsFailed) {
		t.Errorf("err = %v, want ErrStepsFailed", err)
	}
	if !result.AnyStepFailed || result.Success {
		t.Errorf("any failed = %t, success = %t", result.AnyStepFailed, result.Success)
	}
	if npm := result.Steps[0]; npm.Tag != "npm" || npm.ExitCode != 2 || npm.Status() != "failed" {
		t.Errorf("npm step = %+v", npm)
	}
	if pip := result.Steps[1]; pip.Failed() {
		t.Errorf("pip3 step = %+v", pip)
	}
	if hasLine(result.Output, npmMissing) {
		t.Error("a failing npm was reported as missing")
	}
	want := notify.JobSummary("Developer tools update", true)
	if notification := h.lastNotification(t); notification.Success || notification.Details != want {
		t.Errorf("notification = %+v, want failure %q", notification, want)
	}
}

func TestStateSubscription(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	executor := h.executor(Config{})
	changes, unsubscribe := executor.Subscribe()
	defer unsubscribe()

	if _, err := executor.Execute(context.Background(), Request{Kind: KindRun}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	testutil.RequireReceive(t, changes, testTimeout, "no state change reported")
}

func TestClearOutputKeepsSequence(t *testing.T) {
	t.Parallel()

	h := newHarness(t, "")
	executor := h.executor(Config{})
	result, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	next := result.Output[len(result.Output)-1].Seq + 1
	if !executor.ClearOutput() {
		t.Fatal("ClearOutput refused while idle")
	}
	if lines := executor.OutputSince(0); len(lines) != 0 {
		t.Errorf("lines after clear = %v", output.Texts(lines))
	}

	second, err := executor.Execute(context.Background(), Request{Kind: KindRun})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if second.Output[0].Seq < next {
		t.Errorf("sequence restarted: first seq %d, want >= %d", second.Output[0].Seq, next)
	}
}
