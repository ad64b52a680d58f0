// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brewkeep/brewkeep/lib/clock"
	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/control"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/pipeline"
	"github.com/brewkeep/brewkeep/lib/schedule"
	"github.com/brewkeep/brewkeep/lib/testutil"
	"github.com/brewkeep/brewkeep/lib/version"
)

const testTimeout = 10 * time.Second

// testConfig returns a configuration rooted in temporary directories
// whose brew is a shell script that succeeds quietly.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	directory := t.TempDir()
	brew := filepath.Join(directory, "brew")
	if err := os.WriteFile(brew, []byte("#!/bin/sh\necho \"brew $*\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.Brew = brew
	cfg.Paths.Mas = filepath.Join(directory, "mas")
	cfg.Paths.Shell = "/bin/sh"
	cfg.Paths.State = filepath.Join(directory, "state")
	cfg.Paths.HomebrewConfig = filepath.Join(directory, "homebrew")
	cfg.Log.File = filepath.Join(directory, "state", "brewkeep.log")
	cfg.History.Database = filepath.Join(directory, "state", "history.db")
	cfg.Control.Socket = filepath.Join(testutil.SocketDir(t), "control.sock")
	cfg.Connectivity.Enabled = false
	cfg.Schedule.Enabled = false
	return cfg
}

// startDaemon runs the daemon in the background and waits for its
// socket. The returned channel receives Run's result.
func startDaemon(t *testing.T, cfg *config.Config, options Options) (context.CancelFunc, <-chan error) {
	t.Helper()
	if options.Notifier == nil {
		options.Notifier = notify.NewRecorder(8)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, options) }()
	t.Cleanup(cancel)

	client := control.NewClient(cfg.Control.Socket)
	testutil.RequireEventually(t, func() bool {
		_, err := client.State(context.Background())
		return err == nil
	}, testTimeout, "daemon never answered on its socket")
	return cancel, done
}

// awaitLast polls the daemon until a job has finished.
func awaitLast(t *testing.T, client *control.Client) *pipeline.Result {
	t.Helper()
	var last *pipeline.Result
	testutil.RequireEventually(t, func() bool {
		result, err := client.Last(context.Background())
		if err != nil {
			t.Fatalf("Last: %v", err)
		}
		last = result
		return last != nil
	}, testTimeout, "no job finished")
	return last
}

func TestSchedule(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name   string
		config config.ScheduleConfig
		want   string
	}{
		{"disabled", config.ScheduleConfig{Interval: "24h"}, ""},
		{"interval", config.ScheduleConfig{Enabled: true, Interval: "6h"}, "@every 6h0m0s"},
		{"cron", config.ScheduleConfig{Enabled: true, Cron: "30 3 * * 1-5"}, "30 3 * * 1-5"},
	} {
		t.Run(test.name, func(t *testing.T) {
			sched, err := Schedule(test.config)
			if err != nil {
				t.Fatalf("Schedule: %v", err)
			}
			if test.want == "" {
				if sched != nil {
					t.Errorf("Schedule = %v, want nil", sched)
				}
				return
			}
			if sched == nil || sched.String() != test.want {
				t.Errorf("Schedule = %v, want %s", sched, test.want)
			}
		})
	}

	if _, err := Schedule(config.ScheduleConfig{Enabled: true, Cron: "61 * * * *"}); err == nil {
		t.Error("Schedule accepted an invalid cron expression")
	}
}

func TestRunServesJobs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	recorder := notify.NewRecorder(8)
	cancel, done := startDaemon(t, cfg, Options{Notifier: recorder})
	client := control.NewClient(cfg.Control.Socket)

	if _, err := client.Start(context.Background(), control.StartRequest{Kind: pipeline.KindDoctor}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	last := awaitLast(t, client)
	if last.Kind != pipeline.KindDoctor || !last.Success {
		t.Errorf("last = %+v, want a successful doctor", last)
	}
	testutil.RequireReceive(t, recorder.C(), testTimeout, "no notification")

	cancel()
	err := testutil.RequireReceive(t, done, testTimeout, "daemon did not stop")
	if err != nil {
		t.Errorf("Run = %v, want nil after cancel", err)
	}
	if _, statErr := os.Stat(cfg.Control.Socket); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("socket left behind: %v", statErr)
	}
}

func TestRunRefusesSecondDaemon(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	startDaemon(t, cfg, Options{})

	err := Run(context.Background(), cfg, Options{Notifier: notify.NewRecorder(1)})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

func TestRunStartsScheduledJobs(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Schedule = config.ScheduleConfig{Enabled: true, Interval: "1h"}
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	startDaemon(t, cfg, Options{Clock: fake})

	fake.WaitForTimers(1)
	fake.Advance(time.Hour)

	last := awaitLast(t, control.NewClient(cfg.Control.Socket))
	if last.Kind != pipeline.KindRun || last.Trigger != "schedule" {
		t.Errorf("last = %s triggered by %q, want a scheduled run", last.Kind, last.Trigger)
	}
}

func TestRunStopsAfterUpgrade(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	binaryPath := filepath.Join(t.TempDir(), "brewkeep")
	if err := os.WriteFile(binaryPath, []byte("version one"), 0o755); err != nil {
		t.Fatal(err)
	}
	binary, err := version.Watch(binaryPath)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	_, done := startDaemon(t, cfg, Options{Binary: binary})

	if err := os.WriteFile(binaryPath, []byte("version two"), 0o755); err != nil {
		t.Fatal(err)
	}
	client := control.NewClient(cfg.Control.Socket)
	if _, err := client.Start(context.Background(), control.StartRequest{Kind: pipeline.KindDoctor}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err = testutil.RequireReceive(t, done, testTimeout, "daemon kept running after the upgrade")
	if !errors.Is(err, ErrUpgraded) {
		t.Errorf("Run = %v, want ErrUpgraded", err)
	}
}

func TestScheduleMinimum(t *testing.T) {
	t.Parallel()

	_, err := Schedule(config.ScheduleConfig{Enabled: true, Interval: "10s"})
	if err == nil {
		t.Errorf("Schedule accepted an interval under %s", schedule.MinimumInterval)
	}
}
