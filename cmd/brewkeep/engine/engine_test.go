// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brewkeep/brewkeep/lib/config"
	"github.com/brewkeep/brewkeep/lib/notify"
	"github.com/brewkeep/brewkeep/lib/pipeline"
)

// testConfig returns a configuration rooted in a temporary directory
// whose brew is a shell script printing output.
func testConfig(t *testing.T, output string) *config.Config {
	t.Helper()
	directory := t.TempDir()
	brew := filepath.Join(directory, "brew")
	script := "#!/bin/sh\nprintf '%s\\n' '" + output + "'\n"
	if err := os.WriteFile(brew, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Paths.Brew = brew
	cfg.Paths.Mas = filepath.Join(directory, "mas")
	cfg.Paths.Shell = "/bin/sh"
	cfg.Paths.State = filepath.Join(directory, "state")
	cfg.Paths.HomebrewConfig = filepath.Join(directory, "homebrew")
	cfg.Log.File = filepath.Join(directory, "state", "logs", "brewkeep.log")
	cfg.History.Database = filepath.Join(directory, "state", "history.db")
	cfg.Control.Socket = filepath.Join(directory, "state", "control.sock")
	cfg.Connectivity.Enabled = false
	return cfg
}

func TestOpenRunsAndArchives(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "Your system is ready to brew.")
	recorder := notify.NewRecorder(4)
	engine, err := Open(cfg, Options{Notifier: recorder})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	result, err := engine.Executor.Execute(context.Background(), pipeline.Request{Kind: pipeline.KindDoctor})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Errorf("doctor result = %+v, want success", result)
	}

	records, err := engine.History.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Kind != string(pipeline.KindDoctor) {
		t.Fatalf("history = %+v, want one doctor record", records)
	}
	if notification, ok := recorder.Last(); !ok || !notification.Success {
		t.Errorf("notification = %+v, %t", notification, ok)
	}

	if err := engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(engine.LogPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "brewkeep doctor started") {
		t.Errorf("run log does not record the job:\n%s", data)
	}
}

func TestOpenWithoutHistory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "ok")
	cfg.History.Enabled = false
	engine, err := Open(cfg, Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer engine.Close()
	if engine.History != nil {
		t.Error("history opened while disabled")
	}
	if _, err := os.Stat(cfg.History.Database); !os.IsNotExist(err) {
		t.Errorf("history database created: %v", err)
	}
}

func TestOpenRejectsInvalidSteps(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "ok")
	cfg.Paths.StepsFile = filepath.Join(t.TempDir(), "steps.jsonc")
	if err := os.WriteFile(cfg.Paths.StepsFile, []byte(`{"steps": [{"name": "empty"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(cfg, Options{}); err == nil || !strings.Contains(err.Error(), "steps file") {
		t.Fatalf("Open = %v, want a steps file error", err)
	}
}

func TestNotifierChain(t *testing.T) {
	t.Parallel()

	if _, ok := Notifier(config.NotifyConfig{SuppressUnchanged: true}, nil).(*notify.Dedup); !ok {
		t.Error("suppress_unchanged does not deduplicate")
	}
	chain, ok := Notifier(config.NotifyConfig{Command: []string{"true"}}, nil).(notify.Multi)
	if !ok || len(chain) != 2 {
		t.Errorf("chain = %#v, want log and command", chain)
	}
}

func TestCues(t *testing.T) {
	t.Parallel()

	if Cues(nil) != nil {
		t.Error("no patterns should select the default cues")
	}
	cues := Cues([]config.PromptPattern{{Text: "Passphrase", CaseSensitive: true}})
	if len(cues) != 1 || cues[0].Text != "Passphrase" || !cues[0].CaseSensitive {
		t.Errorf("cues = %+v", cues)
	}
}
