// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	// Not parallel: mutates package variables.
	saved := []string{Version, GitCommit, GitDirty, BuildTime}
	defer func() { Version, GitCommit, GitDirty, BuildTime = saved[0], saved[1], saved[2], saved[3] }()

	Version, GitCommit, GitDirty, BuildTime = "1.4.0", "abc1234", "true", "2026-05-01T00:00:00Z"
	if got, want := Info(), "1.4.0 (abc1234-dirty, 2026-05-01T00:00:00Z)"; got != want {
		t.Errorf("Info = %q, want %q", got, want)
	}
	if !strings.HasPrefix(Full(), Info()+"\n  Go: ") {
		t.Errorf("Full = %q", Full())
	}
	if Short() != "1.4.0" {
		t.Errorf("Short = %q", Short())
	}
}

func TestBinaryChanged(t *testing.T) {
	t.Parallel()

	directory := t.TempDir()
	first := filepath.Join(directory, "brewkeep-1.3.0")
	second := filepath.Join(directory, "brewkeep-1.4.0")
	for path, content := range map[string]string{first: "old build", second: "new build"} {
		if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	link := filepath.Join(directory, "brewkeep")
	if err := os.Symlink(first, link); err != nil {
		t.Fatal(err)
	}

	binary, err := Watch(link)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if changed, err := binary.Changed(); err != nil || changed {
		t.Fatalf("Changed before upgrade = %t, %v", changed, err)
	}

	// An upgrade repoints the link.
	if err := os.Remove(link); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(second, link); err != nil {
		t.Fatal(err)
	}
	if changed, err := binary.Changed(); err != nil || !changed {
		t.Errorf("Changed after upgrade = %t, %v", changed, err)
	}

	// The binary was removed altogether.
	if err := os.Remove(link); err != nil {
		t.Fatal(err)
	}
	if changed, err := binary.Changed(); err != nil || !changed {
		t.Errorf("Changed after removal = %t, %v", changed, err)
	}
}

func TestWatchLooksUpBareNames(t *testing.T) {
	directory := t.TempDir()
	if err := os.WriteFile(filepath.Join(directory, "brewkeep-test-binary"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", directory)

	binary, err := Watch("brewkeep-test-binary")
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if binary.Path != filepath.Join(directory, "brewkeep-test-binary") {
		t.Errorf("Path = %q", binary.Path)
	}
}
