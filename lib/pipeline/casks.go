// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/brewkeep/brewkeep/lib/parse"
)

// IgnoredCasksFile is the Homebrew config file broken casks are
// disabled in.
const IgnoredCasksFile = "ignored-casks.rb"

// checkBrokenCasks asks `brew info` about every installed cask and
// disables the ones it rejects.
func checkBrokenCasks(ctx context.Context, run *StepContext) error {
	brew := run.Toolchain.Brew
	listing, exitCode, err := run.Capture(ctx, brew, "list", "--cask")
	if err != nil {
		return fmt.Errorf("listing casks: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("listing casks: brew exited %d", exitCode)
	}

	var broken []string
	for _, cask := range parse.Listing(listing) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, exitCode, err := run.Capture(ctx, brew, "info", "--cask", cask)
		if err != nil {
			return fmt.Errorf("checking cask %s: %w", cask, err)
		}
		if exitCode != 0 {
			broken = append(broken, cask)
		}
	}
	if len(broken) == 0 {
		return nil
	}

	run.SetStatus(fmt.Sprintf("Disabling %d broken cask(s)...", len(broken)))
	path := filepath.Join(run.Toolchain.HomebrewConfig, IgnoredCasksFile)
	if err := DisableCasks(path, broken); err != nil {
		return err
	}
	run.result.BrokenCasks = broken
	run.Append(fmt.Sprintf("🚫 Disabled %d broken cask(s): %s", len(broken), strings.Join(broken, ", ")))
	return nil
}

// DisableCasks appends a disable! stanza for each cask to the file at
// path, creating the file and its directory when missing.
func DisableCasks(path string, casks []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	stanzas := make([]string, 0, len(casks))
	for _, cask := range casks {
		stanzas = append(stanzas, fmt.Sprintf("cask '%s' do\n  disable!\nend", cask))
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	if _, err := file.WriteString(strings.Join(stanzas, "\n") + "\n"); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}
