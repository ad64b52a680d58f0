// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/brewkeep/brewkeep/lib/binhash"
)

// Binary is the digest of an executable taken when the process
// started.
type Binary struct {
	// Path is the executable as invoked. For a Homebrew install this is
	// the bin/ symlink, which an upgrade repoints at the new version.
	Path string

	Digest binhash.Digest
}

// Watch records the running binary. invoked is os.Args[0]; a bare
// name is looked up in PATH the way the shell found it.
func Watch(invoked string) (*Binary, error) {
	path, err := invokedPath(invoked)
	if err != nil {
		return nil, err
	}
	digest, err := binhash.HashFile(path)
	if err != nil {
		return nil, err
	}
	return &Binary{Path: path, Digest: digest}, nil
}

// Changed reports whether the file at Path now differs from the
// binary that was started. A vanished file counts as changed.
func (binary *Binary) Changed() (bool, error) {
	current, err := binhash.HashFile(binary.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return current != binary.Digest, nil
}

func invokedPath(invoked string) (string, error) {
	if invoked == "" {
		executable, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolving own executable path: %w", err)
		}
		return executable, nil
	}
	if !strings.ContainsRune(invoked, filepath.Separator) {
		path, err := exec.LookPath(invoked)
		if err != nil {
			return "", fmt.Errorf("finding %s in PATH: %w", invoked, err)
		}
		invoked = path
	}
	return filepath.Abs(invoked)
}
