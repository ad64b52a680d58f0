// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package diskspace reports free space on the volume holding a path,
// used to measure how much a cache cleanup released.
package diskspace

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Probe reports free bytes for a path. The pipeline holds one so
// tests can substitute a fixed sequence.
type Probe interface {
	FreeBytes(path string) (int64, error)
}

// Statfs is the Probe backed by statfs(2).
type Statfs struct{}

// FreeBytes returns the bytes available to an unprivileged user on
// the filesystem containing path.
func (Statfs) FreeBytes(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// FreedMegabytes returns how many decimal megabytes were released
// between two free-space readings, and false when free space did not
// grow.
func FreedMegabytes(before, after int64) (int64, bool) {
	if after <= before {
		return 0, false
	}
	return (after - before) / 1_000_000, true
}
