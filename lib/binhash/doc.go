// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash hashes executable files so brewkeep can tell when a
// binary it depends on was replaced on disk, most often by a Homebrew
// upgrade of brewkeep itself.
package binhash
