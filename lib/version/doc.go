// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports brewkeep's build information and notices
// when the brewkeep binary on disk no longer matches the running one.
//
// Four variables are injected at build time via -ldflags -X:
// [GitCommit], [GitDirty], [BuildTime] and [Version]. They default to
// "unknown" and "0.1.0-dev" in development builds and tests.
//
// [Watch] records the digest of the binary the process was started
// from. A long-running daemon calls [Binary.Changed] after each run to
// learn that Homebrew upgraded brewkeep underneath it.
package version
