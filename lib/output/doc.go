// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package output holds the ordered sequence of output lines produced by
// a pipeline run.
//
// A [Buffer] is the single synchronization point for output: the stdout
// and stderr readers of the active process both append through it, and
// observers (the CLI, the control socket, the TUI) read snapshots or
// wait on change notifications. The buffer is a fixed-capacity ring of
// lines. When full, the oldest lines are evicted, so repeated scheduled
// runs in a long-lived daemon cannot grow memory without bound.
//
// Every line carries a sequence number that increases monotonically
// for the lifetime of the buffer, across Clear calls. Consumers that
// poll remember the next sequence they want and pass it to [Buffer.Since].
package output
