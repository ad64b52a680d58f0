// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for brewkeep packages.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern used when a test waits on a goroutine (a stream reader
// parked on a prompt, a pipeline worker finishing a run). They are the
// only place in the test suite that uses real wall-clock timeouts.
//
// [RequireEventually] polls a condition for state that is published
// asynchronously, such as PipelineState transitions observed from
// outside the worker goroutine.
//
// [SocketDir] returns a short directory for Unix sockets, whose paths
// are limited to 108 bytes.
//
// All helpers call t.Fatalf on failure.
package testutil
