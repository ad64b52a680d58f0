// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// The engine has three places that depend on wall-clock time: prompt
// timeouts in the interactive bridge, scheduled runs in the daemon,
// and timestamps on durable log entries. Each of them takes a Clock
// instead of calling the time package so that tests can drive them
// deterministically:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	bridge := interactive.NewBridge(interactive.Config{Clock: fake, Timeout: time.Minute})
//	// ... a reader parks on a prompt ...
//	fake.WaitForTimers(1)
//	fake.Advance(time.Minute) // the prompt expires
//
// Production code uses Real().
package clock
