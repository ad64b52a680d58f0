// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner launches one external command and streams its output
// while it runs.
//
// [Runner.Run] starts the process with a pipe on each standard stream.
// Two reader goroutines, one per output stream, read in chunks, decode
// UTF-8 (carrying an incomplete trailing rune into the next chunk),
// and dispatch each chunk: the prompt detector classifies it, the
// output buffer receives it, the durable log mirrors it line by line,
// and, if it was a prompt, the reader parks in the interactive bridge
// until input arrives. Run returns only after both readers reach EOF
// and the process has been reaped.
//
// The child runs with exactly the environment the caller supplies. A
// bare executable name is resolved against that environment's PATH,
// never the parent's, so the package manager found is the one the
// configuration names.
//
// Each process is placed in its own process group. Cancelling the
// context sends SIGTERM to the group and escalates to SIGKILL after a
// grace period, so helpers spawned by the command go with it.
package runner
