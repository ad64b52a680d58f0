// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package interactive hands interactive input from an outside caller
// to the process running the current pipeline step.
//
// The [Bridge] is a three-state machine guarded by one mutex:
//
//	Idle ──BeginStep──▶ StepRunning ──AwaitInput──▶ AwaitingInput
//	  ▲                   │   ▲                          │
//	  └──────EndStep──────┘   └──Submit / Abort / timeout┘
//
// The stream reader that saw a prompt calls [Bridge.AwaitInput] and
// parks there, so nothing more is read from that stream until the
// prompt is resolved. The pipeline worker calls [Bridge.WaitResolved]
// before advancing to the next step. [Bridge.Submit] resolves the
// outstanding prompt exactly once and wakes both; the reader then
// writes the input and a newline to the process's stdin.
//
// Only one prompt is outstanding at a time. A reader that detects a
// second prompt while the first is unresolved waits its turn instead
// of replacing the pending prompt.
//
// A prompt nobody answers must not hang the run forever. [Bridge.Abort]
// and the per-prompt timeout both close the step's stdin, so the
// process reads EOF and exits, and release every waiter. Both hold
// until [Bridge.Reset]: steps begun afterwards get their stdin closed
// at once, and [Bridge.Err] tells the executor to stop the run.
package interactive
