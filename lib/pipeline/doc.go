// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline builds and executes brewkeep's step sequences.
//
// A [Request] names a kind of job (a full maintenance run, a
// diagnostic, a service action) and [Plan] turns it into an ordered
// list of [Step] values. Preferences decide which optional steps are
// in the plan; a step left out is never invoked and never appears in
// the output.
//
// The [Executor] runs one plan at a time. Each step's command goes
// through lib/runner, which feeds the shared output buffer, mirrors to
// the run log, and parks on the interactive bridge when the command
// asks for input. A failing step is recorded and the run continues
// with the next step; only cancellation stops a run early, and only
// at a step boundary.
//
// Steps may carry hooks. An After hook inspects the step's outcome and
// output and returns follow-up steps that run immediately after it:
// the forced re-upgrade of packages the upgrade skipped and the freed
// disk space report are built this way.
//
// When a run finishes the executor publishes idle state, delivers the
// summary notification, archives the run to history, and only then
// accepts the next request.
package pipeline
