// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package runview is the interactive terminal view of a pipeline run.
// It follows the executor's status and output, opens a masked modal
// when the running command waits at a prompt, and forwards the answer.
//
// The view reads from a [Source]: [ExecutorSource] for a run in the
// same process, [ClientSource] for a run inside the daemon reached over
// its control socket.
package runview
