// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers of the brewkeep binary:
// turning the error returned by the command tree into an exit status,
// with the one raw write to stderr that happens outside the logger.
package process
