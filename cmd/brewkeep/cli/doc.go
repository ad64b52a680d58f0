// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the brewkeep
// binary: a tree of [Command] values dispatched by name, flags bound
// from tagged parameter structs with pflag, --json output, categorized
// errors, and the command logger.
package cli
