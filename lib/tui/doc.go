// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui provides the terminal building blocks shared by
// brewkeep's interactive views: the color theme, overlay splicing, the
// masked prompt modal, the action menu, scrollbars and the heat
// animation for freshly appended output.
//
// Views built on bubbletea import this package for a consistent look.
// Each view owns its data source and layout.
package tui
