// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/charmbracelet/lipgloss"

// Step and run statuses understood by [Theme.StatusColor].
const (
	StatusRunning   = "running"
	StatusOK        = "ok"
	StatusFailed    = "failed"
	StatusOptional  = "failed (optional)"
	StatusCancelled = "cancelled"
	StatusWaiting   = "waiting"
)

// Theme defines the color palette of brewkeep's terminal views. All
// colors are ANSI 256-color codes.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Output lines the child wrote to stderr and lines recognized as
	// prompts.
	ErrorText  lipgloss.Color
	PromptText lipgloss.Color

	// Selected menu entry.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Status colors.
	StatusRunning   lipgloss.Color
	StatusOK        lipgloss.Color
	StatusFailed    lipgloss.Color
	StatusOptional  lipgloss.Color
	StatusCancelled lipgloss.Color
	StatusWaiting   lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Background tint for freshly appended output lines.
	HotAccent      lipgloss.Color
	HotAccentError lipgloss.Color

	// Modal and menu boxes.
	ModalForeground lipgloss.Color
	ModalBackground lipgloss.Color
}

// StatusColor returns the color for a step or run status. Unknown
// statuses use FaintText.
func (theme Theme) StatusColor(status string) lipgloss.Color {
	switch status {
	case StatusRunning:
		return theme.StatusRunning
	case StatusOK:
		return theme.StatusOK
	case StatusFailed:
		return theme.StatusFailed
	case StatusOptional:
		return theme.StatusOptional
	case StatusCancelled:
		return theme.StatusCancelled
	case StatusWaiting:
		return theme.StatusWaiting
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in scheme for 256-color terminals with a
// dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	ErrorText:  lipgloss.Color("203"), // soft red
	PromptText: lipgloss.Color("220"), // amber

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	StatusRunning:   lipgloss.Color("75"),  // blue
	StatusOK:        lipgloss.Color("114"), // green
	StatusFailed:    lipgloss.Color("196"), // red
	StatusOptional:  lipgloss.Color("208"), // orange
	StatusCancelled: lipgloss.Color("245"), // gray
	StatusWaiting:   lipgloss.Color("220"), // amber, matches PromptText

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	HotAccent:      lipgloss.Color("58"), // dark amber tint
	HotAccentError: lipgloss.Color("52"), // dark red tint

	ModalForeground: lipgloss.Color("252"),
	ModalBackground: lipgloss.Color("237"),
}
