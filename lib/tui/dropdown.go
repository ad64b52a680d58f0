// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// MenuOption is a single selectable entry of a [Menu].
type MenuOption struct {
	Label  string // Display text.
	Action string // Value the view acts on when the entry is chosen.
}

// Menu is a floating list of actions. The owning view routes keys to
// it while it is open: up/down to move, enter to choose, escape to
// dismiss.
type Menu struct {
	Title   string
	Options []MenuOption
	Cursor  int
}

// MoveUp moves the cursor up by one, wrapping to the bottom.
func (menu *Menu) MoveUp() {
	menu.Cursor--
	if menu.Cursor < 0 {
		menu.Cursor = len(menu.Options) - 1
	}
}

// MoveDown moves the cursor down by one, wrapping to the top.
func (menu *Menu) MoveDown() {
	menu.Cursor++
	if menu.Cursor >= len(menu.Options) {
		menu.Cursor = 0
	}
}

// Selected returns the highlighted option.
func (menu *Menu) Selected() MenuOption {
	return menu.Options[menu.Cursor]
}

// Width returns the visible width of the rendered menu in columns.
func (menu *Menu) Width() int {
	widest := ansi.StringWidth(menu.Title)
	for _, option := range menu.Options {
		widest = max(widest, ansi.StringWidth(option.Label)+2)
	}
	// One column of padding on each side.
	return widest + 2
}

// Render produces the menu lines for [SpliceOverlay]. Every line has
// the same visible width and a solid background.
func (menu *Menu) Render(theme Theme) []string {
	innerWidth := menu.Width() - 2

	background := lipgloss.NewStyle().
		Background(theme.ModalBackground).
		Foreground(theme.ModalForeground)
	selected := lipgloss.NewStyle().
		Background(theme.SelectedBackground).
		Foreground(theme.SelectedForeground)
	title := background.Bold(true).Foreground(theme.HeaderForeground)

	var lines []string
	if menu.Title != "" {
		lines = append(lines, PadOverlayLine(title.Render(menu.Title), innerWidth, background))
	}
	for index, option := range menu.Options {
		style, marker := background, " "
		if index == menu.Cursor {
			style, marker = selected, ">"
		}
		content := marker + " " + option.Label
		content += strings.Repeat(" ", max(innerWidth-ansi.StringWidth(content), 0))
		lines = append(lines, style.Render(" "+content+" "))
	}
	return lines
}
