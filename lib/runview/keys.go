// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runview

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the run view.
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Follow   key.Binding // Jump to the tail and keep following it.

	Answer  key.Binding // Reopen the prompt modal after hiding it.
	Actions key.Binding // Open the action menu.
	Cancel  key.Binding

	// Modal and menu keys.
	Submit  key.Binding
	Dismiss key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set: vim-style movement
// alongside the arrow and page keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("ctrl+u", "pgup"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("ctrl+d", "pgdown"),
		key.WithHelp("C-d", "page down"),
	),
	Top: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	Follow: key.NewBinding(
		key.WithKeys("G", "f", "end"),
		key.WithHelp("f", "follow"),
	),
	Answer: key.NewBinding(
		key.WithKeys("i"),
		key.WithHelp("i", "answer prompt"),
	),
	Actions: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "actions"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "cancel run"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "hide"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// helpLine renders the short help shown in the status bar.
func (keys KeyMap) helpLine(waiting bool) string {
	bindings := []key.Binding{keys.Up, keys.Down, keys.Follow}
	if waiting {
		bindings = append(bindings, keys.Answer)
	}
	bindings = append(bindings, keys.Actions, keys.Quit)

	var line string
	for index, binding := range bindings {
		if index > 0 {
			line += " · "
		}
		help := binding.Help()
		line += help.Key + " " + help.Desc
	}
	return line
}
