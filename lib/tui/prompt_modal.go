// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// promptModalMinWidth keeps short prompts from producing a cramped box.
const promptModalMinWidth = 40

// PromptModal asks the user to answer a prompt printed by a running
// command. Input is masked because the answer is usually a password.
// Enter submits and escape dismisses; the owning view decides what
// either means.
type PromptModal struct {
	// Prompt is the prompt text as the command printed it.
	Prompt string

	input textinput.Model
	theme Theme
}

// NewPromptModal creates a focused modal for prompt.
func NewPromptModal(prompt string, theme Theme) PromptModal {
	input := textinput.New()
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '•'
	input.Prompt = "› "
	input.Placeholder = "answer"
	input.CharLimit = 1024
	input.Focus()
	return PromptModal{Prompt: prompt, input: input, theme: theme}
}

// Value returns the typed answer.
func (modal PromptModal) Value() string {
	return modal.input.Value()
}

// Update forwards a message to the text input.
func (modal *PromptModal) Update(message tea.Msg) tea.Cmd {
	var command tea.Cmd
	modal.input, command = modal.input.Update(message)
	return command
}

// Render produces the modal lines for [CenterOverlay], fitting within
// maxWidth columns.
func (modal PromptModal) Render(maxWidth int) []string {
	innerWidth := max(ansi.StringWidth(modal.Prompt), promptModalMinWidth)
	innerWidth = min(innerWidth, max(maxWidth-4, 10))

	background := lipgloss.NewStyle().
		Background(modal.theme.ModalBackground).
		Foreground(modal.theme.ModalForeground)
	title := background.Bold(true).Foreground(modal.theme.PromptText)
	help := background.Foreground(modal.theme.HelpText)

	modal.input.Width = innerWidth - ansi.StringWidth(modal.input.Prompt) - 1
	prompt := ansi.Truncate(modal.Prompt, innerWidth, "…")

	blank := PadOverlayLine("", innerWidth, background)
	return []string{
		blank,
		PadOverlayLine(title.Render(prompt), innerWidth, background),
		blank,
		PadOverlayLine(modal.input.View(), innerWidth, background),
		blank,
		PadOverlayLine(help.Render("enter send · esc hide"), innerWidth, background),
		blank,
	}
}
