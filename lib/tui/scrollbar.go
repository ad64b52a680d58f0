// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderScrollbar produces a single-column scrollbar of the given
// height for a viewport showing visibleLines of totalLines starting at
// offset. The thumb is highlighted while the view follows the tail of
// the output and dim once the user has scrolled away from it.
func RenderScrollbar(theme Theme, height, totalLines, visibleLines, offset int, following bool) string {
	if height <= 0 {
		return ""
	}

	thumbColor := theme.BorderColor
	if following {
		thumbColor = theme.StatusRunning
	}
	trackStyle := lipgloss.NewStyle().Foreground(theme.BorderColor)
	thumbStyle := lipgloss.NewStyle().Foreground(thumbColor)

	lines := make([]string, height)
	if totalLines <= visibleLines || totalLines <= 0 {
		for index := range lines {
			lines[index] = thumbStyle.Render("┃")
		}
		return strings.Join(lines, "\n")
	}

	thumbSize := max(height*visibleLines/totalLines, 1)
	thumbOffset := 0
	if scrollable, track := totalLines-visibleLines, height-thumbSize; scrollable > 0 && track > 0 {
		thumbOffset = offset * track / scrollable
	}
	thumbOffset = min(thumbOffset, height-thumbSize)

	for index := range lines {
		if index >= thumbOffset && index < thumbOffset+thumbSize {
			lines[index] = thumbStyle.Render("┃")
		} else {
			lines[index] = trackStyle.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}
