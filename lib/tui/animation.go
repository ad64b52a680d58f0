// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// HeatDecayDuration is how long an item glows after it appears.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 3 * time.Second

// HeatTickInterval is the re-render interval while anything is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatKind selects the accent an item glows with.
type HeatKind int

const (
	// HeatOutput marks a normal output line or a step change.
	HeatOutput HeatKind = iota
	// HeatError marks a stderr line or a failed step.
	HeatError
)

type heatEntry struct {
	ignition time.Time
	kind     HeatKind
}

// HeatTracker maps keys (output sequence numbers, step labels) to
// ignition timestamps for the fade-in highlight of new content.
type HeatTracker[K comparable] struct {
	entries map[K]heatEntry
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker[K comparable]() *HeatTracker[K] {
	return &HeatTracker[K]{entries: make(map[K]heatEntry)}
}

// Ignite records an appearance. Igniting a hot key restarts its decay.
func (tracker *HeatTracker[K]) Ignite(key K, kind HeatKind, now time.Time) {
	tracker.entries[key] = heatEntry{ignition: now, kind: kind}
}

// Heat returns the intensity of key: 1.0 at ignition, 0.0 once
// [HeatDecayDuration] has passed or when key was never ignited.
func (tracker *HeatTracker[K]) Heat(key K, now time.Time) float64 {
	entry, exists := tracker.entries[key]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(entry.ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// Accent returns the background tint for key, or "" once it has cooled
// past the point where a tint is visible.
func (tracker *HeatTracker[K]) Accent(theme Theme, key K, now time.Time) lipgloss.Color {
	if tracker.Heat(key, now) < 0.25 {
		return ""
	}
	if tracker.entries[key].kind == HeatError {
		return theme.HotAccentError
	}
	return theme.HotAccent
}

// HasHot reports whether anything is still glowing, meaning the tick
// should keep running. Cold entries are dropped.
func (tracker *HeatTracker[K]) HasHot(now time.Time) bool {
	hot := false
	for key, entry := range tracker.entries {
		if now.Sub(entry.ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.entries, key)
	}
	return hot
}
