// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"sort"
	"sync"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching one text against a pattern.
type FuzzyResult struct {
	Matched bool
	Score   int

	// Positions are the rune offsets of the matched characters in
	// ascending order.
	Positions []int
}

var initScoring sync.Once

// FuzzyMatch matches pattern against text with fzf's V2 algorithm,
// case-insensitively. A nil slab allocates one per call; callers
// matching many texts should share one from [NewSlab].
func FuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	initScoring.Do(func() { algo.Init("default") })
	if len(pattern) == 0 {
		return FuzzyResult{Matched: true}
	}
	lowered := make([]rune, len(pattern))
	for index, r := range pattern {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		lowered[index] = r
	}

	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, false, true, &chars, lowered, true, slab)
	if result.Start < 0 {
		return FuzzyResult{}
	}
	matched := FuzzyResult{Matched: true, Score: result.Score}
	if positions != nil {
		matched.Positions = append([]int(nil), *positions...)
		sort.Ints(matched.Positions)
	}
	return matched
}

// NewSlab returns scratch space for repeated [FuzzyMatch] calls.
func NewSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}

// FuzzyFilter returns the indices of the texts matching pattern,
// best score first. Equal scores keep their input order.
func FuzzyFilter(texts []string, pattern string) []int {
	runes := []rune(pattern)
	slab := NewSlab()
	type scored struct {
		index int
		score int
	}
	var matches []scored
	for index, text := range texts {
		if result := FuzzyMatch(text, runes, slab); result.Matched {
			matches = append(matches, scored{index, result.Score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	indices := make([]int, len(matches))
	for position, match := range matches {
		indices[position] = match.index
	}
	return indices
}
