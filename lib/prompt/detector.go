// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt classifies streamed output chunks as requests for
// interactive input.
//
// Detection is a substring test against a short list of cues. It does
// not parse terminal framing, so a legitimate output line that happens
// to mention a password is classified as a prompt. The cost of such a
// false positive is an input request the user can answer with an
// empty line; the cost of a false negative is a hung step.
package prompt

import "strings"

// Cue is one substring that marks a chunk as a prompt.
type Cue struct {
	Text          string
	CaseSensitive bool
}

// DefaultCues covers sudo's password prompt in its usual spellings
// and the macOS installer's privilege escalation message.
var DefaultCues = []Cue{
	{Text: "password", CaseSensitive: false},
	{Text: "sudo:", CaseSensitive: true},
	{Text: "administrator privileges", CaseSensitive: false},
}

// Detector tests chunks against a fixed set of cues. A Detector is
// immutable after construction and safe for concurrent use.
type Detector struct {
	sensitive   []string
	insensitive []string
}

// NewDetector builds a detector from cues. Empty cue texts are
// ignored. A nil or empty list selects DefaultCues.
func NewDetector(cues []Cue) *Detector {
	if len(cues) == 0 {
		cues = DefaultCues
	}
	detector := &Detector{}
	for _, cue := range cues {
		if cue.Text == "" {
			continue
		}
		if cue.CaseSensitive {
			detector.sensitive = append(detector.sensitive, cue.Text)
		} else {
			detector.insensitive = append(detector.insensitive, strings.ToLower(cue.Text))
		}
	}
	return detector
}

// Detect reports whether chunk contains any cue.
func (detector *Detector) Detect(chunk string) bool {
	for _, cue := range detector.sensitive {
		if strings.Contains(chunk, cue) {
			return true
		}
	}
	if len(detector.insensitive) == 0 {
		return false
	}
	lowered := strings.ToLower(chunk)
	for _, cue := range detector.insensitive {
		if strings.Contains(lowered, cue) {
			return true
		}
	}
	return false
}
