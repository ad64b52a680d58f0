// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package parse extracts structured results from package manager
// output.
//
// Every function is a pure, order-preserving transformation of a line
// sequence. None of them understand the package manager's grammar:
// they match text patterns, and lines that do not match are dropped
// silently. An empty result is never an error.
//
// Command echo lines ("$ brew ...") and prompt lines are never
// candidates. Parsers that read listings (outdated, services, missing)
// also ignore stderr.
package parse

import (
	"strings"

	"github.com/brewkeep/brewkeep/lib/output"
)

// OutdatedPackage is one entry of `brew outdated --verbose`.
type OutdatedPackage struct {
	Name    string `json:"name"`
	Current string `json:"current"`
	Latest  string `json:"latest"`
}

// Service is one entry of `brew services list`.
type Service struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// MissingDependency is one entry of `brew missing`: a package and the
// dependencies it lacks.
type MissingDependency struct {
	Package      string   `json:"package"`
	Dependencies []string `json:"dependencies,omitempty"`
}

// ServiceStatusNone is the status of a service that is installed but
// not registered. Such services are left out of listings.
const ServiceStatusNone = "none"

// Cues for the skipped-package warning printed by `brew upgrade`:
// "Warning: Skipping foo: most recent version 1.2 not installed".
const (
	skippedCue      = "Skipping "
	notInstalledCue = "not installed"
)

// Lines converts raw text into a line sequence with the given stream
// classification, numbered from zero. Empty lines are dropped.
func Lines(text string, isError bool) []output.Line {
	var lines []output.Line
	for index, part := range output.SplitLines(text) {
		lines = append(lines, output.Line{Seq: uint64(index), Text: part, IsError: isError})
	}
	return lines
}

// isListing reports whether line can carry listing data.
func isListing(line output.Line) bool {
	return !line.IsError && !line.IsPrompt && !strings.HasPrefix(line.Text, "$")
}

// Listing returns the whitespace-separated tokens of every stdout
// listing line, in order. `brew list` output is read this way.
func Listing(lines []output.Line) []string {
	var tokens []string
	for _, line := range lines {
		if isListing(line) {
			tokens = append(tokens, strings.Fields(line.Text)...)
		}
	}
	return tokens
}

// OutdatedPackages extracts {name, current, latest} from each line
// with at least four whitespace-separated tokens: name is the first
// token, current the second with parentheses stripped, latest the
// last.
func OutdatedPackages(lines []output.Line) []OutdatedPackage {
	var packages []OutdatedPackage
	for _, line := range lines {
		if !isListing(line) {
			continue
		}
		tokens := strings.Fields(line.Text)
		if len(tokens) < 4 {
			continue
		}
		packages = append(packages, OutdatedPackage{
			Name:    tokens[0],
			Current: strings.Trim(tokens[1], "()"),
			Latest:  tokens[len(tokens)-1],
		})
	}
	return packages
}

// Services extracts {name, status} from every listing line after the
// first (the header), dropping entries whose status is "none".
func Services(lines []output.Line) []Service {
	var services []Service
	headerSeen := false
	for _, line := range lines {
		if !isListing(line) {
			continue
		}
		if !headerSeen {
			headerSeen = true
			continue
		}
		tokens := strings.Fields(line.Text)
		if len(tokens) < 2 || tokens[1] == ServiceStatusNone {
			continue
		}
		services = append(services, Service{Name: tokens[0], Status: tokens[1]})
	}
	return services
}

// SkippedPackages returns the names of packages the upgrade skipped
// because a version is not installed, from lines whose Seq is at
// least since. The name is the text between "Skipping " and the next
// colon. Duplicates are reported once, in first-seen order.
func SkippedPackages(lines []output.Line, since uint64) []string {
	var names []string
	seen := make(map[string]bool)
	for _, line := range lines {
		if line.Seq < since || line.IsPrompt {
			continue
		}
		if !strings.Contains(line.Text, notInstalledCue) {
			continue
		}
		_, after, found := strings.Cut(line.Text, skippedCue)
		if !found {
			continue
		}
		name, _, _ := strings.Cut(after, ":")
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// MissingDependencies extracts "package: dep dep ..." entries from
// stdout listing lines containing a colon. The package is the text
// before the first colon.
func MissingDependencies(lines []output.Line) []MissingDependency {
	var missing []MissingDependency
	for _, line := range lines {
		if !isListing(line) {
			continue
		}
		name, rest, found := strings.Cut(line.Text, ":")
		if !found {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		entry := MissingDependency{Package: name}
		if dependencies := strings.Fields(rest); len(dependencies) > 0 {
			entry.Dependencies = dependencies
		}
		missing = append(missing, entry)
	}
	return missing
}

// MissingPackageNames returns the Package of each entry.
func MissingPackageNames(missing []MissingDependency) []string {
	names := make([]string, 0, len(missing))
	for _, entry := range missing {
		names = append(names, entry.Package)
	}
	return names
}

// DoctorIssues returns lines from either stream that begin with
// "Warning:" or "Error:".
func DoctorIssues(lines []output.Line) []string {
	var issues []string
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if strings.HasPrefix(text, "Warning:") || strings.HasPrefix(text, "Error:") {
			issues = append(issues, text)
		}
	}
	return issues
}
