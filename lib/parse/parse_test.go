// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package parse

import (
	"reflect"
	"strings"
	"testing"

	"github.com/brewkeep/brewkeep/lib/output"
)

func TestOutdatedPackages(t *testing.T) {
	t.Parallel()

	lines := Lines("foo (1.0) < 2.0 and bar\nwget (1.21.3) < 1.24.5\nshort line\n", false)
	lines = append([]output.Line{{Text: "$ brew outdated --verbose"}}, lines...)
	lines = append(lines, output.Line{Text: "Error: some stderr line with words", IsError: true})

	got := OutdatedPackages(lines)
	want := []OutdatedPackage{
		{Name: "foo", Current: "1.0", Latest: "bar"},
		{Name: "wget", Current: "1.21.3", Latest: "1.24.5"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OutdatedPackages = %+v, want %+v", got, want)
	}

	again := OutdatedPackages(lines)
	if !reflect.DeepEqual(again, got) {
		t.Errorf("second parse = %+v, want %+v", again, got)
	}
}

func TestOutdatedPackagesEmpty(t *testing.T) {
	t.Parallel()

	if got := OutdatedPackages(Lines("nothing here\n", false)); got != nil {
		t.Errorf("OutdatedPackages = %+v, want nil", got)
	}
}

func TestServices(t *testing.T) {
	t.Parallel()

	got := Services(Lines("Name Status\nredis started\nmongo none\n", false))
	want := []Service{{Name: "redis", Status: "started"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Services = %+v, want %+v", got, want)
	}
}

func TestServicesSkipsEchoBeforeHeader(t *testing.T) {
	t.Parallel()

	lines := append([]output.Line{{Text: "$ brew services list"}},
		Lines("Name       Status  User File\npostgresql error   alice ~/Library/x.plist\nsolo\n", false)...)

	got := Services(lines)
	want := []Service{{Name: "postgresql", Status: "error"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Services = %+v, want %+v", got, want)
	}
}

func TestSkippedPackages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		lines []output.Line
		since uint64
		want  []string
	}{
		{
			name:  "single warning",
			lines: Lines("Warning: Skipping foo: most recent version not installed", true),
			want:  []string{"foo"},
		},
		{
			name:  "missing not-installed cue",
			lines: Lines("Warning: Skipping foo: pinned", true),
			want:  nil,
		},
		{
			name: "since excludes earlier lines",
			lines: Lines("Warning: Skipping old: most recent version 1 not installed\n"+
				"Warning: Skipping new: most recent version 2 not installed", true),
			since: 1,
			want:  []string{"new"},
		},
		{
			name: "duplicates collapse",
			lines: Lines("Warning: Skipping foo: most recent version not installed\n"+
				"Warning: Skipping bar: most recent version not installed\n"+
				"Warning: Skipping foo: most recent version not installed", true),
			want: []string{"foo", "bar"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := SkippedPackages(test.lines, test.since)
			if !reflect.DeepEqual(got, test.want) {
				t.Errorf("SkippedPackages = %q, want %q", got, test.want)
			}
		})
	}
}

func TestMissingDependencies(t *testing.T) {
	t.Parallel()

	lines := []output.Line{
		{Text: "$ brew missing"},
		{Text: "imagemagick: libheif little-cms2"},
		{Text: "no colon here"},
		{Text: "Error: not: counted", IsError: true},
		{Text: "ffmpeg:"},
	}
	got := MissingDependencies(lines)
	want := []MissingDependency{
		{Package: "imagemagick", Dependencies: []string{"libheif", "little-cms2"}},
		{Package: "ffmpeg"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MissingDependencies = %+v, want %+v", got, want)
	}
	if names := MissingPackageNames(got); !reflect.DeepEqual(names, []string{"imagemagick", "ffmpeg"}) {
		t.Errorf("MissingPackageNames = %q", names)
	}
}

func TestDoctorIssues(t *testing.T) {
	t.Parallel()

	lines := []output.Line{
		{Text: "Please note that these warnings are just used to help the Homebrew maintainers"},
		{Text: "Warning: Some installed formulae are deprecated or disabled.", IsError: true},
		{Text: "Error: Xcode is outdated."},
		{Text: "  Warning: indented"},
	}
	got := DoctorIssues(lines)
	want := []string{
		"Warning: Some installed formulae are deprecated or disabled.",
		"Error: Xcode is outdated.",
		"Warning: indented",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DoctorIssues = %q, want %q", got, want)
	}
}

func TestLines(t *testing.T) {
	t.Parallel()

	lines := Lines("a\n\nb\n", true)
	if len(lines) != 2 {
		t.Fatalf("Lines = %+v, want two lines", lines)
	}
	if lines[1].Seq != 1 || !lines[1].IsError || lines[1].Text != "b" {
		t.Errorf("lines[1] = %+v", lines[1])
	}
}

func TestListing(t *testing.T) {
	t.Parallel()

	lines := []output.Line{
		{Text: "$ brew list --cask"},
		{Text: "firefox"},
		{Text: "iterm2  zoom"},
		{Text: "Error: something", IsError: true},
	}
	got := strings.Join(Listing(lines), ",")
	if want := "firefox,iterm2,zoom"; got != want {
		t.Errorf("Listing = %q, want %q", got, want)
	}
}
