// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import "testing"

func TestLinesDeterministic(t *testing.T) {
	t.Parallel()

	first := Lines(Outdated, []string{"wget 1.0 < 1.1", "jq 1.6 < 1.7"})
	second := Lines(Outdated, []string{"wget 1.0 < 1.1", "jq 1.6 < 1.7"})
	if first != second {
		t.Errorf("same input produced %s and %s", first, second)
	}
	if first.IsZero() {
		t.Error("digest is zero")
	}
}

func TestLinesSeparation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Digest
	}{
		{"line boundaries", Lines(Output, []string{"ab", "c"}), Lines(Output, []string{"a", "bc"})},
		{"domains", Lines(Output, []string{"x"}), Lines(Outdated, []string{"x"})},
		{"order", Lines(Output, []string{"a", "b"}), Lines(Output, []string{"b", "a"})},
		{"empty line", Lines(Output, nil), Lines(Output, []string{""})},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if test.a == test.b {
				t.Errorf("digests collide: %s", test.a)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	digest := Of(Notification, "✅ All updates completed & cache cleaned!")
	parsed, err := Parse(digest.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != digest {
		t.Errorf("got = %s, want %s", parsed, digest)
	}
	if len(digest.Short()) != 12 {
		t.Errorf("Short() = %q, want 12 characters", digest.Short())
	}
	if FromBytes(digest[:]) != digest {
		t.Error("FromBytes did not copy digest")
	}
	if !FromBytes([]byte{1, 2}).IsZero() {
		t.Error("FromBytes(short) is not zero")
	}

	for _, bad := range []string{"zz", "abcd"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) succeeded", bad)
		}
	}
}
