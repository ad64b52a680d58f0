// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("exit %d", e.code) }
func (e codedError) ExitCode() int { return e.code }

func TestReport(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name   string
		err    error
		code   int
		output string
	}{
		{"nil", nil, 0, ""},
		{"plain", errors.New("config missing"), 1, "error: config missing\n"},
		{"coded", codedError{code: 3}, 3, ""},
		{"wrapped coded", fmt.Errorf("run: %w", codedError{code: 2}), 2, ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			var output strings.Builder
			if code := Report(&output, test.err); code != test.code {
				t.Errorf("code = %d, want %d", code, test.code)
			}
			if output.String() != test.output {
				t.Errorf("output = %q, want %q", output.String(), test.output)
			}
		})
	}
}
