// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError signals a non-zero exit status without an extra error
// line. Commands return it after writing their own output, as when
// `brewkeep doctor` reports problems or a run fails.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode returns the status the process exits with.
func (e *ExitError) ExitCode() int {
	return e.Code
}
