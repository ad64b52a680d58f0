// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"fmt"
	"strings"
)

// Summary texts delivered at the end of a run or diagnostic.
const (
	RunSucceeded  = "✅ All updates completed & cache cleaned!"
	RunFailed     = "⚠️ Updates finished with errors."
	RunCancelled  = "⚠️ Run cancelled."
	NoConnection  = "⚠️ No internet connection. Skipping run."
	DoctorHealthy = "✅ Your system is ready to brew!"
	DoctorUnknown = "⚠️ Issues found. Open the log for details."
	MissingNone   = "✅ No missing dependencies found!"
)

// RunSummary decides the notification for a finished maintenance
// run. deliver is false for a plain success when the user turned off
// success notifications; disabled broken casks are always reported.
func RunSummary(anyFailed bool, brokenCasks []string, notifyOnSuccess bool) (success bool, details string, deliver bool) {
	success = !anyFailed
	switch {
	case len(brokenCasks) > 0:
		details = fmt.Sprintf("✅ Done! Disabled %d broken cask(s): %s", len(brokenCasks), strings.Join(brokenCasks, ", "))
	case success:
		details = RunSucceeded
	default:
		details = RunFailed
	}
	deliver = !success || len(brokenCasks) > 0 || notifyOnSuccess
	return success, details, deliver
}

// DoctorSummary describes a doctor result. At most the first two
// issues are quoted.
func DoctorSummary(healthy bool, issues []string) string {
	switch {
	case healthy:
		return DoctorHealthy
	case len(issues) == 0:
		return DoctorUnknown
	}
	quoted := issues
	if len(quoted) > 2 {
		quoted = quoted[:2]
	}
	return fmt.Sprintf("⚠️ %d issue(s): %s", len(issues), strings.Join(quoted, " | "))
}

// MissingSummary describes a missing-dependencies result.
func MissingSummary(count int) string {
	if count == 0 {
		return MissingNone
	}
	return fmt.Sprintf("⚠️ %d formula(e) have missing deps. Run `brewkeep missing --reinstall` to fix.", count)
}

// OutdatedSummary describes an outdated-packages result. Names are
// listed so that a changed set reads as a different notification.
func OutdatedSummary(names []string) string {
	if len(names) == 0 {
		return "✅ Everything is up to date."
	}
	return fmt.Sprintf("⬆️ %d package(s) can be upgraded: %s", len(names), strings.Join(names, ", "))
}

// ServicesSummary describes a services listing. Services in the
// "error" state are named.
func ServicesSummary(total int, failing []string) string {
	if len(failing) == 0 {
		return fmt.Sprintf("✅ %d service(s), none failing.", total)
	}
	return fmt.Sprintf("⚠️ %d of %d service(s) failing: %s", len(failing), total, strings.Join(failing, ", "))
}

// JobSummary describes a single-purpose job such as a system update.
func JobSummary(name string, failed bool) string {
	if failed {
		return fmt.Sprintf("⚠️ %s finished with errors.", name)
	}
	return fmt.Sprintf("✅ %s completed.", name)
}
