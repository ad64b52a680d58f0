// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package schedule decides when the daemon starts unattended
// maintenance runs.
//
// A schedule is either a fixed interval ("@every 24h", or
// schedule.interval in the config) or a 5-field cron expression
// evaluated in local wall-clock time:
//
//	┌───────────── minute (0-59)
//	│ ┌───────────── hour (0-23)
//	│ │ ┌───────────── day of month (1-31)
//	│ │ │ ┌───────────── month (1-12)
//	│ │ │ │ ┌───────────── day of week (0-6, 0=Sunday)
//	│ │ │ │ │
//	* * * * *
//
// Fields take single values, ranges (1-5), lists (1,3,5), steps
// (*/15, 1-30/5) and the wildcard. The macros @hourly, @daily,
// @weekly and @monthly are accepted. When both day fields are
// restricted a day matches if either does, as in Vixie cron.
//
// [Loop] waits for each occurrence on a [clock.Clock] and calls a
// trigger; a trigger that finds a run already in progress simply
// skips that occurrence.
package schedule
