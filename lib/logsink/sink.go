// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package logsink writes the durable run log: one timestamped line
// per output line, command echo, and exit status.
//
// The log is a side channel. Appends never block the caller and
// never fail from the caller's point of view: a [File] queues entries
// to a background writer and drops them when the queue is full. Write
// errors are reported through the structured logger, not returned.
//
// The live file rotates when it exceeds a size limit. The rotated file
// is compressed into an archive next to it (zstd or LZ4, see
// lib/compress) and old archives beyond the configured count are
// removed.
package logsink

import "time"

// TimestampFormat is the layout of the bracketed prefix on every
// entry.
const TimestampFormat = "2006-01-02 15:04:05"

// Sink receives log entries. Implementations must be safe for
// concurrent use and must not block.
type Sink interface {
	Append(at time.Time, text string)
}

// Discard is a Sink that drops every entry.
var Discard Sink = discard{}

type discard struct{}

func (discard) Append(time.Time, string) {}

// FormatEntry renders one entry as written to the file, including the
// trailing newline.
func FormatEntry(at time.Time, text string) string {
	return "[" + at.Format(TimestampFormat) + "] " + text + "\n"
}
