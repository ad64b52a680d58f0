// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package history archives finished runs and diagnostics in a local
// SQLite database so `brewkeep history` can show what happened after
// the in-memory output sequence is gone.
//
// Each row carries the summary columns needed for listing (kind,
// times, outcome, notification text, output digest) plus one blob
// holding the step outcomes and the full output sequence. The blob
// is CBOR, compressed with zstd when that saves space; the row
// records the compression tag and the uncompressed size so [Store.Get]
// can reverse it without sniffing.
//
// The store keeps at most [Config.Keep] records, dropping the oldest
// after every save.
package history
