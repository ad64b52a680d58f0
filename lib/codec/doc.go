// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every brewkeep
// package that speaks CBOR.
//
// Two formats are in use. JSON is for anything a person or script
// reads: CLI --json output, the steps file, exported history. CBOR is
// for the daemon's control socket and for run output archived in the
// history database. Encoding is deterministic (RFC 8949 §4.2), so the
// same run record always produces the same bytes and can be
// fingerprinted.
//
//	data, err := codec.Marshal(record)
//	err = codec.Unmarshal(data, &record)
//
// Sockets use the stream forms:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct tags
//
// A `cbor` tag marks a type that is only ever CBOR (socket envelopes,
// archived blobs). A `json` tag marks a type that travels as both:
// fxamacker/cbor falls back to `json` tags when `cbor` tags are absent.
// Do not put both tags on one field.
package codec
