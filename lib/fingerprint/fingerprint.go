// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes short, stable digests of command
// output so repeated runs can tell whether anything changed.
//
// Digests are BLAKE3 in keyed mode. Each kind of input hashes under
// its own domain key, so an outdated list and a notification with the
// same bytes never share a digest. Lines are length-prefixed before
// hashing; ["ab", "c"] and ["a", "bc"] differ.
package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte BLAKE3 digest.
type Digest [32]byte

// Domain is a 32-byte BLAKE3 key separating digest contexts.
type Domain [32]byte

// Domain keys are the ASCII domain name zero-padded to 32 bytes.
// Changing one invalidates every stored digest in that domain.
var (
	// Outdated covers the "name current latest" listing of
	// outdated packages.
	Outdated = Domain{
		'b', 'r', 'e', 'w', 'k', 'e', 'e', 'p', '.', 'o', 'u', 't', 'd', 'a', 't', 'e',
		'd', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	// Output covers the full text of a run's output sequence.
	Output = Domain{
		'b', 'r', 'e', 'w', 'k', 'e', 'e', 'p', '.', 'o', 'u', 't', 'p', 'u', 't', 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	// Notification covers a delivered (success, details) pair.
	Notification = Domain{
		'b', 'r', 'e', 'w', 'k', 'e', 'e', 'p', '.', 'n', 'o', 't', 'i', 'f', 'i', 'c',
		'a', 't', 'i', 'o', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// Lines digests lines under domain.
func Lines(domain Domain, lines []string) Digest {
	hasher, err := blake3.NewKeyed(domain[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	var length [8]byte
	for _, line := range lines {
		binary.LittleEndian.PutUint64(length[:], uint64(len(line)))
		hasher.Write(length[:])
		hasher.Write([]byte(line))
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// Of digests a single string under domain.
func Of(domain Domain, text string) Digest {
	return Lines(domain, []string{text})
}

// IsZero reports whether digest is the zero value (no digest).
func (digest Digest) IsZero() bool {
	return digest == Digest{}
}

// String returns the hex encoding of the digest.
func (digest Digest) String() string {
	return hex.EncodeToString(digest[:])
}

// Short returns the first 12 hex characters, for display.
func (digest Digest) Short() string {
	return digest.String()[:12]
}

// Parse decodes a 64-character hex digest.
func Parse(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(digest) {
		return digest, fmt.Errorf("parsing digest: got %d bytes, want %d", len(decoded), len(digest))
	}
	copy(digest[:], decoded)
	return digest, nil
}

// FromBytes copies a stored digest. A slice of the wrong length
// yields the zero digest.
func FromBytes(data []byte) Digest {
	var digest Digest
	if len(data) == len(digest) {
		copy(digest[:], data)
	}
	return digest
}

// MarshalText encodes the digest as hex.
func (digest Digest) MarshalText() ([]byte, error) {
	return []byte(digest.String()), nil
}

// UnmarshalText decodes a hex digest.
func (digest *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*digest = parsed
	return nil
}
