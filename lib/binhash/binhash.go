// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Digest is the SHA256 digest of a file's contents.
type Digest [32]byte

// String returns the hex encoding of the digest.
func (digest Digest) String() string {
	return hex.EncodeToString(digest[:])
}

// Short returns the first twelve hex characters, enough to tell
// builds apart in log lines.
func (digest Digest) Short() string {
	return digest.String()[:12]
}

// HashFile streams the file at path through SHA256. Symlinks are
// followed, so hashing a Homebrew bin/ link hashes the version it
// currently points to.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
