// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// decodeChunks reads source in reads of up to size bytes and calls
// emit with each decoded chunk. A multi-byte rune split across reads
// is held back and prefixed to the next read. Invalid bytes become
// U+FFFD. Returns nil at EOF, otherwise the read error.
func decodeChunks(source io.Reader, size int, emit func(string)) error {
	buffer := make([]byte, size)
	var carry []byte
	for {
		count, err := source.Read(buffer)
		if count > 0 {
			data := append(carry, buffer[:count]...)
			complete, rest := splitIncompleteRune(data)
			carry = append([]byte(nil), rest...)
			if len(complete) > 0 {
				emit(strings.ToValidUTF8(string(complete), "\uFFFD"))
			}
		}
		if err != nil {
			if len(carry) > 0 {
				emit(strings.ToValidUTF8(string(carry), "\uFFFD"))
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// splitIncompleteRune separates a trailing partial UTF-8 sequence from
// data.
func splitIncompleteRune(data []byte) (complete, rest []byte) {
	for back := 1; back < utf8.UTFMax && back <= len(data); back++ {
		start := len(data) - back
		if !utf8.RuneStart(data[start]) {
			continue
		}
		if utf8.FullRune(data[start:]) {
			return data, nil
		}
		return data[:start], data[start:]
	}
	return data, nil
}
