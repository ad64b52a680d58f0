// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package compress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func sampleLog() []byte {
	var builder strings.Builder
	for index := range 200 {
		builder.WriteString("[2026-10-19 09:00:00] stdout: ==> Upgrading wget 1.21.")
		builder.WriteByte(byte('0' + index%10))
		builder.WriteString(" -> 1.24.5\n")
	}
	return []byte(builder.String())
}

func TestBlockRoundTrip(t *testing.T) {
	t.Parallel()

	data := sampleLog()
	for _, tag := range []Tag{None, LZ4, Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			compressed, err := Block(data, tag)
			if err != nil {
				t.Fatalf("Block: %v", err)
			}
			if tag != None && len(compressed) >= len(data) {
				t.Errorf("compressed %d bytes to %d", len(data), len(compressed))
			}
			restored, err := Unblock(compressed, tag, len(data))
			if err != nil {
				t.Fatalf("Unblock: %v", err)
			}
			if !bytes.Equal(restored, data) {
				t.Error("restored data differs from input")
			}
		})
	}
}

func TestBlockIncompressible(t *testing.T) {
	t.Parallel()

	data := []byte{0x01, 0x7f, 0x33}
	for _, tag := range []Tag{LZ4, Zstd} {
		if _, err := Block(data, tag); !errors.Is(err, ErrIncompressible) {
			t.Errorf("Block(%s) error = %v, want ErrIncompressible", tag, err)
		}
	}
}

func TestUnblockSizeMismatch(t *testing.T) {
	t.Parallel()

	data := sampleLog()
	compressed, err := Block(data, Zstd)
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if _, err := Unblock(compressed, Zstd, len(data)+1); err == nil {
		t.Error("Unblock with wrong size succeeded")
	}
}

func TestStreamRoundTrip(t *testing.T) {
	t.Parallel()

	data := sampleLog()
	for _, tag := range []Tag{None, LZ4, Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			var archive bytes.Buffer
			writer, err := NewWriter(&archive, tag)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			if _, err := writer.Write(data); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := writer.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			reader, err := NewReader(&archive, tag)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			defer reader.Close()
			restored, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(restored, data) {
				t.Error("restored stream differs from input")
			}
		})
	}
}

func TestParseAndExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		tag       Tag
		extension string
	}{
		{"none", None, ""},
		{"lz4", LZ4, ".lz4"},
		{"zstd", Zstd, ".zst"},
	}
	for _, test := range tests {
		tag, err := Parse(test.name)
		if err != nil {
			t.Fatalf("Parse(%q): %v", test.name, err)
		}
		if tag != test.tag {
			t.Errorf("Parse(%q) = %v, want %v", test.name, tag, test.tag)
		}
		if got := tag.Extension(); got != test.extension {
			t.Errorf("%v.Extension() = %q, want %q", tag, got, test.extension)
		}
		if got := TagForPath("brewkeep.log.1" + test.extension); got != test.tag {
			t.Errorf("TagForPath(%q) = %v, want %v", "brewkeep.log.1"+test.extension, got, test.tag)
		}
	}
	if _, err := Parse("gzip"); err == nil {
		t.Error("Parse(gzip) succeeded")
	}
}
