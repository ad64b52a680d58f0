// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress wraps the two compression algorithms brewkeep
// uses: zstd for text that is kept (archived logs, run output in the
// history database) and LZ4 for archives where rotation speed matters
// more than size.
//
// Block functions operate on whole byte slices with a known
// uncompressed size. Stream functions wrap an io.Writer or io.Reader
// and are used for log archives, which are compressed as they are
// copied out of the live log.
package compress

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies a compression algorithm. Tag values are persisted in
// the history database; do not renumber them.
type Tag uint8

const (
	None Tag = 0
	LZ4  Tag = 1
	Zstd Tag = 2
)

// ErrIncompressible is returned by Block when the compressed form is
// not smaller than the input. Callers store the data with None.
var ErrIncompressible = errors.New("compress: data is incompressible")

func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// Extension returns the file suffix for archives written with tag,
// including the leading dot. None has no suffix.
func (tag Tag) Extension() string {
	switch tag {
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	default:
		return ""
	}
}

// Parse converts a configuration name into a Tag.
func Parse(name string) (Tag, error) {
	switch name {
	case "none", "":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want none, lz4, or zstd)", name)
	}
}

// TagForPath infers the tag from an archive file name.
func TagForPath(path string) Tag {
	switch {
	case hasSuffix(path, ".zst"):
		return Zstd
	case hasSuffix(path, ".lz4"):
		return LZ4
	default:
		return None
	}
}

func hasSuffix(path, suffix string) bool {
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compress: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compress: zstd decoder initialization failed: " + err.Error())
	}
}

// Block compresses data with tag. For None the input is returned
// unchanged. Returns ErrIncompressible when compression does not save
// space.
func Block(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, ErrIncompressible
		}
		return destination[:written], nil
	case Zstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, ErrIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}

// Unblock reverses Block. The result must be exactly
// uncompressedSize bytes long.
func Unblock(compressed []byte, tag Tag, uncompressedSize int) ([]byte, error) {
	var result []byte
	switch tag {
	case None:
		result = compressed
	case LZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		result = destination[:read]
	case Zstd:
		var err error
		result, err = zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("%s decompress: got %d bytes, expected %d", tag, len(result), uncompressedSize)
	}
	return result, nil
}

// NewWriter returns a writer that compresses into destination. Close
// flushes the compressor; it does not close destination.
func NewWriter(destination io.Writer, tag Tag) (io.WriteCloser, error) {
	switch tag {
	case None:
		return nopWriteCloser{destination}, nil
	case LZ4:
		return lz4.NewWriter(destination), nil
	case Zstd:
		encoder, err := zstd.NewWriter(destination, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return encoder, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}

// NewReader returns a reader that decompresses source. Close releases
// decoder resources; it does not close source.
func NewReader(source io.Reader, tag Tag) (io.ReadCloser, error) {
	switch tag {
	case None:
		return io.NopCloser(source), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(source)), nil
	case Zstd:
		decoder, err := zstd.NewReader(source)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return decoder.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression tag %d", uint8(tag))
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
