// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package logsink

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brewkeep/brewkeep/lib/compress"
)

// Defaults for Config fields left zero.
const (
	DefaultQueueSize = 1024
	DefaultKeep      = 5
)

// archiveTimestamp is the layout used in archive file names. It sorts
// lexically in time order.
const archiveTimestamp = "20060102-150405.000000000"

// Config describes a log file.
type Config struct {
	// Path is the live log file. Its directory is created if missing.
	Path string

	// MaxBytes triggers rotation once the live file would exceed it.
	// Zero disables rotation.
	MaxBytes int64

	// Keep is the number of archives retained after rotation.
	Keep int

	// Compression selects the archive format.
	Compression compress.Tag

	// QueueSize bounds the number of entries waiting to be written.
	QueueSize int

	Logger *slog.Logger
}

type entry struct {
	at   time.Time
	text string
}

// File is a Sink backed by a rotating file.
type File struct {
	config Config
	logger *slog.Logger

	queue   chan entry
	done    chan struct{}
	dropped atomic.Uint64

	closeMutex sync.RWMutex
	closed     bool

	// Owned by the writer goroutine.
	file *os.File
	size int64
}

// Open opens (or creates) the live log file and starts the writer.
func Open(config Config) (*File, error) {
	if config.Path == "" {
		return nil, errors.New("logsink: path is required")
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.Keep <= 0 {
		config.Keep = DefaultKeep
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	file, size, err := openLive(config.Path)
	if err != nil {
		return nil, err
	}

	sink := &File{
		config: config,
		logger: config.Logger,
		queue:  make(chan entry, config.QueueSize),
		done:   make(chan struct{}),
		file:   file,
		size:   size,
	}
	go sink.writeLoop()
	return sink, nil
}

func openLive(path string) (*os.File, int64, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, 0, fmt.Errorf("opening log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	return file, info.Size(), nil
}

// Append queues an entry. If the queue is full the entry is dropped
// and counted. Append after Close is a no-op.
func (sink *File) Append(at time.Time, text string) {
	sink.closeMutex.RLock()
	defer sink.closeMutex.RUnlock()
	if sink.closed {
		return
	}
	select {
	case sink.queue <- entry{at: at, text: text}:
	default:
		sink.dropped.Add(1)
	}
}

// Dropped returns the number of entries discarded because the queue
// was full.
func (sink *File) Dropped() uint64 {
	return sink.dropped.Load()
}

// Path returns the live log file path.
func (sink *File) Path() string {
	return sink.config.Path
}

// Close writes every queued entry, closes the file, and stops the
// writer. Safe to call more than once.
func (sink *File) Close() error {
	sink.closeMutex.Lock()
	if !sink.closed {
		sink.closed = true
		close(sink.queue)
	}
	sink.closeMutex.Unlock()
	<-sink.done
	return nil
}

func (sink *File) writeLoop() {
	defer close(sink.done)
	for item := range sink.queue {
		sink.write(FormatEntry(item.at, item.text))
	}
	if sink.file != nil {
		if err := sink.file.Close(); err != nil {
			sink.logger.Warn("closing log file", "path", sink.config.Path, "error", err)
		}
		sink.file = nil
	}
}

func (sink *File) write(line string) {
	if sink.config.MaxBytes > 0 && sink.size > 0 && sink.size+int64(len(line)) > sink.config.MaxBytes {
		if err := sink.rotate(); err != nil {
			sink.logger.Warn("rotating log file", "path", sink.config.Path, "error", err)
		}
	}
	if sink.file == nil {
		return
	}
	written, err := io.WriteString(sink.file, line)
	sink.size += int64(written)
	if err != nil {
		sink.logger.Warn("writing log file", "path", sink.config.Path, "error", err)
	}
}

// rotate closes the live file, compresses it into an archive, prunes
// old archives, and reopens an empty live file.
func (sink *File) rotate() error {
	if err := sink.file.Close(); err != nil {
		return fmt.Errorf("closing live log: %w", err)
	}
	sink.file = nil

	rotated := sink.config.Path + ".rotating"
	if err := os.Rename(sink.config.Path, rotated); err != nil {
		return sink.reopen(fmt.Errorf("renaming live log: %w", err))
	}

	archive := sink.config.Path + "." + time.Now().UTC().Format(archiveTimestamp) + sink.config.Compression.Extension()
	if err := archiveFile(rotated, archive, sink.config.Compression); err != nil {
		return sink.reopen(err)
	}
	if err := os.Remove(rotated); err != nil {
		sink.logger.Warn("removing rotated log", "path", rotated, "error", err)
	}

	if err := sink.prune(); err != nil {
		sink.logger.Warn("pruning log archives", "error", err)
	}
	return sink.reopen(nil)
}

func (sink *File) reopen(cause error) error {
	file, size, err := openLive(sink.config.Path)
	if err != nil {
		return errors.Join(cause, err)
	}
	sink.file = file
	sink.size = size
	return cause
}

func archiveFile(source, destination string, tag compress.Tag) error {
	input, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("opening rotated log: %w", err)
	}
	defer input.Close()

	output, err := os.OpenFile(destination, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	writer, err := compress.NewWriter(output, tag)
	if err != nil {
		output.Close()
		return err
	}
	if _, err := io.Copy(writer, input); err != nil {
		writer.Close()
		output.Close()
		return fmt.Errorf("compressing archive: %w", err)
	}
	if err := writer.Close(); err != nil {
		output.Close()
		return fmt.Errorf("flushing archive: %w", err)
	}
	return output.Close()
}

func (sink *File) prune() error {
	archives, err := Archives(sink.config.Path)
	if err != nil {
		return err
	}
	if len(archives) <= sink.config.Keep {
		return nil
	}
	var errs []error
	for _, path := range archives[:len(archives)-sink.config.Keep] {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Archives lists the rotated archives of the log at path, oldest
// first.
func Archives(path string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("listing log directory: %w", err)
	}
	prefix := filepath.Base(path) + "."
	var archives []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".rotating") {
			continue
		}
		archives = append(archives, filepath.Join(filepath.Dir(path), name))
	}
	sort.Strings(archives)
	return archives, nil
}

// OpenArchive opens a rotated archive for reading, decompressing
// according to its file extension.
func OpenArchive(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := compress.NewReader(file, compress.TagForPath(path))
	if err != nil {
		file.Close()
		return nil, err
	}
	return &archiveReader{ReadCloser: reader, file: file}, nil
}

type archiveReader struct {
	io.ReadCloser
	file *os.File
}

func (reader *archiveReader) Close() error {
	return errors.Join(reader.ReadCloser.Close(), reader.file.Close())
}
