// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"strings"
	"sync"
)

// DefaultCapacity is the default number of lines retained. A full
// upgrade of a few hundred formulae produces a few thousand lines.
const DefaultCapacity = 10000

// Line is one line of process or engine output.
type Line struct {
	// Seq is the line's position in the buffer's lifetime sequence.
	Seq uint64 `json:"seq"`

	// Text is the line without its terminator.
	Text string `json:"text"`

	// IsError is true for stderr output. Prompt text is never an error.
	IsError bool `json:"is_error,omitempty"`

	// IsPrompt is true when the line was classified as a request for
	// interactive input.
	IsPrompt bool `json:"is_prompt,omitempty"`
}

// Buffer is a bounded, append-only ring of lines. All methods are safe
// for concurrent use.
type Buffer struct {
	mutex    sync.Mutex
	lines    []Line
	capacity int
	// start is the ring index of the oldest retained line.
	start int
	count int
	// nextSeq is the sequence number the next appended line receives.
	nextSeq uint64
	// evicted counts lines dropped because the ring was full.
	evicted uint64

	subscribers map[int]chan struct{}
	nextSubID   int
}

// NewBuffer creates a buffer that retains at most capacity lines. A
// non-positive capacity selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		lines:       make([]Line, capacity),
		capacity:    capacity,
		subscribers: make(map[int]chan struct{}),
	}
}

// Append splits text into lines and appends each non-empty line with
// the given classification. Returns the appended lines. The whole
// chunk is appended under one lock acquisition, so lines from two
// concurrent writers never interleave within a chunk.
func (buffer *Buffer) Append(text string, isError, isPrompt bool) []Line {
	parts := SplitLines(text)
	if len(parts) == 0 {
		return nil
	}

	buffer.mutex.Lock()
	appended := make([]Line, 0, len(parts))
	for _, part := range parts {
		line := Line{
			Seq:      buffer.nextSeq,
			Text:     part,
			IsError:  isError,
			IsPrompt: isPrompt,
		}
		buffer.nextSeq++

		position := (buffer.start + buffer.count) % buffer.capacity
		buffer.lines[position] = line
		if buffer.count < buffer.capacity {
			buffer.count++
		} else {
			buffer.start = (buffer.start + 1) % buffer.capacity
			buffer.evicted++
		}
		appended = append(appended, line)
	}
	buffer.notifyLocked()
	buffer.mutex.Unlock()

	return appended
}

// Snapshot returns a copy of every retained line in order.
func (buffer *Buffer) Snapshot() []Line {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.copyFromLocked(0)
}

// Since returns the retained lines whose sequence number is at least
// seq. If seq is older than the oldest retained line, all retained
// lines are returned (the caller missed some output). Returns nil when
// seq is at or beyond NextSeq.
func (buffer *Buffer) Since(seq uint64) []Line {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	if seq >= buffer.nextSeq || buffer.count == 0 {
		return nil
	}
	oldest := buffer.nextSeq - uint64(buffer.count)
	skip := 0
	if seq > oldest {
		skip = int(seq - oldest)
	}
	return buffer.copyFromLocked(skip)
}

// NextSeq returns the sequence number the next appended line will
// receive.
func (buffer *Buffer) NextSeq() uint64 {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.nextSeq
}

// Len returns the number of retained lines.
func (buffer *Buffer) Len() int {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.count
}

// Evicted returns how many lines have been dropped because the ring
// was full.
func (buffer *Buffer) Evicted() uint64 {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()
	return buffer.evicted
}

// Clear drops every retained line. Sequence numbers keep increasing.
func (buffer *Buffer) Clear() {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	for index := range buffer.lines {
		buffer.lines[index] = Line{}
	}
	buffer.start = 0
	buffer.count = 0
	buffer.notifyLocked()
}

// Subscribe returns a channel that receives a value whenever the
// buffer changes, and a cancel function that unregisters it. The
// channel has capacity 1: bursts of appends coalesce into a single
// notification, and the subscriber reads the new lines with Since.
func (buffer *Buffer) Subscribe() (<-chan struct{}, func()) {
	buffer.mutex.Lock()
	defer buffer.mutex.Unlock()

	id := buffer.nextSubID
	buffer.nextSubID++
	channel := make(chan struct{}, 1)
	buffer.subscribers[id] = channel

	return channel, func() {
		buffer.mutex.Lock()
		defer buffer.mutex.Unlock()
		delete(buffer.subscribers, id)
	}
}

func (buffer *Buffer) notifyLocked() {
	for _, channel := range buffer.subscribers {
		select {
		case channel <- struct{}{}:
		default:
		}
	}
}

func (buffer *Buffer) copyFromLocked(skip int) []Line {
	if skip >= buffer.count {
		return nil
	}
	result := make([]Line, 0, buffer.count-skip)
	for offset := skip; offset < buffer.count; offset++ {
		result = append(result, buffer.lines[(buffer.start+offset)%buffer.capacity])
	}
	return result
}

// SplitLines splits text on line terminators and drops empty lines.
// A trailing carriage return (CRLF output, progress redraws) is
// removed from each line.
func SplitLines(text string) []string {
	var lines []string
	for _, part := range strings.Split(text, "\n") {
		part = strings.TrimRight(part, "\r")
		if part == "" {
			continue
		}
		lines = append(lines, part)
	}
	return lines
}

// Texts returns the text of each line, in order.
func Texts(lines []Line) []string {
	texts := make([]string, len(lines))
	for index, line := range lines {
		texts[index] = line.Text
	}
	return texts
}
