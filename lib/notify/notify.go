// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify delivers end-of-run summaries to the user.
//
// A [Notifier] receives exactly one (success, details) pair per
// finished run or diagnostic. Implementations here log the summary,
// run a user-configured command (terminal-notifier, osascript, a chat
// webhook via curl), fan out to several notifiers, or suppress
// repeated identical successes. Desktop notification centres live
// behind the command notifier; this package never links against one.
package notify

import (
	"log/slog"
	"sync"

	"github.com/brewkeep/brewkeep/lib/fingerprint"
)

// Notifier receives run summaries. Notify must not block for long;
// the executor calls it from its worker after the run state has
// already returned to idle.
type Notifier interface {
	Notify(success bool, details string)
}

// Func adapts a function to [Notifier].
type Func func(success bool, details string)

// Notify calls f.
func (f Func) Notify(success bool, details string) { f(success, details) }

// Discard drops every notification.
var Discard Notifier = Func(func(bool, string) {})

// Log writes notifications to a structured logger: successes at
// Info, failures at Warn.
type Log struct {
	Logger *slog.Logger
}

// Notify logs the summary.
func (l Log) Notify(success bool, details string) {
	if l.Logger == nil {
		return
	}
	if success {
		l.Logger.Info("notification", "success", true, "details", details)
	} else {
		l.Logger.Warn("notification", "success", false, "details", details)
	}
}

// Multi delivers to every notifier in order.
type Multi []Notifier

// Notify fans out to each non-nil notifier.
func (m Multi) Notify(success bool, details string) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(success, details)
		}
	}
}

// Dedup suppresses a successful notification identical to the
// previous delivered one. Failures are always delivered and reset
// the comparison, so the next success after a failure goes through.
type Dedup struct {
	next Notifier

	mu   sync.Mutex
	last fingerprint.Digest
}

// NewDedup wraps next.
func NewDedup(next Notifier) *Dedup {
	return &Dedup{next: next}
}

// Notify forwards unless the notification repeats the last success.
func (d *Dedup) Notify(success bool, details string) {
	digest := fingerprint.Of(fingerprint.Notification, details)

	d.mu.Lock()
	if success && digest == d.last {
		d.mu.Unlock()
		return
	}
	if success {
		d.last = digest
	} else {
		d.last = fingerprint.Digest{}
	}
	d.mu.Unlock()

	d.next.Notify(success, details)
}

// Notification is one recorded delivery.
type Notification struct {
	Success bool
	Details string
}

// Recorder keeps every notification in memory and signals each
// delivery on a channel. Used by tests and by the control socket's
// last-notification query.
type Recorder struct {
	mu       sync.Mutex
	received []Notification
	signal   chan Notification
}

// NewRecorder returns a Recorder whose channel buffers up to
// capacity undelivered signals; further signals are dropped.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{signal: make(chan Notification, capacity)}
}

// Notify records the notification.
func (r *Recorder) Notify(success bool, details string) {
	notification := Notification{Success: success, Details: details}
	r.mu.Lock()
	r.received = append(r.received, notification)
	r.mu.Unlock()
	select {
	case r.signal <- notification:
	default:
	}
}

// C returns the delivery channel.
func (r *Recorder) C() <-chan Notification { return r.signal }

// All returns a copy of every notification received so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.received...)
}

// Last returns the most recent notification and whether one exists.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.received) == 0 {
		return Notification{}, false
	}
	return r.received[len(r.received)-1], true
}
