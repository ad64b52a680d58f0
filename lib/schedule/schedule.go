// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brewkeep/brewkeep/lib/clock"
)

// MinimumInterval is the shortest accepted interval.
const MinimumInterval = time.Minute

// Schedule computes occurrences.
type Schedule interface {
	// Next returns the earliest occurrence strictly after t.
	Next(t time.Time) (time.Time, error)
	String() string
}

// Interval fires every Every, measured from the previous occurrence.
type Interval struct {
	Every time.Duration
}

// Next returns t + Every.
func (interval Interval) Next(t time.Time) (time.Time, error) {
	return t.Add(interval.Every), nil
}

func (interval Interval) String() string {
	return "@every " + interval.Every.String()
}

var macros = map[string]string{
	"@hourly":  "0 * * * *",
	"@daily":   "0 0 * * *",
	"@weekly":  "0 0 * * 0",
	"@monthly": "0 0 1 * *",
}

// Parse parses "@every <duration>", a macro, or a cron expression.
// Cron expressions are evaluated in location (time.Local if nil).
func Parse(expression string, location *time.Location) (Schedule, error) {
	expression = strings.TrimSpace(expression)
	if rest, ok := strings.CutPrefix(expression, "@every"); ok {
		every, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("schedule: %q: %w", expression, err)
		}
		return NewInterval(every)
	}
	if expanded, ok := macros[expression]; ok {
		expression = expanded
	}
	return ParseCron(expression, location)
}

// NewInterval validates every and returns an Interval.
func NewInterval(every time.Duration) (Interval, error) {
	if every < MinimumInterval {
		return Interval{}, fmt.Errorf("schedule: interval %s is shorter than %s", every, MinimumInterval)
	}
	return Interval{Every: every}, nil
}

// Trigger is called at each occurrence with the scheduled time.
// It reports whether a run actually started.
type Trigger func(at time.Time) bool

// Loop calls trigger at every occurrence of schedule until ctx is
// done. Occurrences are computed from the previous scheduled time,
// not from when the trigger returned, so a slow run never shifts
// later occurrences; occurrences already in the past when the loop
// wakes are skipped.
func Loop(ctx context.Context, clk clock.Clock, sched Schedule, trigger Trigger, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	previous := clk.Now()
	for {
		next, err := sched.Next(previous)
		if err != nil {
			return err
		}
		now := clk.Now()
		for !next.After(now) {
			if next, err = sched.Next(next); err != nil {
				return err
			}
		}
		logger.Debug("next scheduled run", "at", next, "schedule", sched.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(next.Sub(now)):
		}

		if trigger(next) {
			logger.Info("scheduled run started", "at", next)
		} else {
			logger.Info("scheduled run skipped, engine busy", "at", next)
		}
		previous = next
	}
}
