// Copyright 2026 The Brewkeep Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cron is a parsed 5-field cron expression.
type Cron struct {
	expression  string
	location    *time.Location
	minutes     bitset64
	hours       bitset64
	daysOfMonth bitset64
	months      bitset64
	daysOfWeek  bitset64

	// Both day fields restricted: a day matches if either does.
	dayUnion bool
}

type bitset64 uint64

func (b bitset64) has(value int) bool { return b&(1<<uint(value)) != 0 }
func (b *bitset64) set(value int)     { *b |= 1 << uint(value) }

// ParseCron parses a 5-field cron expression evaluated in location
// (time.Local if nil).
func ParseCron(expression string, location *time.Location) (*Cron, error) {
	if location == nil {
		location = time.Local
	}
	fields := strings.Fields(expression)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron: expected 5 fields, got %d", len(fields))
	}

	specs := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}
	schedule := &Cron{expression: strings.Join(fields, " "), location: location}
	targets := []*bitset64{&schedule.minutes, &schedule.hours, &schedule.daysOfMonth, &schedule.months, &schedule.daysOfWeek}
	for index, spec := range specs {
		bits, err := parseField(fields[index], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("cron: %s field: %w", spec.name, err)
		}
		*targets[index] = bits
	}
	schedule.dayUnion = !strings.HasPrefix(fields[2], "*") && !strings.HasPrefix(fields[4], "*")
	return schedule, nil
}

func (c *Cron) String() string { return c.expression }

// Next returns the earliest matching minute strictly after t, in the
// schedule's location.
func (c *Cron) Next(t time.Time) (time.Time, error) {
	t = t.In(c.location).Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(4, 0, 0)

	for t.Before(limit) {
		if !c.months.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, c.location)
			continue
		}
		if !c.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, c.location)
			continue
		}
		if !c.hours.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, c.location)
			continue
		}
		if !c.minutes.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cron: no matching time within 4 years of %s", t.Format(time.RFC3339))
}

func (c *Cron) dayMatches(t time.Time) bool {
	dayOfMonth := c.daysOfMonth.has(t.Day())
	dayOfWeek := c.daysOfWeek.has(int(t.Weekday()))
	if c.dayUnion {
		return dayOfMonth || dayOfWeek
	}
	return dayOfMonth && dayOfWeek
}

func parseField(field string, minimum, maximum int) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		bits, err := parseTerm(term, minimum, maximum)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	return result, nil
}

// parseTerm parses *, */N, V, V-V or V-V/N.
func parseTerm(term string, minimum, maximum int) (bitset64, error) {
	rangeExpression, stepText, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		parsed, err := strconv.Atoi(stepText)
		if err != nil {
			return 0, fmt.Errorf("invalid step %q: %w", stepText, err)
		}
		if parsed <= 0 {
			return 0, fmt.Errorf("step must be positive, got %d", parsed)
		}
		step = parsed
	}

	rangeStart, rangeEnd := minimum, maximum
	if rangeExpression != "*" {
		startText, endText, isRange := strings.Cut(rangeExpression, "-")
		var err error
		if rangeStart, err = strconv.Atoi(startText); err != nil {
			return 0, fmt.Errorf("invalid value %q: %w", startText, err)
		}
		rangeEnd = rangeStart
		if isRange {
			if rangeEnd, err = strconv.Atoi(endText); err != nil {
				return 0, fmt.Errorf("invalid range end %q: %w", endText, err)
			}
			if rangeStart > rangeEnd {
				return 0, fmt.Errorf("range start %d > end %d", rangeStart, rangeEnd)
			}
		} else if hasStep {
			rangeEnd = maximum
		}
	}
	if rangeStart < minimum || rangeEnd > maximum {
		return 0, fmt.Errorf("value out of range [%d-%d]: got %d-%d", minimum, maximum, rangeStart, rangeEnd)
	}

	var result bitset64
	for value := rangeStart; value <= rangeEnd; value += step {
		result.set(value)
	}
	return result, nil
}
