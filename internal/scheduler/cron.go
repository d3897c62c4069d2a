// ZohoSync - Zoho Books/Inventory to MongoDB Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/zohosync

package scheduler

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// fieldSet is a bitset of allowed values for one cron field (bit n = value n).
type fieldSet uint64

func (f fieldSet) has(v int) bool { return f&(1<<uint(v)) != 0 }

func (f fieldSet) count() int { return bits.OnesCount64(uint64(f)) }

type fieldSpec struct {
	name     string
	min, max int
}

var (
	minuteSpec = fieldSpec{"minute", 0, 59}
	hourSpec   = fieldSpec{"hour", 0, 23}
	domSpec    = fieldSpec{"day-of-month", 1, 31}
	monthSpec  = fieldSpec{"month", 1, 12}
	dowSpec    = fieldSpec{"day-of-week", 0, 7}
)

// Schedule is a parsed 5-field cron expression:
// minute hour day-of-month month day-of-week.
type Schedule struct {
	expr    string
	minute  fieldSet
	hour    fieldSet
	dom     fieldSet
	month   fieldSet
	dow     fieldSet
	domStar bool
	dowStar bool
}

// ParseCron parses a standard cron expression. Each field accepts *, n, n-m,
// comma lists and /step on * or ranges. Day-of-week 7 is Sunday like 0.
// Values outside a field's range are rejected.
//
//	"40 15 * * *"   every day at 15:40
//	"*/15 9-17 * * 1-5"
func ParseCron(expr string) (*Schedule, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("cron expression %q must have 5 fields, got %d", expr, len(fields))
	}

	s := &Schedule{expr: strings.Join(fields, " ")}
	specs := []fieldSpec{minuteSpec, hourSpec, domSpec, monthSpec, dowSpec}
	targets := []*fieldSet{&s.minute, &s.hour, &s.dom, &s.month, &s.dow}
	for i, field := range fields {
		set, err := parseField(field, specs[i])
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", specs[i].name, field, err)
		}
		*targets[i] = set
	}

	if s.dow.has(7) {
		s.dow = (s.dow &^ (1 << 7)) | 1
	}
	s.domStar = s.dom.count() == domSpec.max-domSpec.min+1
	s.dowStar = s.dow.count() == 7
	return s, nil
}

// String returns the normalized expression.
func (s *Schedule) String() string {
	return s.expr
}

func parseField(field string, spec fieldSpec) (fieldSet, error) {
	var set fieldSet
	for _, part := range strings.Split(field, ",") {
		if part == "" {
			return 0, fmt.Errorf("empty list element")
		}
		partSet, err := parsePart(part, spec)
		if err != nil {
			return 0, err
		}
		set |= partSet
	}
	return set, nil
}

func parsePart(part string, spec fieldSpec) (fieldSet, error) {
	rangeExpr, stepExpr, hasStep := strings.Cut(part, "/")

	step := 1
	if hasStep {
		n, err := strconv.Atoi(stepExpr)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step %q", stepExpr)
		}
		step = n
	}

	lo, hi := spec.min, spec.max
	switch {
	case rangeExpr == "*":
	case strings.Contains(rangeExpr, "-"):
		a, b, _ := strings.Cut(rangeExpr, "-")
		var err error
		if lo, err = parseValue(a, spec); err != nil {
			return 0, err
		}
		if hi, err = parseValue(b, spec); err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("range %d-%d is reversed", lo, hi)
		}
	default:
		v, err := parseValue(rangeExpr, spec)
		if err != nil {
			return 0, err
		}
		lo = v
		if !hasStep {
			hi = v
		}
	}

	var set fieldSet
	for v := lo; v <= hi; v += step {
		set |= 1 << uint(v)
	}
	return set, nil
}

func parseValue(s string, spec fieldSpec) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < spec.min || v > spec.max {
		return 0, fmt.Errorf("value %d out of range %d-%d", v, spec.min, spec.max)
	}
	return v, nil
}

// dayMatches applies the usual cron rule: when both day fields are
// restricted, either one matching is enough.
func (s *Schedule) dayMatches(t time.Time) bool {
	dom := s.dom.has(t.Day())
	dow := s.dow.has(int(t.Weekday()))
	switch {
	case s.domStar && s.dowStar:
		return true
	case s.domStar:
		return dow
	case s.dowStar:
		return dom
	default:
		return dom || dow
	}
}

// maxSearch bounds Next for expressions such as "0 0 30 2 *" that never fire.
const maxSearch = 5 * 366 * 24 * time.Hour

// Next returns the first activation strictly after the given time in loc
// (UTC when loc is nil), or the zero time if none exists within five years.
func (s *Schedule) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t := after.In(loc).Truncate(time.Minute).Add(time.Minute)
	limit := t.Add(maxSearch)

	for t.Before(limit) {
		if !s.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

// NextRun parses expr and returns its next activation after the given time.
func NextRun(expr string, after time.Time, loc *time.Location) (time.Time, error) {
	s, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(after, loc), nil
}
