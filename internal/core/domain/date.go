package domain

import (
	"fmt"
	"time"
)

// DateLayout is the canonical partition-date format.
const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. The ISO layout makes
// lexicographic comparison equivalent to chronological comparison,
// so Dates are usable directly as map keys and sort keys.
type Date string

// ParseDate validates and normalizes a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date(t.Format(DateLayout)), nil
}

// DateOf truncates a time to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return Date(t.UTC().Format(DateLayout))
}

// Today returns the current UTC calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	t, err := time.Parse(DateLayout, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d == "" }

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.Time().AddDate(0, 0, 1))
}

// AddDays returns the date shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d < other }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d > other }

func (d Date) String() string { return string(d) }

// DateRange is an inclusive [Start, End] day range.
type DateRange struct {
	Start Date
	End   Date
}

// NewDateRange validates ordering and returns the range.
func NewDateRange(start, end Date) (DateRange, error) {
	if start.IsZero() || end.IsZero() {
		return DateRange{}, fmt.Errorf("date range requires both endpoints, got [%s, %s]", start, end)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("date range end %s precedes start %s", end, start)
	}
	return DateRange{Start: start, End: end}, nil
}

// SingleDay returns a one-day range.
func SingleDay(d Date) DateRange {
	return DateRange{Start: d, End: d}
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Days returns the number of days in the inclusive range.
func (r DateRange) Days() int {
	return int(r.End.Time().Sub(r.Start.Time()).Hours()/24) + 1
}

// Dates enumerates every day in the range in ascending order.
func (r DateRange) Dates() []Date {
	out := make([]Date, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.Next() {
		out = append(out, d)
	}
	return out
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}
