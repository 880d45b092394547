package core

import (
	"fmt"
	"strings"
	"time"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the first instant of the day after t. Instants strictly
// before it belong to t's day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// LastDayOfMonth returns midnight of the last calendar day of t's month.
func LastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns the last representable instant of t's month.
func EndOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// AddMonths moves a month start by n months. Only meaningful for values
// returned by StartOfMonth, where day overflow cannot happen.
func AddMonths(monthStart time.Time, n int) time.Time {
	y, m, _ := monthStart.Date()
	return time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, monthStart.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Period is a dashboard time window.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodHalf    Period = "half"
	PeriodYear    Period = "year"
	PeriodAll     Period = "all"
)

// ParsePeriod accepts the period names case-insensitively; empty means month.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PeriodMonth, nil
	}
	if p.Months() < 0 {
		return "", fmt.Errorf("unknown period %q", s)
	}
	return p, nil
}

// Months is the length of the period in months, 0 for all, -1 if unknown.
func (p Period) Months() int {
	switch p {
	case PeriodMonth:
		return 1
	case PeriodQuarter:
		return 3
	case PeriodHalf:
		return 6
	case PeriodYear:
		return 12
	case PeriodAll:
		return 0
	default:
		return -1
	}
}

// Bounds returns the window ending with the month of anchor. For PeriodAll
// the window starts at earliest, or at the start of anchor's month when
// earliest is zero.
func (p Period) Bounds(anchor, earliest time.Time) (start, end time.Time) {
	end = EndOfMonth(anchor)
	n := p.Months()
	if n <= 0 {
		if earliest.IsZero() || earliest.After(end) {
			return StartOfMonth(anchor), end
		}
		return StartOfDay(earliest.In(anchor.Location())), end
	}
	return AddMonths(StartOfMonth(anchor), -(n - 1)), end
}

// ParseDate accepts RFC 3339 timestamps, "2006-01-02 15:04[:05]", ISO dates
// and "02/01/2006". Values without a zone are interpreted in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDate
	}
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
