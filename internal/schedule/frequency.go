// Package schedule turns recurring templates into dated transactions.
//
// Each frequency has its own strategy that computes the n-th occurrence
// from the schedule's start. Computing from the start instead of from the
// previous occurrence keeps month-end schedules on their day: a recurrence
// starting Jan 31 falls on Feb 29, then Mar 31 again.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"saldi/internal/core"
)

// Stepper is the strategy interface for one frequency.
type Stepper interface {
	// Occurrence returns occurrence n (n >= 0) of a schedule anchored at start.
	Occurrence(start time.Time, n int) time.Time
}

// DailyStepper repeats every calendar day.
type DailyStepper struct{}

func (DailyStepper) Occurrence(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, n)
}

// WeeklyStepper repeats every seven calendar days.
type WeeklyStepper struct{}

func (WeeklyStepper) Occurrence(start time.Time, n int) time.Time {
	return start.AddDate(0, 0, 7*n)
}

// MonthlyStepper repeats on start's day of month, clamped to the last day
// of shorter months.
type MonthlyStepper struct{}

func (MonthlyStepper) Occurrence(start time.Time, n int) time.Time {
	return addMonthsClamped(start, n)
}

// YearlyStepper repeats on start's month and day; Feb 29 becomes Feb 28 in
// common years.
type YearlyStepper struct{}

func (YearlyStepper) Occurrence(start time.Time, n int) time.Time {
	return addMonthsClamped(start, 12*n)
}

func addMonthsClamped(start time.Time, months int) time.Time {
	y, m, d := start.Date()
	first := time.Date(y, m+time.Month(months), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
	last := core.LastDayOfMonth(first).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

var (
	strategiesMu sync.RWMutex
	strategies   = map[core.Frequency]Stepper{
		core.Daily:   DailyStepper{},
		core.Weekly:  WeeklyStepper{},
		core.Monthly: MonthlyStepper{},
		core.Yearly:  YearlyStepper{},
	}
)

// GetStepper returns the strategy registered for f.
func GetStepper(f core.Frequency) (Stepper, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()
	s, ok := strategies[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
	return s, nil
}

// RegisterFrequency adds or replaces the strategy for f.
func RegisterFrequency(f core.Frequency, s Stepper) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	strategies[f] = s
}
