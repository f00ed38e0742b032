/*
Package calendar provides the pure date arithmetic for the scheduling
engine: calendar days, the department work week, the derived holiday
set, and PTO day counting.

PURPOSE:
  Everything in this package is deterministic computation with no I/O.
  Holidays are re-derived per year from rules rather than stored, so
  the calculator works for any year, past or future.

KEY CONCEPTS IN THIS FILE (date.go):
  - Date: a calendar day (UTC midnight), the unit of scheduling
  - WorkWeek: which weekdays a provider works (default Mon-Fri)

SEE ALSO:
  - holidays.go: holiday derivation and proximity checks
  - workdays.go: PTO day counting against the work week and holidays
*/
package calendar

import (
	"time"
)

// =============================================================================
// DATE - A calendar day
// =============================================================================

// Date is a calendar day. The time-of-day component is always UTC
// midnight; scheduling granularity below a half day is expressed by
// TimeBlock, not by clock time.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// FromTime truncates a time.Time to its calendar day.
func FromTime(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return FromTime(time.Now().UTC())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.normalize().AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int              { return d.Time.Year() }
func (d Date) Month() time.Month      { return d.Time.Month() }
func (d Date) Day() int               { return d.Time.Day() }
func (d Date) Weekday() time.Weekday  { return d.normalize().Weekday() }
func (d Date) IsZero() bool           { return d.Time.IsZero() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.normalize().Format(dateLayout) }

// DaysBetween returns the signed number of calendar days from 'from' to 'to'.
func DaysBetween(from, to Date) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// AbsDaysBetween returns the unsigned day distance between two dates.
func AbsDaysBetween(a, b Date) int {
	n := DaysBetween(a, b)
	if n < 0 {
		return -n
	}
	return n
}

// DaysInRange returns every day in [start, end] inclusive.
// An inverted range yields nil.
func DaysInRange(start, end Date) []Date {
	var days []Date
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// =============================================================================
// WORK WEEK - Which weekdays a provider works
// =============================================================================

// WorkWeek is the set of weekdays a provider works.
type WorkWeek map[time.Weekday]bool

// DefaultWorkWeek is Monday through Friday.
func DefaultWorkWeek() WorkWeek {
	return WorkWeek{
		time.Monday:    true,
		time.Tuesday:   true,
		time.Wednesday: true,
		time.Thursday:  true,
		time.Friday:    true,
	}
}

// NewWorkWeek builds a WorkWeek from explicit weekdays.
func NewWorkWeek(days ...time.Weekday) WorkWeek {
	w := make(WorkWeek, len(days))
	for _, d := range days {
		w[d] = true
	}
	return w
}

// Contains reports whether the weekday is a working day.
// A nil WorkWeek falls back to Mon-Fri.
func (w WorkWeek) Contains(day time.Weekday) bool {
	if w == nil {
		w = DefaultWorkWeek()
	}
	return w[day]
}

// Weekdays returns the working weekdays in Sunday-first order.
func (w WorkWeek) Weekdays() []time.Weekday {
	var days []time.Weekday
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if w.Contains(wd) {
			days = append(days, wd)
		}
	}
	return days
}
