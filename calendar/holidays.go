/*
holidays.go - Department holiday derivation

PURPOSE:
  Derives the nine observed department holidays for any year and
  answers "is this date a holiday" and "is this date near a holiday".

DERIVATION RULES:
  Fixed-date holidays (New Year's, Juneteenth, Independence Day,
  Christmas) shift to the nearest weekday when observed:
    Saturday -> previous Friday
    Sunday   -> following Monday
  Floating holidays use Nth-weekday-of-month rules (3rd Monday of
  January, 4th Thursday of November, ...) or last-weekday-of-month
  (last Monday of May).

PROXIMITY:
  NearHoliday scans the target year plus the adjacent years so a
  window around late December correctly sees the next year's New
  Year's Day.

SEE ALSO:
  - workdays.go: holiday-aware PTO day counting
*/
package calendar

import "time"

// Holiday is one observed department holiday.
type Holiday struct {
	Name string
	Date Date
}

// holidayRule derives one holiday for a given year.
type holidayRule struct {
	name   string
	derive func(year int) Date
}

var holidayRules = []holidayRule{
	{"New Year's Day", func(y int) Date { return observed(NewDate(y, time.January, 1)) }},
	{"Martin Luther King Jr. Day", func(y int) Date { return nthWeekday(y, time.January, time.Monday, 3) }},
	{"Memorial Day", func(y int) Date { return lastWeekday(y, time.May, time.Monday) }},
	{"Juneteenth", func(y int) Date { return observed(NewDate(y, time.June, 19)) }},
	{"Independence Day", func(y int) Date { return observed(NewDate(y, time.July, 4)) }},
	{"Labor Day", func(y int) Date { return nthWeekday(y, time.September, time.Monday, 1) }},
	{"Thanksgiving", func(y int) Date { return nthWeekday(y, time.November, time.Thursday, 4) }},
	{"Day after Thanksgiving", func(y int) Date { return nthWeekday(y, time.November, time.Thursday, 4).AddDays(1) }},
	{"Christmas Day", func(y int) Date { return observed(NewDate(y, time.December, 25)) }},
}

// observed shifts a fixed-date holiday off the weekend:
// Saturday observes on the previous Friday, Sunday on the following Monday.
func observed(d Date) Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(1)
	default:
		return d
	}
}

// nthWeekday returns the nth occurrence of a weekday in a month (n >= 1).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) Date {
	d := NewDate(year, month, 1)
	offset := (int(weekday) - int(d.Weekday()) + 7) % 7
	return d.AddDays(offset + (n-1)*7)
}

// lastWeekday returns the final occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) Date {
	d := NewDate(year, month+1, 1).AddDays(-1) // last day of month
	offset := (int(d.Weekday()) - int(weekday) + 7) % 7
	return d.AddDays(-offset)
}

// HolidaysForYear returns the observed holidays for a year in date order.
// The rule set keeps the first-Thanksgiving-then-Friday ordering stable,
// so the list comes out sorted without an explicit sort.
func HolidaysForYear(year int) []Holiday {
	holidays := make([]Holiday, 0, len(holidayRules))
	for _, r := range holidayRules {
		holidays = append(holidays, Holiday{Name: r.name, Date: r.derive(year)})
	}
	return holidays
}

// IsHoliday returns the holiday observed on the given date, or nil.
// Observed shifts can move New Year's Day into the prior calendar year
// (Jan 1 on a Saturday observes on Dec 31), so the adjacent year's set
// is consulted as well.
func IsHoliday(date Date) *Holiday {
	for _, year := range []int{date.Year() - 1, date.Year(), date.Year() + 1} {
		for _, h := range HolidaysForYear(year) {
			if h.Date.Equal(date) {
				h := h
				return &h
			}
		}
	}
	return nil
}

// NearHoliday reports whether the date falls within windowDays of any
// holiday, and which one. Scans the adjacent years to catch windows
// spanning the year boundary.
func NearHoliday(date Date, windowDays int) (bool, *Holiday) {
	for _, year := range []int{date.Year() - 1, date.Year(), date.Year() + 1} {
		for _, h := range HolidaysForYear(year) {
			if AbsDaysBetween(date, h.Date) <= windowDays {
				h := h
				return true, &h
			}
		}
	}
	return false, nil
}
