/*
workdays.go - PTO day counting

PURPOSE:
  Computes how many PTO days a date range consumes, skipping days the
  provider does not work and department holidays. Also enumerates the
  eligible workdays in a range for bulk scheduling.

COUNTING RULES:
  - A day counts only if its weekday is in the provider's work week
    AND it is not an observed holiday.
  - A full-day block costs 1.0, AM or PM costs 0.5.
  - Ranges spanning a year boundary resolve holidays per calendar
    year encountered.
  - A range made entirely of weekends/holidays legitimately costs 0.
*/
package calendar

import "github.com/shopspring/decimal"

// PTODays computes the PTO cost of taking [start, end] off at the
// given block, against the provider's work week. A nil week means the
// default Mon-Fri.
func PTODays(start, end Date, block TimeBlock, week WorkWeek) decimal.Decimal {
	weight := block.DayWeight()
	total := decimal.Zero
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if !week.Contains(d.Weekday()) {
			continue
		}
		if IsHoliday(d) != nil {
			continue
		}
		total = total.Add(weight)
	}
	return total
}

// WorkdaysInRange returns every day in [start, end] that is a working
// day and not a holiday. Used to build eligible-date lists for bulk
// operations.
func WorkdaysInRange(start, end Date, week WorkWeek) []Date {
	var days []Date
	for d := start; d.BeforeOrEqual(end); d = d.AddDays(1) {
		if !week.Contains(d.Weekday()) {
			continue
		}
		if IsHoliday(d) != nil {
			continue
		}
		days = append(days, d)
	}
	return days
}
