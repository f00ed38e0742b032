package calendar_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/schedule-engine/calendar"
)

func days(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// =============================================================================
// PTO DAY COUNTING TESTS
// =============================================================================

func TestPTODays_SingleWorkday(t *testing.T) {
	// GIVEN: a Monday that is not a holiday
	// WHEN: counting a single-day range
	// THEN: FULL costs 1.0, AM and PM cost 0.5

	monday := calendar.NewDate(2025, time.March, 10)

	assert.True(t, days(1).Equal(calendar.PTODays(monday, monday, calendar.BlockBoth, nil)))
	assert.True(t, days(0.5).Equal(calendar.PTODays(monday, monday, calendar.BlockAM, nil)))
	assert.True(t, days(0.5).Equal(calendar.PTODays(monday, monday, calendar.BlockPM, nil)))
}

func TestPTODays_WeekendOnlyRangeIsZero(t *testing.T) {
	// GIVEN: a Saturday-Sunday range
	// WHEN: counting with any block
	// THEN: zero days consumed

	sat := calendar.NewDate(2025, time.March, 8)
	sun := calendar.NewDate(2025, time.March, 9)

	for _, block := range []calendar.TimeBlock{calendar.BlockAM, calendar.BlockPM, calendar.BlockBoth} {
		assert.True(t, calendar.PTODays(sat, sun, block, nil).IsZero(), "block %s", block)
	}
}

func TestPTODays_SkipsHolidays(t *testing.T) {
	// GIVEN: Thanksgiving week 2025 (Mon Nov 24 - Fri Nov 28)
	// WHEN: counting a full-day request
	// THEN: Thursday and Friday are holidays, leaving 3 countable days

	got := calendar.PTODays(
		calendar.NewDate(2025, time.November, 24),
		calendar.NewDate(2025, time.November, 28),
		calendar.BlockBoth, nil)
	assert.True(t, days(3).Equal(got), "got %s", got)
}

func TestPTODays_YearBoundaryResolvesBothYears(t *testing.T) {
	// GIVEN: Dec 31, 2025 - Jan 2, 2026
	// WHEN: counting a full-day request
	// THEN: Jan 1, 2026 is skipped as next year's holiday; 2 days count

	got := calendar.PTODays(
		calendar.NewDate(2025, time.December, 31),
		calendar.NewDate(2026, time.January, 2),
		calendar.BlockBoth, nil)
	assert.True(t, days(2).Equal(got), "got %s", got)
}

func TestPTODays_CustomWorkWeek(t *testing.T) {
	// GIVEN: a provider working Tue/Wed/Thu only
	// WHEN: counting Mon-Fri of a plain week
	// THEN: only the three working days count

	week := calendar.NewWorkWeek(time.Tuesday, time.Wednesday, time.Thursday)
	got := calendar.PTODays(
		calendar.NewDate(2025, time.March, 10),
		calendar.NewDate(2025, time.March, 14),
		calendar.BlockBoth, week)
	assert.True(t, days(3).Equal(got), "got %s", got)
}

func TestPTODays_HalfDayAcrossRange(t *testing.T) {
	// GIVEN: Mon-Fri in a plain week, AM only
	// WHEN: counting
	// THEN: 5 half days = 2.5

	got := calendar.PTODays(
		calendar.NewDate(2025, time.March, 10),
		calendar.NewDate(2025, time.March, 14),
		calendar.BlockAM, nil)
	assert.True(t, days(2.5).Equal(got), "got %s", got)
}

// =============================================================================
// WORKDAY ENUMERATION TESTS
// =============================================================================

func TestWorkdaysInRange_MatchesPTODayCount(t *testing.T) {
	// GIVEN: Thanksgiving week 2025
	// WHEN: enumerating eligible workdays
	// THEN: Mon/Tue/Wed only

	got := calendar.WorkdaysInRange(
		calendar.NewDate(2025, time.November, 24),
		calendar.NewDate(2025, time.November, 28),
		nil)
	require.Len(t, got, 3)
	assert.Equal(t, "2025-11-24", got[0].String())
	assert.Equal(t, "2025-11-26", got[2].String())
}

func TestWorkdaysInRange_InvertedRangeIsEmpty(t *testing.T) {
	got := calendar.WorkdaysInRange(
		calendar.NewDate(2025, time.March, 14),
		calendar.NewDate(2025, time.March, 10),
		nil)
	assert.Empty(t, got)
}

// =============================================================================
// TIME BLOCK TESTS
// =============================================================================

func TestTimeBlock_Intersects(t *testing.T) {
	assert.True(t, calendar.BlockAM.Intersects(calendar.BlockAM))
	assert.False(t, calendar.BlockAM.Intersects(calendar.BlockPM))
	assert.True(t, calendar.BlockBoth.Intersects(calendar.BlockAM))
	assert.True(t, calendar.BlockPM.Intersects(calendar.BlockBoth))
}

func TestParseTimeBlock_FullAliasesBoth(t *testing.T) {
	block, err := calendar.ParseTimeBlock("FULL")
	require.NoError(t, err)
	assert.Equal(t, calendar.BlockBoth, block)

	_, err = calendar.ParseTimeBlock("EVENING")
	assert.Error(t, err)
}
