package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
	"github.com/caredesk/schedule-engine/schedule/store"
)

type balanceFixture struct {
	store  *store.Memory
	engine *schedule.BalanceEngine
}

func newBalanceFixture(t *testing.T) *balanceFixture {
	t.Helper()
	mem := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.SaveProvider(ctx, schedule.Provider{
		ID: "att-1", Name: "Dana Osei", Initials: "DO", Role: schedule.RoleAttending,
	}))
	require.NoError(t, mem.SaveProvider(ctx, schedule.Provider{
		ID: "np-1", Name: "Sam Reyes", Initials: "SR", Role: schedule.RoleNP,
	}))

	return &balanceFixture{store: mem, engine: schedule.NewBalanceEngine(mem, nil)}
}

func approvedRequest(id, providerID string, start, end calendar.Date, block calendar.TimeBlock) schedule.PTORequest {
	return schedule.PTORequest{
		ID:         id,
		ProviderID: providerID,
		StartDate:  start,
		EndDate:    end,
		LeaveType:  schedule.LeaveVacation,
		TimeBlock:  block,
		Status:     schedule.StatusApproved,
		CreatedAt:  time.Now().UTC(),
	}
}

func float64Ptr(f float64) *float64 { return &f }

// =============================================================================
// ALLOWANCE RESOLUTION TESTS
// =============================================================================

func TestBalance_SystemDefaults(t *testing.T) {
	// GIVEN: no config rows at all
	// WHEN: computing balances for an attending and an NP
	// THEN: the hardcoded defaults apply (20 and 15)

	f := newBalanceFixture(t)
	ctx := context.Background()

	att, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceSystemDefault, att.AllowanceSource)
	assert.True(t, att.AnnualAllowance.Equal(decimal.NewFromInt(20)))
	assert.True(t, att.DaysRemaining.Equal(decimal.NewFromInt(20)))

	np, err := f.engine.Balance(ctx, "np-1", 2025)
	require.NoError(t, err)
	assert.True(t, np.AnnualAllowance.Equal(decimal.NewFromInt(15)))
}

func TestBalance_RoleDefault(t *testing.T) {
	// GIVEN: a role default row for attendings
	// WHEN: computing the balance
	// THEN: it wins over the system default

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveRoleDefault(ctx, schedule.PTORoleDefault{
		Role: schedule.RoleAttending, AnnualAllowance: 22,
	}))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceRoleDefault, summary.AllowanceSource)
	assert.True(t, summary.AnnualAllowance.Equal(decimal.NewFromInt(22)))
}

func TestBalance_ProviderConfigWithCarryover(t *testing.T) {
	// GIVEN: a per-provider config with allowance 25 and carryover 3.5
	// WHEN: computing the balance
	// THEN: source is provider_config and total is 28.5

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SavePTOConfig(ctx, schedule.ProviderPTOConfig{
		ProviderID: "att-1", Year: 2025,
		AnnualAllowance: float64Ptr(25), CarryoverDays: 3.5,
	}))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceProviderConfig, summary.AllowanceSource)
	assert.True(t, summary.TotalAvailable.Equal(decimal.NewFromFloat(28.5)))
}

func TestBalance_CarryoverWithoutAllowanceOverride(t *testing.T) {
	// GIVEN: a config row with carryover but no allowance override
	// WHEN: computing the balance
	// THEN: the allowance falls through to the role default while the
	//       carryover still counts

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SavePTOConfig(ctx, schedule.ProviderPTOConfig{
		ProviderID: "att-1", Year: 2025, CarryoverDays: 2,
	}))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceSystemDefault, summary.AllowanceSource)
	assert.True(t, summary.CarryoverDays.Equal(decimal.NewFromInt(2)))
	assert.True(t, summary.TotalAvailable.Equal(decimal.NewFromInt(22)))
}

func TestBalance_ConfigIsPerYear(t *testing.T) {
	// GIVEN: an override for 2024 only
	// WHEN: computing 2025
	// THEN: the override does not apply

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SavePTOConfig(ctx, schedule.ProviderPTOConfig{
		ProviderID: "att-1", Year: 2024, AnnualAllowance: float64Ptr(30),
	}))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.SourceSystemDefault, summary.AllowanceSource)
}

// =============================================================================
// USAGE AND WARNING TESTS
// =============================================================================

func TestBalance_SumsApprovedAndPending(t *testing.T) {
	// GIVEN: one approved full week (Mar 10-14) and one pending half day
	// WHEN: computing the balance
	// THEN: used=5, pending=0.5, remaining=15

	f := newBalanceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "att-1", monday, monday.AddDays(4), calendar.BlockBoth)))

	half := approvedRequest("r2", "att-1", monday.AddDays(7), monday.AddDays(7), calendar.BlockAM)
	half.Status = schedule.StatusPending
	require.NoError(t, f.store.SavePTORequest(ctx, half))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.True(t, summary.DaysUsed.Equal(decimal.NewFromInt(5)), "used %s", summary.DaysUsed)
	assert.True(t, summary.PendingDays.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, summary.DaysRemaining.Equal(decimal.NewFromInt(15)))
	assert.Equal(t, schedule.BalanceOK, summary.Warning.Level)
}

func TestBalance_HolidaysDoNotConsumePTO(t *testing.T) {
	// GIVEN: an approved request spanning Thanksgiving week 2025
	//        (Mon Nov 24 - Fri Nov 28; Thu and Fri are holidays)
	// WHEN: computing the balance
	// THEN: only 3 days are consumed

	f := newBalanceFixture(t)
	ctx := context.Background()

	start := calendar.NewDate(2025, time.November, 24)
	end := calendar.NewDate(2025, time.November, 28)
	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "att-1", start, end, calendar.BlockBoth)))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.True(t, summary.DaysUsed.Equal(decimal.NewFromInt(3)), "used %s", summary.DaysUsed)
}

func TestBalance_CrossYearRequestClipped(t *testing.T) {
	// GIVEN: an approved request Dec 29 2025 - Jan 2 2026
	// WHEN: computing 2025
	// THEN: only the 2025 portion counts (Mon Dec 29 - Wed Dec 31 = 3,
	//       with no holidays in that span)

	f := newBalanceFixture(t)
	ctx := context.Background()

	start := calendar.NewDate(2025, time.December, 29)
	end := calendar.NewDate(2026, time.January, 2)
	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "att-1", start, end, calendar.BlockBoth)))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.True(t, summary.DaysUsed.Equal(decimal.NewFromInt(3)), "used %s", summary.DaysUsed)
}

func TestBalance_ExceededWarning(t *testing.T) {
	// GIVEN: an NP with 15 days who has 16 approved
	// WHEN: computing the balance
	// THEN: level exceeded with the overage in the message

	f := newBalanceFixture(t)
	ctx := context.Background()

	// Mar 10 - Mar 31 is 16 workdays (Mondays Mar 10,17,24,31 plus the
	// rest of those weeks).
	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "np-1", monday, calendar.NewDate(2025, time.March, 31), calendar.BlockBoth)))

	summary, err := f.engine.Balance(ctx, "np-1", 2025)
	require.NoError(t, err)
	assert.True(t, summary.DaysUsed.Equal(decimal.NewFromInt(16)), "used %s", summary.DaysUsed)
	assert.Equal(t, schedule.BalanceExceeded, summary.Warning.Level)
	assert.Contains(t, summary.Warning.Message, "exceeded by 1 days")
}

func TestBalance_ApproachingWarning(t *testing.T) {
	// GIVEN: an attending with 20 days and 16 used (exactly 80%)
	// WHEN: computing the balance
	// THEN: level approaching

	f := newBalanceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "att-1", monday, calendar.NewDate(2025, time.March, 31), calendar.BlockBoth)))

	summary, err := f.engine.Balance(ctx, "att-1", 2025)
	require.NoError(t, err)
	assert.Equal(t, schedule.BalanceApproaching, summary.Warning.Level)
}

func TestBalance_UnknownProvider(t *testing.T) {
	f := newBalanceFixture(t)

	_, err := f.engine.Balance(context.Background(), "ghost", 2025)
	assert.ErrorIs(t, err, schedule.ErrProviderNotFound)
}

// =============================================================================
// REQUEST VALIDATION TESTS
// =============================================================================

func TestValidateRequest_CleanRequest(t *testing.T) {
	// GIVEN: a fresh attending
	// WHEN: validating a one-week request
	// THEN: 5 days, no warnings, submittable

	f := newBalanceFixture(t)

	report, err := f.engine.ValidateRequest(context.Background(), schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  monday,
		EndDate:    monday.AddDays(4),
		TimeBlock:  calendar.BlockBoth,
		LeaveType:  schedule.LeaveVacation,
	})
	require.NoError(t, err)
	assert.True(t, report.DaysRequested.Equal(decimal.NewFromInt(5)))
	assert.True(t, report.CanSubmit)
	assert.Empty(t, report.Warnings)
}

func TestValidateRequest_EndBeforeStart(t *testing.T) {
	f := newBalanceFixture(t)

	_, err := f.engine.ValidateRequest(context.Background(), schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  monday,
		EndDate:    monday.AddDays(-1),
		TimeBlock:  calendar.BlockBoth,
	})
	require.Error(t, err)
	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "date_range", verr.Field)
}

func TestValidateRequest_BalanceProjectionWarning(t *testing.T) {
	// GIVEN: an NP with 15 days and 13 already approved
	// WHEN: validating a 5-day request
	// THEN: a balance warning says the request would exceed by 3

	f := newBalanceFixture(t)
	ctx := context.Background()

	// Mar 10 - Mar 26 covers 13 workdays.
	require.NoError(t, f.store.SavePTORequest(ctx,
		approvedRequest("r1", "np-1", monday, calendar.NewDate(2025, time.March, 26), calendar.BlockBoth)))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "np-1",
		StartDate:  calendar.NewDate(2025, time.April, 7),
		EndDate:    calendar.NewDate(2025, time.April, 11),
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, schedule.WarnBalance, report.Warnings[0].Type)
	assert.Contains(t, report.Warnings[0].Message, "exceed the annual allowance by 3 days")
	assert.True(t, report.CanSubmit, "warnings never block submission")
}

func TestValidateRequest_OthersOffWarning(t *testing.T) {
	// GIVEN: another provider has overlapping leave
	// WHEN: validating
	// THEN: that provider is named in a warning

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeave(ctx, schedule.ProviderLeave{
		ID: "l1", ProviderID: "np-1",
		StartDate: monday, EndDate: monday.AddDays(4),
		LeaveType: schedule.LeaveVacation,
	}))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  monday.AddDays(2),
		EndDate:    monday.AddDays(3),
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, schedule.WarnOtherProvidersOff, report.Warnings[0].Type)
	assert.Contains(t, report.Warnings[0].Message, "Sam Reyes")
}

func TestValidateRequest_OwnLeaveDoesNotWarn(t *testing.T) {
	// GIVEN: the requester's own leave overlaps
	// WHEN: validating
	// THEN: no others-off warning

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveLeave(ctx, schedule.ProviderLeave{
		ID: "l1", ProviderID: "att-1",
		StartDate: monday, EndDate: monday,
		LeaveType: schedule.LeaveVacation,
	}))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  monday,
		EndDate:    monday,
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
}

func TestValidateRequest_HolidayProximity_UnderLimit(t *testing.T) {
	// GIVEN: a holiday-adjacent request but only one prior adjacent
	//        approval
	// WHEN: validating
	// THEN: no proximity warning yet

	f := newBalanceFixture(t)
	ctx := context.Background()

	// One approved request next to Memorial Day (Mon May 26 2025).
	require.NoError(t, f.store.SavePTORequest(ctx, approvedRequest("r1", "att-1",
		calendar.NewDate(2025, time.May, 27), calendar.NewDate(2025, time.May, 27), calendar.BlockBoth)))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  calendar.NewDate(2025, time.July, 3),
		EndDate:    calendar.NewDate(2025, time.July, 3),
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	for _, w := range report.Warnings {
		assert.NotEqual(t, schedule.WarnHolidayProximity, w.Type)
	}
}

func TestValidateRequest_HolidayProximity_AtLimit(t *testing.T) {
	// GIVEN: two approved holiday-adjacent requests this year
	// WHEN: validating a third near Independence Day
	// THEN: a proximity warning fires

	f := newBalanceFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SavePTORequest(ctx, approvedRequest("r1", "att-1",
		calendar.NewDate(2025, time.May, 27), calendar.NewDate(2025, time.May, 27), calendar.BlockBoth)))
	require.NoError(t, f.store.SavePTORequest(ctx, approvedRequest("r2", "att-1",
		calendar.NewDate(2025, time.September, 2), calendar.NewDate(2025, time.September, 2), calendar.BlockBoth)))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  calendar.NewDate(2025, time.July, 3),
		EndDate:    calendar.NewDate(2025, time.July, 3),
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	found := false
	for _, w := range report.Warnings {
		if w.Type == schedule.WarnHolidayProximity {
			found = true
			assert.Contains(t, w.Message, "Independence Day")
		}
	}
	assert.True(t, found, "expected a holiday proximity warning")
}

func TestValidateRequest_AssignmentConflictWarning(t *testing.T) {
	// GIVEN: work assignments inside the requested window
	// WHEN: validating
	// THEN: the affected dates are listed

	f := newBalanceFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.InsertAssignment(ctx, schedule.Assignment{
		ID: "a1", ProviderID: "att-1", ServiceID: "svc-clinic",
		Date: monday, TimeBlock: calendar.BlockAM,
	}))

	report, err := f.engine.ValidateRequest(ctx, schedule.RequestInput{
		ProviderID: "att-1",
		StartDate:  monday,
		EndDate:    monday.AddDays(4),
		TimeBlock:  calendar.BlockBoth,
	})
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, schedule.WarnAssignmentConflict, report.Warnings[0].Type)
	assert.Contains(t, report.Warnings[0].Message, "2025-03-10")
}
