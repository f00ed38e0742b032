package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
	"github.com/caredesk/schedule-engine/schedule/store"
)

// monday is a plain non-holiday Monday used across the rule tests.
var monday = calendar.NewDate(2025, time.March, 10)

func newEvaluator(t *testing.T, rules ...schedule.AvailabilityRule) *schedule.Evaluator {
	t.Helper()
	mem := store.NewMemory()
	for _, r := range rules {
		require.NoError(t, mem.SaveRule(context.Background(), r))
	}
	return schedule.NewEvaluator(mem)
}

func rule(id string, day time.Weekday, block calendar.TimeBlock, ruleType schedule.RuleType, enforcement schedule.Enforcement) schedule.AvailabilityRule {
	return schedule.AvailabilityRule{
		ID:          id,
		ProviderID:  "prov-1",
		ServiceID:   "svc-1",
		DayOfWeek:   day,
		TimeBlock:   block,
		RuleType:    ruleType,
		Enforcement: enforcement,
	}
}

// =============================================================================
// ABSENT RULE AND BLOCK RULE TESTS
// =============================================================================

func TestCheckAvailability_NoRules_Allowed(t *testing.T) {
	// GIVEN: no rules for the pair
	// WHEN: checking any slot
	// THEN: allowed with no enforcement

	e := newEvaluator(t)
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, schedule.EnforceUnset, res.Enforcement)
}

func TestCheckAvailability_BlockRule_MatchingSlot(t *testing.T) {
	// GIVEN: a hard block on Monday AM
	// WHEN: checking Monday AM
	// THEN: refused with the rule's enforcement

	e := newEvaluator(t, rule("r1", time.Monday, calendar.BlockAM, schedule.RuleBlock, schedule.EnforceHard))
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, schedule.EnforceHard, res.Enforcement)
	require.NotNil(t, res.Rule)
	assert.Equal(t, "r1", res.Rule.ID)
}

func TestCheckAvailability_BlockRule_OtherDay_Allowed(t *testing.T) {
	// GIVEN: a block on Tuesday
	// WHEN: checking Monday
	// THEN: allowed

	e := newEvaluator(t, rule("r1", time.Tuesday, calendar.BlockBoth, schedule.RuleBlock, schedule.EnforceHard))
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckAvailability_BlockRule_BothIntersectsAM(t *testing.T) {
	// GIVEN: a warn block covering the whole Monday
	// WHEN: checking Monday AM only
	// THEN: the BOTH block intersects the AM slot and fires

	e := newEvaluator(t, rule("r1", time.Monday, calendar.BlockBoth, schedule.RuleBlock, schedule.EnforceWarn))
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, schedule.EnforceWarn, res.Enforcement)
}

func TestCheckAvailability_BlockRule_CustomReason(t *testing.T) {
	// GIVEN: a block rule carrying its own reason text
	// WHEN: the rule fires
	// THEN: that text comes back verbatim

	r := rule("r1", time.Monday, calendar.BlockAM, schedule.RuleBlock, schedule.EnforceWarn)
	r.Reason = "clinic reserved for teaching"
	e := newEvaluator(t, r)

	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.Equal(t, "clinic reserved for teaching", res.Reason)
}

// =============================================================================
// ALLOW-LIST PRECEDENCE TESTS
// =============================================================================

func TestCheckAvailability_AllowList_MatchingSlot(t *testing.T) {
	// GIVEN: an allow rule for Monday AM
	// WHEN: checking Monday AM
	// THEN: allowed via the allow rule

	e := newEvaluator(t, rule("r1", time.Monday, calendar.BlockAM, schedule.RuleAllow, schedule.EnforceWarn))
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	require.NotNil(t, res.Rule)
	assert.Equal(t, "r1", res.Rule.ID)
}

func TestCheckAvailability_AllowList_OutsideList_Refused(t *testing.T) {
	// GIVEN: an allow rule for Monday AM only
	// WHEN: checking Monday PM
	// THEN: refused because the slot is not on the allow list

	e := newEvaluator(t, rule("r1", time.Monday, calendar.BlockAM, schedule.RuleAllow, schedule.EnforceWarn))
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockPM)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, schedule.EnforceWarn, res.Enforcement)
}

func TestCheckAvailability_AllowList_InertsBlockRules(t *testing.T) {
	// GIVEN: an allow rule for Monday AM and a hard block on the same slot
	// WHEN: checking Monday AM
	// THEN: allowed; the presence of any allow rule inerts the blocks

	e := newEvaluator(t,
		rule("allow", time.Monday, calendar.BlockAM, schedule.RuleAllow, schedule.EnforceWarn),
		rule("block", time.Monday, calendar.BlockAM, schedule.RuleBlock, schedule.EnforceHard),
	)
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockAM)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestCheckAvailability_AllowList_HardEscalation(t *testing.T) {
	// GIVEN: two allow rules, one of them hard
	// WHEN: checking a slot outside the list
	// THEN: the refusal escalates to hard

	e := newEvaluator(t,
		rule("a1", time.Monday, calendar.BlockAM, schedule.RuleAllow, schedule.EnforceWarn),
		rule("a2", time.Wednesday, calendar.BlockPM, schedule.RuleAllow, schedule.EnforceHard),
	)
	res, err := e.CheckAvailability(context.Background(), "prov-1", "svc-1", monday, calendar.BlockPM)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, schedule.EnforceHard, res.Enforcement)
}

// =============================================================================
// BULK EVALUATION TESTS
// =============================================================================

func TestCheckBulkAvailability_PartitionsBySeverity(t *testing.T) {
	// GIVEN: a hard block on Monday AM and a warn block on Monday PM
	// WHEN: checking both slots plus a clean one
	// THEN: one hard block, one warning, the clean slot absent

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SaveRule(ctx, rule("hard", time.Monday, calendar.BlockAM, schedule.RuleBlock, schedule.EnforceHard)))
	require.NoError(t, mem.SaveRule(ctx, rule("warn", time.Monday, calendar.BlockPM, schedule.RuleBlock, schedule.EnforceWarn)))
	e := schedule.NewEvaluator(mem)

	tuesday := monday.AddDays(1)
	result, err := e.CheckBulkAvailability(ctx, []schedule.AvailabilityCheck{
		{ProviderID: "prov-1", ServiceID: "svc-1", Date: monday, TimeBlock: calendar.BlockAM},
		{ProviderID: "prov-1", ServiceID: "svc-1", Date: monday, TimeBlock: calendar.BlockPM},
		{ProviderID: "prov-1", ServiceID: "svc-1", Date: tuesday, TimeBlock: calendar.BlockAM},
	})
	require.NoError(t, err)
	require.Len(t, result.HardBlocks, 1)
	require.Len(t, result.Warnings, 1)
	assert.True(t, result.HardBlocks[0].Check.Date.Equal(monday))
	assert.Equal(t, calendar.BlockAM, result.HardBlocks[0].Check.TimeBlock)
	assert.Equal(t, calendar.BlockPM, result.Warnings[0].Check.TimeBlock)
}

func TestCheckBulkAvailability_Empty(t *testing.T) {
	e := newEvaluator(t)
	result, err := e.CheckBulkAvailability(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.HardBlocks)
	assert.Empty(t, result.Warnings)
}
