package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

// newTestStore opens a fresh in-memory database per test.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var testMonday = calendar.NewDate(2025, time.March, 10)

// =============================================================================
// PROVIDER TESTS
// =============================================================================

func TestProviderRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := schedule.Provider{
		ID: "prov-1", Name: "Dana Osei", Initials: "DO",
		Role: schedule.RoleAttending, DefaultRoomCount: 3,
		Capabilities: []string{"procedures", "sedation"},
		WorkWeek:     calendar.NewWorkWeek(time.Monday, time.Tuesday, time.Wednesday),
	}
	require.NoError(t, s.SaveProvider(ctx, p))

	got, err := s.GetProvider(ctx, "prov-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Capabilities, got.Capabilities)
	assert.True(t, got.WorkWeek.Contains(time.Monday))
	assert.False(t, got.WorkWeek.Contains(time.Friday))
}

func TestProviderUpsertAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := schedule.Provider{ID: "prov-1", Name: "Dana Osei", Role: schedule.RoleAttending}
	require.NoError(t, s.SaveProvider(ctx, p))
	p.Name = "Dana Osei-Mensah"
	require.NoError(t, s.SaveProvider(ctx, p))

	all, err := s.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Dana Osei-Mensah", all[0].Name)

	require.NoError(t, s.DeleteProvider(ctx, "prov-1"))
	got, err := s.GetProvider(ctx, "prov-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestProviderNilWorkWeekStaysNil(t *testing.T) {
	// A nil work week means Mon-Fri by convention and must not come
	// back as an empty non-nil set.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveProvider(ctx, schedule.Provider{ID: "prov-1", Name: "X", Role: schedule.RoleNP}))
	got, err := s.GetProvider(ctx, "prov-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.WorkWeek)
}

// =============================================================================
// SERVICE AND RULE TESTS
// =============================================================================

func TestServiceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	svc := schedule.Service{
		ID: "svc-1", Name: "Clinic", TimeBlock: calendar.BlockAM,
		RequiresRooms: true, RequiredCapability: "procedures", ShowOnMainCalendar: true,
	}
	require.NoError(t, s.SaveService(ctx, svc))

	got, err := s.GetService(ctx, "svc-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, svc, *got)
}

func TestRulesByPairAndSets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	save := func(id, provider, service string) {
		require.NoError(t, s.SaveRule(ctx, schedule.AvailabilityRule{
			ID: id, ProviderID: provider, ServiceID: service,
			DayOfWeek: time.Monday, TimeBlock: calendar.BlockAM,
			RuleType: schedule.RuleBlock, Enforcement: schedule.EnforceWarn,
		}))
	}
	save("r1", "p1", "s1")
	save("r2", "p1", "s2")
	save("r3", "p2", "s1")

	pair, err := s.ListRulesForPair(ctx, "p1", "s1")
	require.NoError(t, err)
	require.Len(t, pair, 1)
	assert.Equal(t, "r1", pair[0].ID)

	sets, err := s.ListRulesForSets(ctx, []string{"p1", "p2"}, []string{"s1"})
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	require.NoError(t, s.DeleteRule(ctx, "r1"))
	pair, err = s.ListRulesForPair(ctx, "p1", "s1")
	require.NoError(t, err)
	assert.Empty(t, pair)
}

// =============================================================================
// ASSIGNMENT TESTS
// =============================================================================

func seedAssignments(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	rows := []schedule.Assignment{
		{ID: "a1", Date: testMonday, ServiceID: "s1", ProviderID: "p1", TimeBlock: calendar.BlockAM, CreatedAt: time.Now().UTC()},
		{ID: "a2", Date: testMonday, ServiceID: "s1", ProviderID: "p2", TimeBlock: calendar.BlockPM, CreatedAt: time.Now().UTC()},
		{ID: "a3", Date: testMonday.AddDays(1), ServiceID: "s2", ProviderID: "p1", TimeBlock: calendar.BlockBoth, IsPTO: true, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.InsertAssignments(ctx, rows))
}

func TestAssignmentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := schedule.Assignment{
		ID: "a1", Date: testMonday, ServiceID: "s1", ProviderID: "p1",
		TimeBlock: calendar.BlockAM, RoomCount: 2, IsCovering: true,
		Notes: "covering for SR", CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.InsertAssignment(ctx, a))

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Date.Equal(testMonday))
	assert.Equal(t, 2, got.RoomCount)
	assert.True(t, got.IsCovering)
	assert.Equal(t, "covering for SR", got.Notes)
}

func TestListAssignments_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAssignments(t, s)

	byProvider, err := s.ListAssignments(ctx, schedule.AssignmentFilter{ProviderID: "p1"})
	require.NoError(t, err)
	assert.Len(t, byProvider, 2)

	am := calendar.BlockAM
	byBlock, err := s.ListAssignments(ctx, schedule.AssignmentFilter{TimeBlock: &am})
	require.NoError(t, err)
	require.Len(t, byBlock, 1)
	assert.Equal(t, "a1", byBlock[0].ID)

	from := testMonday.AddDays(1)
	byRange, err := s.ListAssignments(ctx, schedule.AssignmentFilter{From: &from})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, "a3", byRange[0].ID)

	pto := true
	byPTO, err := s.ListAssignments(ctx, schedule.AssignmentFilter{IsPTO: &pto})
	require.NoError(t, err)
	require.Len(t, byPTO, 1)
	assert.Equal(t, "a3", byPTO[0].ID)
}

func TestListAssignments_OrderedByDateThenBlock(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAssignments(t, s)

	all, err := s.ListAssignments(ctx, schedule.AssignmentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a1", all[0].ID)
	assert.Equal(t, "a2", all[1].ID)
	assert.Equal(t, "a3", all[2].ID)
}

func TestAssignmentExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAssignments(t, s)

	exists, err := s.AssignmentExists(ctx, testMonday, "s1", calendar.BlockAM)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.AssignmentExists(ctx, testMonday, "s1", calendar.BlockBoth)
	require.NoError(t, err)
	assert.False(t, exists, "the triple check is exact, not an intersection")
}

func TestDeleteAssignments_Batch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAssignments(t, s)

	n, err := s.DeleteAssignments(ctx, []string{"a1", "a3", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ok, err := s.DeleteAssignment(ctx, "a2")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.DeleteAssignment(ctx, "a2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpsertAssignment_RestoresUnderSameID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := schedule.Assignment{ID: "a1", Date: testMonday, ServiceID: "s1", ProviderID: "p1", TimeBlock: calendar.BlockAM, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.UpsertAssignment(ctx, a))
	a.Notes = "updated"
	require.NoError(t, s.UpsertAssignment(ctx, a))

	got, err := s.GetAssignment(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "updated", got.Notes)
}
