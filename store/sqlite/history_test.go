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

// =============================================================================
// JOURNAL ENTRY TESTS
// =============================================================================

func TestHistoryEntry_AddSideRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := schedule.Assignment{
		ID: "a1", Date: testMonday, ServiceID: "s1", ProviderID: "p1",
		TimeBlock: calendar.BlockAM, RoomCount: 1,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	entry := schedule.ChangeHistoryEntry{
		ID:              "h1",
		Operation:       schedule.OpBulkAdd,
		Description:     "Bulk add for provider p1 (every Monday), 2025-03-01 to 2025-03-31: 1 assignments",
		AffectedStart:   calendar.NewDate(2025, time.March, 1),
		AffectedEnd:     calendar.NewDate(2025, time.March, 31),
		Change:          schedule.AddedChange([]string{"a1"}),
		RedoAssignments: []schedule.Assignment{payload},
		Metadata:        map[string]string{"provider_id": "p1", "action": "add"},
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.AppendEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schedule.OpBulkAdd, got.Operation)
	assert.True(t, got.AffectedStart.Equal(entry.AffectedStart))

	ids, ok := got.Change.Added()
	require.True(t, ok)
	assert.Equal(t, []string{"a1"}, ids)
	_, isRemove := got.Change.Removed()
	assert.False(t, isRemove)

	require.Len(t, got.RedoAssignments, 1)
	redo := got.RedoAssignments[0]
	assert.Equal(t, payload.ID, redo.ID)
	assert.True(t, redo.Date.Equal(payload.Date))
	assert.Equal(t, payload.TimeBlock, redo.TimeBlock)

	assert.Equal(t, "p1", got.Metadata["provider_id"])
	assert.False(t, got.IsUndone)
	assert.Nil(t, got.UndoneAt)
}

func TestHistoryEntry_RemoveSideRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := schedule.Assignment{
		ID: "a9", Date: testMonday, ServiceID: "s1", ProviderID: "p1",
		TimeBlock: calendar.BlockPM, IsPTO: true, Notes: "half day",
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	entry := schedule.ChangeHistoryEntry{
		ID:            "h2",
		Operation:     schedule.OpBulkRemove,
		Description:   "Bulk remove",
		AffectedStart: testMonday,
		AffectedEnd:   testMonday,
		Change:        schedule.RemovedChange([]schedule.Assignment{snap}),
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.AppendEntry(ctx, entry))

	got, err := s.GetEntry(ctx, "h2")
	require.NoError(t, err)
	require.NotNil(t, got)

	snaps, ok := got.Change.Removed()
	require.True(t, ok)
	require.Len(t, snaps, 1)
	assert.Equal(t, "a9", snaps[0].ID)
	assert.True(t, snaps[0].IsPTO)
	assert.Equal(t, "half day", snaps[0].Notes)
	_, isAdd := got.Change.Added()
	assert.False(t, isAdd)
}

func TestListEntries_NewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"h1", "h2", "h3"} {
		require.NoError(t, s.AppendEntry(ctx, schedule.ChangeHistoryEntry{
			ID:            id,
			Operation:     schedule.OpBulkAdd,
			AffectedStart: testMonday,
			AffectedEnd:   testMonday,
			Change:        schedule.AddedChange([]string{"x"}),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := s.ListEntries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "h3", entries[0].ID)
	assert.Equal(t, "h2", entries[1].ID)

	all, err := s.ListEntries(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMarkUndoneAndRedone(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEntry(ctx, schedule.ChangeHistoryEntry{
		ID:            "h1",
		Operation:     schedule.OpBulkAdd,
		AffectedStart: testMonday,
		AffectedEnd:   testMonday,
		Change:        schedule.AddedChange([]string{"a1"}),
		CreatedAt:     time.Now().UTC(),
	}))

	undoneAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.MarkUndone(ctx, "h1", undoneAt))

	got, err := s.GetEntry(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.IsUndone)
	require.NotNil(t, got.UndoneAt)
	assert.True(t, got.UndoneAt.Equal(undoneAt))
	assert.False(t, got.IsRedone)

	redoneAt := undoneAt.Add(time.Minute)
	require.NoError(t, s.MarkRedone(ctx, "h1", redoneAt))

	got, err = s.GetEntry(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, got.IsRedone)
	require.NotNil(t, got.RedoneAt)
	// Redo clears the undone flag so the entry can be undone again.
	assert.False(t, got.IsUndone)
}

// =============================================================================
// TEMPLATE TESTS
// =============================================================================

func TestTemplateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := schedule.WeekTemplate{
		ID:   "tpl-1",
		Name: "Week A",
		Slots: []schedule.TemplateSlot{
			{DayOfWeek: time.Monday, TimeBlock: calendar.BlockAM, ServiceID: "s1", ProviderID: "p1", RoomCount: 2},
			{DayOfWeek: time.Wednesday, TimeBlock: calendar.BlockPM, ServiceID: "s2", ProviderID: "p1"},
		},
	}
	require.NoError(t, s.SaveTemplate(ctx, tpl))

	got, err := s.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tpl.Name, got.Name)
	require.Len(t, got.Slots, 2)
	assert.Equal(t, time.Monday, got.Slots[0].DayOfWeek)
	assert.Equal(t, 2, got.Slots[0].RoomCount)

	tpl.Name = "Week A v2"
	require.NoError(t, s.SaveTemplate(ctx, tpl))
	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Week A v2", all[0].Name)

	require.NoError(t, s.DeleteTemplate(ctx, "tpl-1"))
	gone, err := s.GetTemplate(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}
