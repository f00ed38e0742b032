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

func testRequest(id string, start, end calendar.Date, status schedule.RequestStatus) schedule.PTORequest {
	return schedule.PTORequest{
		ID:          id,
		ProviderID:  "p1",
		StartDate:   start,
		EndDate:     end,
		LeaveType:   schedule.LeaveVacation,
		TimeBlock:   calendar.BlockBoth,
		Status:      status,
		RequestedBy: "p1",
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

// =============================================================================
// PTO REQUEST TESTS
// =============================================================================

func TestPTORequestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	reviewed := time.Now().UTC().Truncate(time.Second)
	r := testRequest("r1", testMonday, testMonday.AddDays(4), schedule.StatusApproved)
	r.ReviewerName = "Chief"
	r.ReviewerComment = "ok"
	r.ReviewedAt = &reviewed
	require.NoError(t, s.SavePTORequest(ctx, r))

	got, err := s.GetPTORequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.StartDate.Equal(testMonday))
	assert.Equal(t, schedule.StatusApproved, got.Status)
	assert.Equal(t, "Chief", got.ReviewerName)
	require.NotNil(t, got.ReviewedAt)
	assert.True(t, got.ReviewedAt.Equal(reviewed))
}

func TestPTORequestUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := testRequest("r1", testMonday, testMonday, schedule.StatusPending)
	require.NoError(t, s.SavePTORequest(ctx, r))
	r.Status = schedule.StatusDenied
	require.NoError(t, s.SavePTORequest(ctx, r))

	got, err := s.GetPTORequest(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, schedule.StatusDenied, got.Status)
	assert.Nil(t, got.ReviewedAt)
}

func TestListPTORequests_StatusAndOverlap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePTORequest(ctx, testRequest("r1", testMonday, testMonday.AddDays(4), schedule.StatusApproved)))
	require.NoError(t, s.SavePTORequest(ctx, testRequest("r2", testMonday.AddDays(14), testMonday.AddDays(18), schedule.StatusPending)))

	approved := schedule.StatusApproved
	byStatus, err := s.ListPTORequests(ctx, schedule.PTORequestFilter{ProviderID: "p1", Status: &approved})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "r1", byStatus[0].ID)

	// Overlap window touching only the second request.
	from := testMonday.AddDays(16)
	to := testMonday.AddDays(30)
	overlapping, err := s.ListPTORequests(ctx, schedule.PTORequestFilter{OverlapFrom: &from, OverlapTo: &to})
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, "r2", overlapping[0].ID)
}

func TestDeletePTORequestsCovering(t *testing.T) {
	// Covering deletion targets requests whose range contains the date.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePTORequest(ctx, testRequest("r1", testMonday, testMonday.AddDays(4), schedule.StatusApproved)))
	require.NoError(t, s.SavePTORequest(ctx, testRequest("r2", testMonday.AddDays(10), testMonday.AddDays(10), schedule.StatusApproved)))

	n, err := s.DeletePTORequestsCovering(ctx, "p1", testMonday.AddDays(2))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	survivor, err := s.GetPTORequest(ctx, "r2")
	require.NoError(t, err)
	assert.NotNil(t, survivor)
}

// =============================================================================
// LEAVE TESTS
// =============================================================================

func TestLeavesOverlapQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveLeave(ctx, schedule.ProviderLeave{
		ID: "l1", ProviderID: "p1",
		StartDate: testMonday, EndDate: testMonday.AddDays(4),
		LeaveType: schedule.LeaveVacation, Reason: "spring break",
	}))
	require.NoError(t, s.SaveLeave(ctx, schedule.ProviderLeave{
		ID: "l2", ProviderID: "p2",
		StartDate: testMonday.AddDays(20), EndDate: testMonday.AddDays(24),
		LeaveType: schedule.LeaveConference,
	}))

	overlapping, err := s.ListLeavesOverlapping(ctx, testMonday.AddDays(3), testMonday.AddDays(10))
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, "l1", overlapping[0].ID)
	assert.Equal(t, "spring break", overlapping[0].Reason)

	n, err := s.DeleteLeavesCovering(ctx, "p1", testMonday.AddDays(1))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// =============================================================================
// ALLOWANCE CONFIG TESTS
// =============================================================================

func TestPTOConfigRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	allowance := 25.0
	require.NoError(t, s.SavePTOConfig(ctx, schedule.ProviderPTOConfig{
		ProviderID: "p1", Year: 2025, AnnualAllowance: &allowance, CarryoverDays: 3.5,
	}))

	got, err := s.GetPTOConfig(ctx, "p1", 2025)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.AnnualAllowance)
	assert.Equal(t, 25.0, *got.AnnualAllowance)
	assert.Equal(t, 3.5, got.CarryoverDays)

	missing, err := s.GetPTOConfig(ctx, "p1", 2024)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPTOConfig_NullAllowance(t *testing.T) {
	// A carryover-only row keeps its allowance NULL so the balance
	// engine falls through to the role default.
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePTOConfig(ctx, schedule.ProviderPTOConfig{
		ProviderID: "p1", Year: 2025, CarryoverDays: 2,
	}))

	got, err := s.GetPTOConfig(ctx, "p1", 2025)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Nil(t, got.AnnualAllowance)
	assert.Equal(t, 2.0, got.CarryoverDays)
}

func TestRoleDefaultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.GetRoleDefault(ctx, schedule.RoleFellow)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SaveRoleDefault(ctx, schedule.PTORoleDefault{Role: schedule.RoleFellow, AnnualAllowance: 18}))
	require.NoError(t, s.SaveRoleDefault(ctx, schedule.PTORoleDefault{Role: schedule.RoleFellow, AnnualAllowance: 19}))

	got, err := s.GetRoleDefault(ctx, schedule.RoleFellow)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 19.0, got.AnnualAllowance)
}
