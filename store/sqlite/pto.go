/*
pto.go - SQLite PTOStore

PURPOSE:
  Leave request lifecycle rows, denormalized leave intervals, and the
  allowance configuration tables feeding balance resolution.

OVERLAP QUERIES:
  Range intersection is the classic pair of inequalities
  (start <= to AND end >= from) over the ISO date strings; lexical
  order on "2006-01-02" equals chronological order.
*/
package sqlite

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

// =============================================================================
// PTO REQUESTS
// =============================================================================

func (s *Store) SavePTORequest(ctx context.Context, r schedule.PTORequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pto_requests
			(id, provider_id, start_date, end_date, leave_type, time_block, status,
			 requested_by, reviewer_name, reviewer_comment, created_at, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			leave_type = excluded.leave_type,
			time_block = excluded.time_block,
			status = excluded.status,
			requested_by = excluded.requested_by,
			reviewer_name = excluded.reviewer_name,
			reviewer_comment = excluded.reviewer_comment,
			reviewed_at = excluded.reviewed_at`,
		r.ID, r.ProviderID, r.StartDate.String(), r.EndDate.String(),
		string(r.LeaveType), string(r.TimeBlock), string(r.Status),
		r.RequestedBy, r.ReviewerName, r.ReviewerComment,
		r.CreatedAt.UTC().Format(timeLayout), nullTime(r.ReviewedAt))
	return err
}

func (s *Store) GetPTORequest(ctx context.Context, id string) (*schedule.PTORequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, provider_id, start_date, end_date, leave_type, time_block, status,
		       requested_by, reviewer_name, reviewer_comment, created_at, reviewed_at
		FROM pto_requests WHERE id = ?`, id)
	r, err := scanPTORequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) ListPTORequests(ctx context.Context, f schedule.PTORequestFilter) ([]schedule.PTORequest, error) {
	builder := sq.Select("id", "provider_id", "start_date", "end_date", "leave_type",
		"time_block", "status", "requested_by", "reviewer_name", "reviewer_comment",
		"created_at", "reviewed_at").
		From("pto_requests")
	if f.ProviderID != "" {
		builder = builder.Where(sq.Eq{"provider_id": f.ProviderID})
	}
	if f.Status != nil {
		builder = builder.Where(sq.Eq{"status": string(*f.Status)})
	}
	if f.OverlapFrom != nil {
		builder = builder.Where(sq.GtOrEq{"end_date": f.OverlapFrom.String()})
	}
	if f.OverlapTo != nil {
		builder = builder.Where(sq.LtOrEq{"start_date": f.OverlapTo.String()})
	}
	query, args, err := builder.OrderBy("start_date", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.PTORequest
	for rows.Next() {
		r, err := scanPTORequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) DeletePTORequest(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pto_requests WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DeletePTORequestsCovering(ctx context.Context, providerID string, date calendar.Date) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pto_requests
		WHERE provider_id = ? AND start_date <= ? AND end_date >= ?`,
		providerID, date.String(), date.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func scanPTORequest(r rowScanner) (*schedule.PTORequest, error) {
	var req schedule.PTORequest
	var start, end, leaveType, block, status, createdAt string
	var requestedBy, reviewerName, reviewerComment, reviewedAt sql.NullString
	if err := r.Scan(&req.ID, &req.ProviderID, &start, &end, &leaveType, &block, &status,
		&requestedBy, &reviewerName, &reviewerComment, &createdAt, &reviewedAt); err != nil {
		return nil, err
	}
	startDate, err := calendar.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDate, err := calendar.ParseDate(end)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, err
	}
	reviewed, err := timePtr(reviewedAt)
	if err != nil {
		return nil, err
	}
	req.StartDate = startDate
	req.EndDate = endDate
	req.LeaveType = schedule.LeaveType(leaveType)
	req.TimeBlock = calendar.TimeBlock(block)
	req.Status = schedule.RequestStatus(status)
	req.RequestedBy = requestedBy.String
	req.ReviewerName = reviewerName.String
	req.ReviewerComment = reviewerComment.String
	req.CreatedAt = created
	req.ReviewedAt = reviewed
	return &req, nil
}

// =============================================================================
// PROVIDER LEAVES
// =============================================================================

func (s *Store) SaveLeave(ctx context.Context, l schedule.ProviderLeave) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_leaves (id, provider_id, start_date, end_date, leave_type, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			leave_type = excluded.leave_type,
			reason = excluded.reason`,
		l.ID, l.ProviderID, l.StartDate.String(), l.EndDate.String(),
		string(l.LeaveType), l.Reason)
	return err
}

func (s *Store) ListLeavesOverlapping(ctx context.Context, from, to calendar.Date) ([]schedule.ProviderLeave, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, start_date, end_date, leave_type, reason
		FROM provider_leaves
		WHERE start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		to.String(), from.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.ProviderLeave
	for rows.Next() {
		var l schedule.ProviderLeave
		var start, end, leaveType string
		var reason sql.NullString
		if err := rows.Scan(&l.ID, &l.ProviderID, &start, &end, &leaveType, &reason); err != nil {
			return nil, err
		}
		startDate, err := calendar.ParseDate(start)
		if err != nil {
			return nil, err
		}
		endDate, err := calendar.ParseDate(end)
		if err != nil {
			return nil, err
		}
		l.StartDate = startDate
		l.EndDate = endDate
		l.LeaveType = schedule.LeaveType(leaveType)
		l.Reason = reason.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) DeleteLeavesCovering(ctx context.Context, providerID string, date calendar.Date) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM provider_leaves
		WHERE provider_id = ? AND start_date <= ? AND end_date >= ?`,
		providerID, date.String(), date.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// =============================================================================
// ALLOWANCE CONFIGURATION
// =============================================================================

func (s *Store) GetPTOConfig(ctx context.Context, providerID string, year int) (*schedule.ProviderPTOConfig, error) {
	var c schedule.ProviderPTOConfig
	var allowance sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT provider_id, year, annual_allowance, carryover_days
		FROM provider_pto_config WHERE provider_id = ? AND year = ?`,
		providerID, year).Scan(&c.ProviderID, &c.Year, &allowance, &c.CarryoverDays)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if allowance.Valid {
		v := allowance.Float64
		c.AnnualAllowance = &v
	}
	return &c, nil
}

func (s *Store) SavePTOConfig(ctx context.Context, c schedule.ProviderPTOConfig) error {
	var allowance sql.NullFloat64
	if c.AnnualAllowance != nil {
		allowance = sql.NullFloat64{Float64: *c.AnnualAllowance, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_pto_config (provider_id, year, annual_allowance, carryover_days)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_id, year) DO UPDATE SET
			annual_allowance = excluded.annual_allowance,
			carryover_days = excluded.carryover_days`,
		c.ProviderID, c.Year, allowance, c.CarryoverDays)
	return err
}

func (s *Store) GetRoleDefault(ctx context.Context, role schedule.Role) (*schedule.PTORoleDefault, error) {
	var d schedule.PTORoleDefault
	var r string
	err := s.db.QueryRowContext(ctx, `
		SELECT role, annual_allowance FROM pto_role_defaults WHERE role = ?`,
		string(role)).Scan(&r, &d.AnnualAllowance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Role = schedule.Role(r)
	return &d, nil
}

func (s *Store) SaveRoleDefault(ctx context.Context, d schedule.PTORoleDefault) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pto_role_defaults (role, annual_allowance)
		VALUES (?, ?)
		ON CONFLICT(role) DO UPDATE SET annual_allowance = excluded.annual_allowance`,
		string(d.Role), d.AnnualAllowance)
	return err
}
