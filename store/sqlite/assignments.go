/*
assignments.go - SQLite AssignmentStore

PURPOSE:
  Assignment CRUD plus the filtered range scan used by the conflict
  detector, bulk planner and undo conflict scan. Filters compose with
  squirrel so each caller pays only for the predicates it sets.
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

const assignmentCols = "id, date, service_id, provider_id, time_block, room_count, is_pto, is_covering, notes, created_at"

func (s *Store) InsertAssignment(ctx context.Context, a schedule.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_assignments
			(id, date, service_id, provider_id, time_block, room_count, is_pto, is_covering, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Date.String(), a.ServiceID, a.ProviderID, string(a.TimeBlock),
		a.RoomCount, boolInt(a.IsPTO), boolInt(a.IsCovering), a.Notes,
		a.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) InsertAssignments(ctx context.Context, as []schedule.Assignment) error {
	if len(as) == 0 {
		return nil
	}
	builder := sq.Insert("schedule_assignments").
		Columns("id", "date", "service_id", "provider_id", "time_block",
			"room_count", "is_pto", "is_covering", "notes", "created_at")
	for _, a := range as {
		builder = builder.Values(
			a.ID, a.Date.String(), a.ServiceID, a.ProviderID, string(a.TimeBlock),
			a.RoomCount, boolInt(a.IsPTO), boolInt(a.IsCovering), a.Notes,
			a.CreatedAt.UTC().Format(timeLayout))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) UpsertAssignment(ctx context.Context, a schedule.Assignment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_assignments
			(id, date, service_id, provider_id, time_block, room_count, is_pto, is_covering, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			date = excluded.date,
			service_id = excluded.service_id,
			provider_id = excluded.provider_id,
			time_block = excluded.time_block,
			room_count = excluded.room_count,
			is_pto = excluded.is_pto,
			is_covering = excluded.is_covering,
			notes = excluded.notes,
			created_at = excluded.created_at`,
		a.ID, a.Date.String(), a.ServiceID, a.ProviderID, string(a.TimeBlock),
		a.RoomCount, boolInt(a.IsPTO), boolInt(a.IsCovering), a.Notes,
		a.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) GetAssignment(ctx context.Context, id string) (*schedule.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentCols+` FROM schedule_assignments WHERE id = ?`, id)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) DeleteAssignments(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sq.Delete("schedule_assignments").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) ListAssignments(ctx context.Context, f schedule.AssignmentFilter) ([]schedule.Assignment, error) {
	builder := sq.Select("id", "date", "service_id", "provider_id", "time_block",
		"room_count", "is_pto", "is_covering", "notes", "created_at").
		From("schedule_assignments")
	if f.ProviderID != "" {
		builder = builder.Where(sq.Eq{"provider_id": f.ProviderID})
	}
	if f.ServiceID != "" {
		builder = builder.Where(sq.Eq{"service_id": f.ServiceID})
	}
	if f.TimeBlock != nil {
		builder = builder.Where(sq.Eq{"time_block": string(*f.TimeBlock)})
	}
	if f.From != nil {
		builder = builder.Where(sq.GtOrEq{"date": f.From.String()})
	}
	if f.To != nil {
		builder = builder.Where(sq.LtOrEq{"date": f.To.String()})
	}
	if f.IsPTO != nil {
		builder = builder.Where(sq.Eq{"is_pto": boolInt(*f.IsPTO)})
	}
	query, args, err := builder.OrderBy("date", "time_block", "id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) AssignmentExists(ctx context.Context, date calendar.Date, serviceID string, block calendar.TimeBlock) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM schedule_assignments
		WHERE date = ? AND service_id = ? AND time_block = ?`,
		date.String(), serviceID, string(block)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanAssignment(r rowScanner) (*schedule.Assignment, error) {
	var a schedule.Assignment
	var date, block, createdAt string
	var isPTO, isCovering int
	var notes sql.NullString
	if err := r.Scan(&a.ID, &date, &a.ServiceID, &a.ProviderID, &block,
		&a.RoomCount, &isPTO, &isCovering, &notes, &createdAt); err != nil {
		return nil, err
	}
	d, err := calendar.ParseDate(date)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, err
	}
	a.Date = d
	a.TimeBlock = calendar.TimeBlock(block)
	a.IsPTO = isPTO != 0
	a.IsCovering = isCovering != 0
	a.Notes = notes.String
	a.CreatedAt = created
	return &a, nil
}
