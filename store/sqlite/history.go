/*
history.go - SQLite HistoryStore and TemplateStore

PURPOSE:
  Persists the reversible change journal and the weekly rota templates.
  The journal's tagged ChangeSet maps onto two nullable JSON columns
  (created_assignment_ids, deleted_assignments); exactly one is set per
  row, matching the in-memory invariant.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

// assignmentRow is the JSON shape for assignment snapshots inside
// journal columns.
type assignmentRow struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	TimeBlock  string `json:"time_block"`
	RoomCount  int    `json:"room_count"`
	IsPTO      bool   `json:"is_pto"`
	IsCovering bool   `json:"is_covering"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toAssignmentRows(as []schedule.Assignment) []assignmentRow {
	rows := make([]assignmentRow, len(as))
	for i, a := range as {
		rows[i] = assignmentRow{
			ID:         a.ID,
			Date:       a.Date.String(),
			ServiceID:  a.ServiceID,
			ProviderID: a.ProviderID,
			TimeBlock:  string(a.TimeBlock),
			RoomCount:  a.RoomCount,
			IsPTO:      a.IsPTO,
			IsCovering: a.IsCovering,
			Notes:      a.Notes,
			CreatedAt:  a.CreatedAt.UTC().Format(timeLayout),
		}
	}
	return rows
}

func fromAssignmentRows(rows []assignmentRow) ([]schedule.Assignment, error) {
	as := make([]schedule.Assignment, len(rows))
	for i, r := range rows {
		date, err := calendar.ParseDate(r.Date)
		if err != nil {
			return nil, err
		}
		created, err := time.Parse(timeLayout, r.CreatedAt)
		if err != nil {
			return nil, err
		}
		as[i] = schedule.Assignment{
			ID:         r.ID,
			Date:       date,
			ServiceID:  r.ServiceID,
			ProviderID: r.ProviderID,
			TimeBlock:  calendar.TimeBlock(r.TimeBlock),
			RoomCount:  r.RoomCount,
			IsPTO:      r.IsPTO,
			IsCovering: r.IsCovering,
			Notes:      r.Notes,
			CreatedAt:  created,
		}
	}
	return as, nil
}

// =============================================================================
// CHANGE HISTORY
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, e schedule.ChangeHistoryEntry) error {
	var deleted, createdIDs sql.NullString
	if snapshots, ok := e.Change.Removed(); ok {
		b, err := json.Marshal(toAssignmentRows(snapshots))
		if err != nil {
			return err
		}
		deleted = sql.NullString{String: string(b), Valid: true}
	}
	if ids, ok := e.Change.Added(); ok {
		b, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		createdIDs = sql.NullString{String: string(b), Valid: true}
	}

	var redo sql.NullString
	if len(e.RedoAssignments) > 0 {
		b, err := json.Marshal(toAssignmentRows(e.RedoAssignments))
		if err != nil {
			return err
		}
		redo = sql.NullString{String: string(b), Valid: true}
	}

	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO schedule_change_history
			(id, operation_type, description, affected_date_start, affected_date_end,
			 deleted_assignments, created_assignment_ids, redo_assignments,
			 is_undone, undone_at, is_redone, redone_at, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Operation), e.Description,
		e.AffectedStart.String(), e.AffectedEnd.String(),
		deleted, createdIDs, redo,
		boolInt(e.IsUndone), nullTime(e.UndoneAt),
		boolInt(e.IsRedone), nullTime(e.RedoneAt),
		metadata, e.CreatedAt.UTC().Format(timeLayout))
	return err
}

func (s *Store) GetEntry(ctx context.Context, id string) (*schedule.ChangeHistoryEntry, error) {
	row := s.db.QueryRowContext(ctx, historySelect+` WHERE id = ?`, id)
	e, err := scanHistoryEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEntries(ctx context.Context, limit int) ([]schedule.ChangeHistoryEntry, error) {
	query := historySelect + ` ORDER BY created_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.ChangeHistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) MarkUndone(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedule_change_history
		SET is_undone = 1, undone_at = ?, is_redone = 0, redone_at = NULL
		WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	return err
}

func (s *Store) MarkRedone(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE schedule_change_history
		SET is_redone = 1, redone_at = ?, is_undone = 0, undone_at = NULL
		WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	return err
}

const historySelect = `
	SELECT id, operation_type, description, affected_date_start, affected_date_end,
	       deleted_assignments, created_assignment_ids, redo_assignments,
	       is_undone, undone_at, is_redone, redone_at, metadata, created_at
	FROM schedule_change_history`

func scanHistoryEntry(r rowScanner) (*schedule.ChangeHistoryEntry, error) {
	var e schedule.ChangeHistoryEntry
	var op, start, end, createdAt string
	var deleted, createdIDs, redo, undoneAt, redoneAt, metadata sql.NullString
	var isUndone, isRedone int
	if err := r.Scan(&e.ID, &op, &e.Description, &start, &end,
		&deleted, &createdIDs, &redo,
		&isUndone, &undoneAt, &isRedone, &redoneAt, &metadata, &createdAt); err != nil {
		return nil, err
	}

	e.Operation = schedule.OperationType(op)
	startDate, err := calendar.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endDate, err := calendar.ParseDate(end)
	if err != nil {
		return nil, err
	}
	e.AffectedStart = startDate
	e.AffectedEnd = endDate

	switch {
	case deleted.Valid && deleted.String != "":
		var rows []assignmentRow
		if err := json.Unmarshal([]byte(deleted.String), &rows); err != nil {
			return nil, err
		}
		snapshots, err := fromAssignmentRows(rows)
		if err != nil {
			return nil, err
		}
		e.Change = schedule.RemovedChange(snapshots)
	default:
		var ids []string
		if createdIDs.Valid && createdIDs.String != "" {
			if err := json.Unmarshal([]byte(createdIDs.String), &ids); err != nil {
				return nil, err
			}
		}
		e.Change = schedule.AddedChange(ids)
	}

	if redo.Valid && redo.String != "" {
		var rows []assignmentRow
		if err := json.Unmarshal([]byte(redo.String), &rows); err != nil {
			return nil, err
		}
		e.RedoAssignments, err = fromAssignmentRows(rows)
		if err != nil {
			return nil, err
		}
	}

	e.IsUndone = isUndone != 0
	e.IsRedone = isRedone != 0
	if e.UndoneAt, err = timePtr(undoneAt); err != nil {
		return nil, err
	}
	if e.RedoneAt, err = timePtr(redoneAt); err != nil {
		return nil, err
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, err
		}
	}

	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = created
	return &e, nil
}

// =============================================================================
// WEEK TEMPLATES
// =============================================================================

type templateSlotRow struct {
	DayOfWeek  int    `json:"day_of_week"`
	TimeBlock  string `json:"time_block"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	RoomCount  int    `json:"room_count"`
}

func (s *Store) SaveTemplate(ctx context.Context, t schedule.WeekTemplate) error {
	rows := make([]templateSlotRow, len(t.Slots))
	for i, slot := range t.Slots {
		rows[i] = templateSlotRow{
			DayOfWeek:  int(slot.DayOfWeek),
			TimeBlock:  string(slot.TimeBlock),
			ServiceID:  slot.ServiceID,
			ProviderID: slot.ProviderID,
			RoomCount:  slot.RoomCount,
		}
	}
	slots, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO week_templates (id, name, slots)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, slots = excluded.slots`,
		t.ID, t.Name, string(slots))
	return err
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*schedule.WeekTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, slots FROM week_templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]schedule.WeekTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slots FROM week_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schedule.WeekTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM week_templates WHERE id = ?`, id)
	return err
}

func scanTemplate(r rowScanner) (*schedule.WeekTemplate, error) {
	var t schedule.WeekTemplate
	var slots string
	if err := r.Scan(&t.ID, &t.Name, &slots); err != nil {
		return nil, err
	}
	var rows []templateSlotRow
	if err := json.Unmarshal([]byte(slots), &rows); err != nil {
		return nil, err
	}
	t.Slots = make([]schedule.TemplateSlot, len(rows))
	for i, row := range rows {
		t.Slots[i] = schedule.TemplateSlot{
			DayOfWeek:  time.Weekday(row.DayOfWeek),
			TimeBlock:  calendar.TimeBlock(row.TimeBlock),
			ServiceID:  row.ServiceID,
			ProviderID: row.ProviderID,
			RoomCount:  row.RoomCount,
		}
	}
	return &t, nil
}
