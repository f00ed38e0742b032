/*
history.go - Reversible change journal and undo/redo

PURPOSE:
  Every bulk mutation is recorded as a journal entry carrying enough
  state to reverse it: the IDs it created, or full snapshots of the
  rows it deleted, plus the payloads needed to replay it after an
  undo. Undo is conflict-aware: a just-in-time scan detects edits made
  since the operation that would make a blind rollback unsafe, and
  returns them for user confirmation instead of mutating.

JOURNAL SHAPE:
  ChangeSet is a tagged union of Added(ids) and Removed(snapshots), so
  "exactly one side populated" is structural rather than a convention
  of two nullable columns.

FAILURE SEMANTICS:
  Storage errors during the restore loop are logged and counted, not
  aborted on. Partial success is reported via counts; there is no
  all-or-nothing transaction around an undo. The conflict scan is a
  best-effort compensating check, not a lock: a conflicting write
  landing between the scan and the mutation is not prevented.
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// OPERATION TYPES
// =============================================================================

type OperationType string

const (
	OpBulkAdd       OperationType = "bulk_add"
	OpBulkRemove    OperationType = "bulk_remove"
	OpApplyTemplate OperationType = "apply_template"
)

// =============================================================================
// CHANGE SET - Tagged union of what a bulk operation did
// =============================================================================

type changeKind int

const (
	changeAdded changeKind = iota
	changeRemoved
)

// ChangeSet records what a bulk operation did to storage: either the
// IDs of rows it added, or snapshots of rows it removed. Exactly one
// side exists by construction.
type ChangeSet struct {
	kind    changeKind
	added   []string
	removed []Assignment
}

func AddedChange(ids []string) ChangeSet {
	return ChangeSet{kind: changeAdded, added: ids}
}

func RemovedChange(snapshots []Assignment) ChangeSet {
	return ChangeSet{kind: changeRemoved, removed: snapshots}
}

// Added returns the created IDs if this is an add-side change.
func (c ChangeSet) Added() ([]string, bool) {
	if c.kind != changeAdded {
		return nil, false
	}
	return c.added, true
}

// Removed returns the deleted-row snapshots if this is a remove-side change.
func (c ChangeSet) Removed() ([]Assignment, bool) {
	if c.kind != changeRemoved {
		return nil, false
	}
	return c.removed, true
}

// =============================================================================
// JOURNAL ENTRY
// =============================================================================

type ChangeHistoryEntry struct {
	ID          string
	Operation   OperationType
	Description string

	AffectedStart calendar.Date
	AffectedEnd   calendar.Date

	Change ChangeSet

	// RedoAssignments are the exact insert payloads of an add-side
	// operation, kept so an undo-then-redo can replay without
	// re-deriving the pattern.
	RedoAssignments []Assignment

	IsUndone bool
	UndoneAt *time.Time
	IsRedone bool
	RedoneAt *time.Time

	// Metadata carries the operation parameters (provider, pattern,
	// service) for display and for scoping the undo conflict scan.
	Metadata map[string]string

	CreatedAt time.Time
}

// =============================================================================
// UNDO / REDO RESULTS
// =============================================================================

type UndoResult struct {
	DeletedCount  int
	RestoredCount int
}

type UndoConflictType string

const (
	ConflictDeletedSince UndoConflictType = "deleted_since"
	ConflictAddedSince   UndoConflictType = "added_since"
)

type UndoConflict struct {
	Type         UndoConflictType
	AssignmentID string
	Description  string
}

// ConflictReport is returned instead of mutating anything when the
// scan finds concurrent edits. Not an error: the caller re-issues the
// undo with force after user confirmation.
type ConflictReport struct {
	Conflicts []UndoConflict
}

// =============================================================================
// HISTORY MANAGER
// =============================================================================

type HistoryManager struct {
	Assignments AssignmentStore
	History     HistoryStore
	Log         *zap.Logger
}

func NewHistoryManager(assignments AssignmentStore, history HistoryStore, log *zap.Logger) *HistoryManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &HistoryManager{Assignments: assignments, History: history, Log: log}
}

// Undo reverses a recorded bulk operation. Without force, a conflict
// scan runs first and a non-nil ConflictReport means nothing was
// mutated. Row-level restore failures are logged and skipped.
func (m *HistoryManager) Undo(ctx context.Context, historyID string, force bool) (*UndoResult, *ConflictReport, error) {
	entry, err := m.History.GetEntry(ctx, historyID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, ErrEntryNotFound
	}
	if entry.IsUndone {
		return nil, nil, fmt.Errorf("%w: %s", ErrAlreadyUndone, historyID)
	}

	if !force {
		conflicts, err := m.scanUndoConflicts(ctx, entry)
		if err != nil {
			return nil, nil, err
		}
		if len(conflicts) > 0 {
			return nil, &ConflictReport{Conflicts: conflicts}, nil
		}
	}

	result := &UndoResult{}

	if ids, ok := entry.Change.Added(); ok {
		// Reverse an add by deleting what it created; rows manually
		// deleted in the interim are tolerated.
		n, err := m.Assignments.DeleteAssignments(ctx, ids)
		if err != nil {
			return nil, nil, err
		}
		result.DeletedCount = n
	}

	if snapshots, ok := entry.Change.Removed(); ok {
		// Reverse a remove by re-inserting the snapshots under their
		// original IDs so a later redo can target the same rows.
		for _, a := range snapshots {
			if err := m.Assignments.UpsertAssignment(ctx, a); err != nil {
				m.Log.Warn("undo: failed to restore assignment",
					zap.String("history_id", historyID),
					zap.String("assignment_id", a.ID),
					zap.Error(err))
				continue
			}
			result.RestoredCount++
		}
	}

	if err := m.History.MarkUndone(ctx, historyID, time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}

// scanUndoConflicts finds edits since the operation that make a blind
// rollback unsafe: created rows that have since been deleted, and rows
// in the affected range that belong to neither side of the journal
// entry. The range scan deliberately covers every provider: a slot
// freed by a bulk remove may have been given to someone else since,
// and restoring the snapshot over it would double-book the slot.
func (m *HistoryManager) scanUndoConflicts(ctx context.Context, entry *ChangeHistoryEntry) ([]UndoConflict, error) {
	var conflicts []UndoConflict

	known := make(map[string]bool)
	if ids, ok := entry.Change.Added(); ok {
		for _, id := range ids {
			known[id] = true
			a, err := m.Assignments.GetAssignment(ctx, id)
			if err != nil {
				return nil, err
			}
			if a == nil {
				conflicts = append(conflicts, UndoConflict{
					Type:         ConflictDeletedSince,
					AssignmentID: id,
					Description:  fmt.Sprintf("assignment %s was deleted after this operation", id),
				})
			}
		}
	}
	if snapshots, ok := entry.Change.Removed(); ok {
		for _, a := range snapshots {
			known[a.ID] = true
		}
	}

	start, end := entry.AffectedStart, entry.AffectedEnd
	existing, err := m.Assignments.ListAssignments(ctx, AssignmentFilter{From: &start, To: &end})
	if err != nil {
		return nil, err
	}
	for _, a := range existing {
		if known[a.ID] {
			continue
		}
		conflicts = append(conflicts, UndoConflict{
			Type:         ConflictAddedSince,
			AssignmentID: a.ID,
			Description:  fmt.Sprintf("assignment %s on %s was added after this operation", a.ID, a.Date),
		})
	}
	return conflicts, nil
}

// Redo replays an undone operation using the journaled payloads. The
// symmetry of the entry's fields makes this the mirror image of Undo.
func (m *HistoryManager) Redo(ctx context.Context, historyID string, force bool) (*UndoResult, *ConflictReport, error) {
	entry, err := m.History.GetEntry(ctx, historyID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, ErrEntryNotFound
	}
	if !entry.IsUndone {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotUndone, historyID)
	}

	result := &UndoResult{}

	if _, ok := entry.Change.Added(); ok {
		// Replay an add from the journaled insert payloads.
		if !force {
			var conflicts []UndoConflict
			for _, a := range entry.RedoAssignments {
				existing, err := m.Assignments.GetAssignment(ctx, a.ID)
				if err != nil {
					return nil, nil, err
				}
				if existing != nil {
					conflicts = append(conflicts, UndoConflict{
						Type:         ConflictAddedSince,
						AssignmentID: a.ID,
						Description:  fmt.Sprintf("assignment %s was recreated after the undo", a.ID),
					})
				}
			}
			if len(conflicts) > 0 {
				return nil, &ConflictReport{Conflicts: conflicts}, nil
			}
		}
		for _, a := range entry.RedoAssignments {
			if err := m.Assignments.UpsertAssignment(ctx, a); err != nil {
				m.Log.Warn("redo: failed to recreate assignment",
					zap.String("history_id", historyID),
					zap.String("assignment_id", a.ID),
					zap.Error(err))
				continue
			}
			result.RestoredCount++
		}
	}

	if snapshots, ok := entry.Change.Removed(); ok {
		// Replay a remove by deleting the restored rows again.
		ids := make([]string, len(snapshots))
		for i, a := range snapshots {
			ids[i] = a.ID
		}
		n, err := m.Assignments.DeleteAssignments(ctx, ids)
		if err != nil {
			return nil, nil, err
		}
		result.DeletedCount = n
	}

	if err := m.History.MarkRedone(ctx, historyID, time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	return result, nil, nil
}
