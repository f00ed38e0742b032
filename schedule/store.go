/*
store.go - Persistence interfaces for the scheduling engine

PURPOSE:
  Defines the boundary between the engine and the datastore. The
  engine issues bounded sequences of reads and writes per request; no
  application-level transaction wraps check-then-insert, so the
  conflict checks narrow but do not close the race window between two
  concurrent writers. That gap is deliberate (see package comment).

INTERFACES:
  AssignmentStore: schedule assignment rows
  ProviderStore:   clinical staff
  ServiceStore:    bookable activities
  RuleStore:       availability allow/block rules
  PTOStore:        requests, leaves, allowance config
  TemplateStore:   weekly rota templates
  HistoryStore:    the reversible change journal
  Store:           all of the above (what the API layer holds)

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - schedule/store: in-memory, for tests and dev
*/
package schedule

import (
	"context"
	"time"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// ASSIGNMENTS
// =============================================================================

// AssignmentFilter narrows assignment queries. Nil/empty fields match
// everything.
type AssignmentFilter struct {
	ProviderID string
	ServiceID  string
	TimeBlock  *calendar.TimeBlock
	From       *calendar.Date
	To         *calendar.Date
	IsPTO      *bool
}

type AssignmentStore interface {
	// InsertAssignment writes one assignment row.
	InsertAssignment(ctx context.Context, a Assignment) error

	// InsertAssignments writes a batch in a single statement where the
	// backend allows, shrinking (not closing) the duplicate-check race.
	InsertAssignments(ctx context.Context, as []Assignment) error

	// UpsertAssignment inserts or replaces by ID. Used by undo/redo to
	// restore snapshot rows under their original IDs.
	UpsertAssignment(ctx context.Context, a Assignment) error

	GetAssignment(ctx context.Context, id string) (*Assignment, error)

	// DeleteAssignment removes a row; returns false if it was already
	// gone (undo tolerates manually deleted rows).
	DeleteAssignment(ctx context.Context, id string) (bool, error)

	// DeleteAssignments removes a batch by ID, returning how many rows
	// actually existed.
	DeleteAssignments(ctx context.Context, ids []string) (int, error)

	ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error)

	// AssignmentExists checks the exact (date, service, block) triple.
	// Used by bulk add duplicate-skipping; the check is advisory and
	// not atomic with the subsequent insert.
	AssignmentExists(ctx context.Context, date calendar.Date, serviceID string, block calendar.TimeBlock) (bool, error)
}

// =============================================================================
// PROVIDERS AND SERVICES
// =============================================================================

type ProviderStore interface {
	SaveProvider(ctx context.Context, p Provider) error
	GetProvider(ctx context.Context, id string) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)
	DeleteProvider(ctx context.Context, id string) error
}

type ServiceStore interface {
	SaveService(ctx context.Context, s Service) error
	GetService(ctx context.Context, id string) (*Service, error)
	ListServices(ctx context.Context) ([]Service, error)
	DeleteService(ctx context.Context, id string) error
}

// =============================================================================
// AVAILABILITY RULES
// =============================================================================

type RuleStore interface {
	SaveRule(ctx context.Context, r AvailabilityRule) error
	DeleteRule(ctx context.Context, id string) error

	// ListRulesForPair returns all rules for one (provider, service) pair.
	ListRulesForPair(ctx context.Context, providerID, serviceID string) ([]AvailabilityRule, error)

	// ListRulesForSets pre-fetches rules for the given provider and
	// service ID sets in one pass, for bulk evaluation.
	ListRulesForSets(ctx context.Context, providerIDs, serviceIDs []string) ([]AvailabilityRule, error)
}

// =============================================================================
// PTO
// =============================================================================

type PTORequestFilter struct {
	ProviderID string
	Status     *RequestStatus
	// OverlapFrom/OverlapTo match requests whose range intersects
	// [OverlapFrom, OverlapTo].
	OverlapFrom *calendar.Date
	OverlapTo   *calendar.Date
}

type PTOStore interface {
	SavePTORequest(ctx context.Context, r PTORequest) error
	GetPTORequest(ctx context.Context, id string) (*PTORequest, error)
	ListPTORequests(ctx context.Context, f PTORequestFilter) ([]PTORequest, error)
	DeletePTORequest(ctx context.Context, id string) (bool, error)

	// DeletePTORequestsCovering removes requests of one provider whose
	// range covers the date. Cascade path when a PTO assignment is
	// deleted.
	DeletePTORequestsCovering(ctx context.Context, providerID string, date calendar.Date) (int, error)

	SaveLeave(ctx context.Context, l ProviderLeave) error
	ListLeavesOverlapping(ctx context.Context, from, to calendar.Date) ([]ProviderLeave, error)
	DeleteLeavesCovering(ctx context.Context, providerID string, date calendar.Date) (int, error)

	GetPTOConfig(ctx context.Context, providerID string, year int) (*ProviderPTOConfig, error)
	SavePTOConfig(ctx context.Context, c ProviderPTOConfig) error
	GetRoleDefault(ctx context.Context, role Role) (*PTORoleDefault, error)
	SaveRoleDefault(ctx context.Context, d PTORoleDefault) error
}

// =============================================================================
// WEEK TEMPLATES
// =============================================================================

type TemplateStore interface {
	SaveTemplate(ctx context.Context, t WeekTemplate) error
	GetTemplate(ctx context.Context, id string) (*WeekTemplate, error)
	ListTemplates(ctx context.Context) ([]WeekTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

// =============================================================================
// CHANGE HISTORY
// =============================================================================

type HistoryStore interface {
	// AppendEntry records one bulk mutation. The journal is append-only
	// apart from the undo/redo flag flips below.
	AppendEntry(ctx context.Context, e ChangeHistoryEntry) error

	GetEntry(ctx context.Context, id string) (*ChangeHistoryEntry, error)

	// ListEntries returns the newest entries first.
	ListEntries(ctx context.Context, limit int) ([]ChangeHistoryEntry, error)

	// MarkUndone flips is_undone on and clears is_redone.
	MarkUndone(ctx context.Context, id string, at time.Time) error

	// MarkRedone flips is_redone on and clears is_undone.
	MarkRedone(ctx context.Context, id string, at time.Time) error
}

// =============================================================================
// COMPOSITE
// =============================================================================

// Store is everything the API layer needs. Both the SQLite store and
// the in-memory store satisfy it.
type Store interface {
	AssignmentStore
	ProviderStore
	ServiceStore
	RuleStore
	PTOStore
	TemplateStore
	HistoryStore
}
