/*
bulk.go - Bulk mutation planning and alternating templates

PURPOSE:
  Expands a pattern (all dates, or a specific weekday, optionally
  narrowed to one time-block and service) over a date range into
  concrete add/remove operations with preview/confirm semantics, and
  applies alternating weekly templates.

DUPLICATE SKIPPING:
  The add path checks each exact (date, service, block) triple and
  skips existing rows rather than overwriting. The check is a read
  followed by a later batch insert; the window between them is not
  atomic. Re-running the same add is therefore idempotent in effect
  but not guaranteed under concurrent writers.

JOURNALING:
  Every committed bulk mutation writes one ChangeHistoryEntry:
  removals carry full row snapshots, additions carry the created IDs
  plus the exact insert payloads for redo. Clear-then-apply journals
  the clear and the apply as two entries, keeping each entry
  single-sided.
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// BULK REQUESTS
// =============================================================================

type BulkAction string

const (
	ActionAdd    BulkAction = "add"
	ActionRemove BulkAction = "remove"
)

type PatternType string

const (
	// PatternAll matches every date in the range.
	PatternAll PatternType = "all"
	// PatternWeekday matches one weekday, recurring.
	PatternWeekday PatternType = "weekday"
)

type BulkPattern struct {
	Type      PatternType
	Weekday   time.Weekday // when Type == PatternWeekday
	TimeBlock *calendar.TimeBlock
	ServiceID string // required for add; optional filter for remove
}

type BulkRequest struct {
	ProviderID string
	Action     BulkAction
	Pattern    BulkPattern
	StartDate  calendar.Date
	EndDate    calendar.Date
	Preview    bool
	RoomCount  int
}

type SkippedSlot struct {
	Date      calendar.Date
	ServiceID string
	TimeBlock calendar.TimeBlock
	Reason    string
}

type BulkResult struct {
	Preview       bool
	AffectedCount int
	Assignments   []Assignment
	Skipped       []SkippedSlot
	HistoryID     string
}

// =============================================================================
// PLANNER
// =============================================================================

type BulkPlanner struct {
	Assignments AssignmentStore
	Services    ServiceStore
	Templates   TemplateStore
	History     HistoryStore
	Log         *zap.Logger

	// HolidayExemptServices overrides the default holiday allow-list
	// when non-nil.
	HolidayExemptServices []string
}

func NewBulkPlanner(store Store, log *zap.Logger) *BulkPlanner {
	if log == nil {
		log = zap.NewNop()
	}
	return &BulkPlanner{
		Assignments: store,
		Services:    store,
		Templates:   store,
		History:     store,
		Log:         log,
	}
}

// PlanBulk previews or commits one bulk provider operation. Preview
// mode returns exactly the set a commit would mutate, without
// mutating.
func (p *BulkPlanner) PlanBulk(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	if err := validateBulkRequest(&req); err != nil {
		return nil, err
	}
	switch req.Action {
	case ActionRemove:
		return p.planRemove(ctx, req)
	default:
		return p.planAdd(ctx, req)
	}
}

func validateBulkRequest(req *BulkRequest) error {
	if req.ProviderID == "" {
		return &ValidationError{Field: "provider_id", Message: "required"}
	}
	switch req.Action {
	case ActionAdd, ActionRemove:
	default:
		return &ValidationError{Field: "action", Message: "must be add or remove"}
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return &ValidationError{Field: "date_range", Message: "start and end dates are required"}
	}
	if req.EndDate.Before(req.StartDate) {
		return &ValidationError{Field: "date_range", Message: "end date before start date"}
	}
	switch req.Pattern.Type {
	case PatternAll, PatternWeekday:
	default:
		return &ValidationError{Field: "pattern", Message: "must be all or weekday"}
	}
	if req.Action == ActionAdd && req.Pattern.ServiceID == "" {
		return &ValidationError{Field: "service_id", Message: "required for bulk add"}
	}
	return nil
}

// planRemove matches existing assignments against the pattern, then
// either returns the match set (preview) or deletes it and journals
// the snapshots.
func (p *BulkPlanner) planRemove(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	matched, err := p.Assignments.ListAssignments(ctx, AssignmentFilter{
		ProviderID: req.ProviderID,
		ServiceID:  req.Pattern.ServiceID,
		TimeBlock:  req.Pattern.TimeBlock,
		From:       &req.StartDate,
		To:         &req.EndDate,
	})
	if err != nil {
		return nil, err
	}
	if req.Pattern.Type == PatternWeekday {
		filtered := matched[:0]
		for _, a := range matched {
			if a.Date.Weekday() == req.Pattern.Weekday {
				filtered = append(filtered, a)
			}
		}
		matched = filtered
	}

	result := &BulkResult{
		Preview:       req.Preview,
		AffectedCount: len(matched),
		Assignments:   matched,
	}
	if req.Preview || len(matched) == 0 {
		return result, nil
	}

	ids := make([]string, len(matched))
	for i, a := range matched {
		ids[i] = a.ID
	}
	if _, err := p.Assignments.DeleteAssignments(ctx, ids); err != nil {
		return nil, err
	}

	entry := ChangeHistoryEntry{
		ID:            uuid.NewString(),
		Operation:     OpBulkRemove,
		Description:   describeBulk(req, len(matched)),
		AffectedStart: req.StartDate,
		AffectedEnd:   req.EndDate,
		Change:        RemovedChange(matched),
		Metadata:      bulkMetadata(req),
		CreatedAt:     time.Now().UTC(),
	}
	if err := p.History.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	result.HistoryID = entry.ID
	return result, nil
}

// planAdd expands the pattern into concrete dates, skips triples that
// already exist, and batch-inserts the remainder.
func (p *BulkPlanner) planAdd(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	service, err := p.Services.GetService(ctx, req.Pattern.ServiceID)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, ErrServiceNotFound
	}

	block := service.TimeBlock
	if req.Pattern.TimeBlock != nil {
		block = *req.Pattern.TimeBlock
	}

	result := &BulkResult{Preview: req.Preview}
	var planned []Assignment
	for d := req.StartDate; d.BeforeOrEqual(req.EndDate); d = d.AddDays(1) {
		if req.Pattern.Type == PatternWeekday && d.Weekday() != req.Pattern.Weekday {
			continue
		}
		exists, err := p.Assignments.AssignmentExists(ctx, d, service.ID, block)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Skipped = append(result.Skipped, SkippedSlot{
				Date: d, ServiceID: service.ID, TimeBlock: block,
				Reason: "assignment already exists",
			})
			continue
		}
		planned = append(planned, Assignment{
			Date:       d,
			ServiceID:  service.ID,
			ProviderID: req.ProviderID,
			TimeBlock:  block,
			RoomCount:  req.RoomCount,
		})
	}

	result.AffectedCount = len(planned)
	result.Assignments = planned
	if req.Preview || len(planned) == 0 {
		return result, nil
	}

	now := time.Now().UTC()
	ids := make([]string, len(planned))
	for i := range planned {
		planned[i].ID = uuid.NewString()
		planned[i].CreatedAt = now
		ids[i] = planned[i].ID
	}
	if err := p.Assignments.InsertAssignments(ctx, planned); err != nil {
		return nil, err
	}

	entry := ChangeHistoryEntry{
		ID:              uuid.NewString(),
		Operation:       OpBulkAdd,
		Description:     describeBulk(req, len(planned)),
		AffectedStart:   req.StartDate,
		AffectedEnd:     req.EndDate,
		Change:          AddedChange(ids),
		RedoAssignments: planned,
		Metadata:        bulkMetadata(req),
		CreatedAt:       now,
	}
	if err := p.History.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	result.Assignments = planned
	result.HistoryID = entry.ID
	return result, nil
}

func describeBulk(req BulkRequest, n int) string {
	pattern := "all dates"
	if req.Pattern.Type == PatternWeekday {
		pattern = "every " + req.Pattern.Weekday.String()
		if req.Pattern.TimeBlock != nil {
			pattern += " " + string(*req.Pattern.TimeBlock)
		}
	}
	return fmt.Sprintf("Bulk %s for provider %s (%s), %s to %s: %d assignments",
		req.Action, req.ProviderID, pattern, req.StartDate, req.EndDate, n)
}

func bulkMetadata(req BulkRequest) map[string]string {
	m := map[string]string{
		"provider_id": req.ProviderID,
		"action":      string(req.Action),
		"pattern":     string(req.Pattern.Type),
	}
	if req.Pattern.Type == PatternWeekday {
		m["weekday"] = req.Pattern.Weekday.String()
	}
	if req.Pattern.ServiceID != "" {
		m["service_id"] = req.Pattern.ServiceID
	}
	if req.Pattern.TimeBlock != nil {
		m["time_block"] = string(*req.Pattern.TimeBlock)
	}
	return m
}

// =============================================================================
// ALTERNATING WEEKLY TEMPLATES
// =============================================================================

// TemplateSlot is one recurring slot in a weekly template.
type TemplateSlot struct {
	DayOfWeek  time.Weekday
	TimeBlock  calendar.TimeBlock
	ServiceID  string
	ProviderID string
	RoomCount  int
}

// WeekTemplate is a named weekly rota pattern.
type WeekTemplate struct {
	ID    string
	Name  string
	Slots []TemplateSlot
}

// AlternatingRequest applies templates over a range. IndexPattern
// selects which template covers each successive week, e.g. [0,1]
// alternates the first and second templates weekly.
type AlternatingRequest struct {
	TemplateIDs  []string
	IndexPattern []int
	StartDate    calendar.Date
	EndDate      calendar.Date
	ClearFirst   bool
}

type AlternatingResult struct {
	CreatedCount     int
	ClearedCount     int
	HolidaySkipped   []SkippedSlot
	DuplicateSkipped []SkippedSlot
	HistoryIDs       []string
}

// ApplyAlternating expands the templates over the range. Existing
// triples are skipped when not clearing first; holiday slots are
// skipped (and reported separately) unless the service is on the
// inpatient holiday allow-list.
func (p *BulkPlanner) ApplyAlternating(ctx context.Context, req AlternatingRequest) (*AlternatingResult, error) {
	if len(req.TemplateIDs) == 0 {
		return nil, &ValidationError{Field: "template_ids", Message: "at least one template is required"}
	}
	if len(req.IndexPattern) == 0 {
		return nil, &ValidationError{Field: "index_pattern", Message: "required"}
	}
	for _, idx := range req.IndexPattern {
		if idx < 0 || idx >= len(req.TemplateIDs) {
			return nil, &ValidationError{Field: "index_pattern", Message: fmt.Sprintf("index %d out of range", idx)}
		}
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
		return nil, &ValidationError{Field: "date_range", Message: "invalid range"}
	}

	templates := make([]*WeekTemplate, len(req.TemplateIDs))
	serviceIDs := make(map[string]bool)
	for i, id := range req.TemplateIDs {
		t, err := p.Templates.GetTemplate(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, fmt.Errorf("template %s: %w", id, ErrEntryNotFound)
		}
		templates[i] = t
		for _, slot := range t.Slots {
			serviceIDs[slot.ServiceID] = true
		}
	}

	serviceNames := make(map[string]string, len(serviceIDs))
	for id := range serviceIDs {
		svc, err := p.Services.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		if svc == nil {
			return nil, fmt.Errorf("service %s referenced by template: %w", id, ErrServiceNotFound)
		}
		serviceNames[id] = svc.Name
	}

	result := &AlternatingResult{}
	now := time.Now().UTC()

	if req.ClearFirst {
		historyID, cleared, err := p.clearTemplateRange(ctx, req, serviceIDs, now)
		if err != nil {
			return nil, err
		}
		result.ClearedCount = cleared
		if historyID != "" {
			result.HistoryIDs = append(result.HistoryIDs, historyID)
		}
	}

	// Week 0 is the week containing the start date (Sunday-anchored).
	anchor := req.StartDate.AddDays(-int(req.StartDate.Weekday()))

	var planned []Assignment
	for d := req.StartDate; d.BeforeOrEqual(req.EndDate); d = d.AddDays(1) {
		week := calendar.DaysBetween(anchor, d) / 7
		tpl := templates[req.IndexPattern[week%len(req.IndexPattern)]]
		for _, slot := range tpl.Slots {
			if slot.DayOfWeek != d.Weekday() {
				continue
			}
			if h := calendar.IsHoliday(d); h != nil && !isHolidayExempt(p.HolidayExemptServices, serviceNames[slot.ServiceID]) {
				result.HolidaySkipped = append(result.HolidaySkipped, SkippedSlot{
					Date: d, ServiceID: slot.ServiceID, TimeBlock: slot.TimeBlock,
					Reason: "holiday: " + h.Name,
				})
				continue
			}
			if !req.ClearFirst {
				exists, err := p.Assignments.AssignmentExists(ctx, d, slot.ServiceID, slot.TimeBlock)
				if err != nil {
					return nil, err
				}
				if exists {
					result.DuplicateSkipped = append(result.DuplicateSkipped, SkippedSlot{
						Date: d, ServiceID: slot.ServiceID, TimeBlock: slot.TimeBlock,
						Reason: "assignment already exists",
					})
					continue
				}
			}
			planned = append(planned, Assignment{
				ID:         uuid.NewString(),
				Date:       d,
				ServiceID:  slot.ServiceID,
				ProviderID: slot.ProviderID,
				TimeBlock:  slot.TimeBlock,
				RoomCount:  slot.RoomCount,
				CreatedAt:  now,
			})
		}
	}

	result.CreatedCount = len(planned)
	if len(planned) == 0 {
		return result, nil
	}
	if err := p.Assignments.InsertAssignments(ctx, planned); err != nil {
		return nil, err
	}

	ids := make([]string, len(planned))
	for i, a := range planned {
		ids[i] = a.ID
	}
	entry := ChangeHistoryEntry{
		ID:        uuid.NewString(),
		Operation: OpApplyTemplate,
		Description: fmt.Sprintf("Applied %d alternating templates, %s to %s: %d assignments",
			len(req.TemplateIDs), req.StartDate, req.EndDate, len(planned)),
		AffectedStart:   req.StartDate,
		AffectedEnd:     req.EndDate,
		Change:          AddedChange(ids),
		RedoAssignments: planned,
		Metadata: map[string]string{
			"template_count": fmt.Sprintf("%d", len(req.TemplateIDs)),
			"cleared_first":  fmt.Sprintf("%t", req.ClearFirst),
		},
		CreatedAt: now,
	}
	if err := p.History.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}
	result.HistoryIDs = append(result.HistoryIDs, entry.ID)
	return result, nil
}

// clearTemplateRange removes existing assignments for the templates'
// services in the range, journaled as its own remove entry.
func (p *BulkPlanner) clearTemplateRange(ctx context.Context, req AlternatingRequest, serviceIDs map[string]bool, now time.Time) (string, int, error) {
	existing, err := p.Assignments.ListAssignments(ctx, AssignmentFilter{
		From: &req.StartDate,
		To:   &req.EndDate,
	})
	if err != nil {
		return "", 0, err
	}
	var toClear []Assignment
	for _, a := range existing {
		if serviceIDs[a.ServiceID] {
			toClear = append(toClear, a)
		}
	}
	if len(toClear) == 0 {
		return "", 0, nil
	}

	ids := make([]string, len(toClear))
	for i, a := range toClear {
		ids[i] = a.ID
	}
	if _, err := p.Assignments.DeleteAssignments(ctx, ids); err != nil {
		return "", 0, err
	}
	entry := ChangeHistoryEntry{
		ID:        uuid.NewString(),
		Operation: OpBulkRemove,
		Description: fmt.Sprintf("Cleared %d assignments before template apply, %s to %s",
			len(toClear), req.StartDate, req.EndDate),
		AffectedStart: req.StartDate,
		AffectedEnd:   req.EndDate,
		Change:        RemovedChange(toClear),
		Metadata:      map[string]string{"cleared_for_template": "true"},
		CreatedAt:     now,
	}
	if err := p.History.AppendEntry(ctx, entry); err != nil {
		return "", 0, err
	}
	return entry.ID, len(toClear), nil
}

// isHolidayExempt checks a service name against the holiday allow-list.
func isHolidayExempt(overrides []string, name string) bool {
	exempt := overrides
	if exempt == nil {
		exempt = DefaultHolidayExemptServices
	}
	for _, n := range exempt {
		if n == name {
			return true
		}
	}
	return false
}
