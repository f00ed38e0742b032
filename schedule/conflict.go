/*
conflict.go - Assignment creation and deletion pipeline

PURPOSE:
  The write path for single assignments. In order:
    1. Holiday gate: holidays are closed except for the designated
       inpatient services.
    2. PTO overlap gate: existing PTO in an intersecting block rejects
       a new work assignment; a new PTO entry over existing work is
       allowed with a warning (a human resolves the overlap).
    3. Availability gate: hard rules reject unless the caller
       overrides; warn rules are assumed already confirmed upstream.
    4. Insert, then best-effort PTO sync: a PTO assignment mirrors
       into a pre-approved PTORequest and a ProviderLeave so leave
       surfaces in balance and calendar views. Sync failures are
       logged, never rolled back.

  Deletion snapshots whether the row was PTO and cascades the mirrored
  request/leave rows afterwards.
*/
package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/schedule-engine/calendar"
)

// DefaultHolidayExemptServices are the service names allowed to run on
// holidays. Inpatient coverage does not stop for a long weekend.
var DefaultHolidayExemptServices = []string{
	"Inpatient",
	"Inpatient Consult",
	"NICU",
}

// ptoServiceName marks legacy rows whose PTO-ness lives in the service
// name rather than the is_pto flag.
const ptoServiceName = "PTO"

// =============================================================================
// SCHEDULER
// =============================================================================

type Scheduler struct {
	Assignments  AssignmentStore
	Services     ServiceStore
	Providers    ProviderStore
	PTO          PTOStore
	Availability *Evaluator
	Log          *zap.Logger

	// HolidayExemptServices overrides the default holiday allow-list
	// when non-nil.
	HolidayExemptServices []string
}

func NewScheduler(store Store, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Assignments:  store,
		Services:     store,
		Providers:    store,
		PTO:          store,
		Availability: NewEvaluator(store),
		Log:          log,
	}
}

func (s *Scheduler) holidayExempt(serviceName string) bool {
	return isHolidayExempt(s.HolidayExemptServices, serviceName)
}

// CreateOptions tune the conflict pipeline. OverrideAvailability skips
// the availability gate entirely (explicit admin override).
type CreateOptions struct {
	OverrideAvailability bool
}

// CreateResult is a successful creation plus any advisory warnings.
type CreateResult struct {
	Assignment Assignment
	Warnings   []Warning
}

// CreateAssignment validates and inserts one assignment. Expected
// rejections come back as policy errors (see errors.go); warnings
// never block.
func (s *Scheduler) CreateAssignment(ctx context.Context, a Assignment, opts CreateOptions) (*CreateResult, error) {
	if err := validateAssignment(&a); err != nil {
		return nil, err
	}

	provider, err := s.Providers.GetProvider(ctx, a.ProviderID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}
	service, err := s.Services.GetService(ctx, a.ServiceID)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, ErrServiceNotFound
	}
	if service.RequiredCapability != "" && !provider.HasCapability(service.RequiredCapability) {
		return nil, &CapabilityError{
			ProviderID: a.ProviderID,
			ServiceID:  a.ServiceID,
			Capability: service.RequiredCapability,
		}
	}

	// 1. Holiday gate.
	if h := calendar.IsHoliday(a.Date); h != nil && !s.holidayExempt(service.Name) {
		return nil, &HolidayError{Date: a.Date, Holiday: h.Name, Service: service.Name}
	}

	// 2. PTO overlap gate.
	warnings, err := s.checkPTOOverlap(ctx, &a)
	if err != nil {
		return nil, err
	}

	// 3. Availability gate. Warn-level violations were already
	// confirmed by the caller's UI and do not block here.
	if !opts.OverrideAvailability {
		res, err := s.Availability.CheckAvailability(ctx, a.ProviderID, a.ServiceID, a.Date, a.TimeBlock)
		if err != nil {
			return nil, err
		}
		if !res.Allowed && res.Enforcement == EnforceHard {
			return nil, &AvailabilityError{
				ProviderID: a.ProviderID,
				ServiceID:  a.ServiceID,
				Date:       a.Date,
				TimeBlock:  a.TimeBlock,
				Reason:     res.Reason,
			}
		}
		if !res.Allowed {
			warnings = append(warnings, Warning{
				Type:    WarnAvailability,
				Message: res.Reason,
			})
		}
	}

	// 4. Insert, then sync.
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if err := s.Assignments.InsertAssignment(ctx, a); err != nil {
		return nil, err
	}

	if a.IsPTO || service.Name == ptoServiceName {
		s.syncPTO(ctx, a, provider)
	}

	return &CreateResult{Assignment: a, Warnings: warnings}, nil
}

// checkPTOOverlap inspects the provider's existing assignments on the
// same date whose blocks intersect the proposed one. Existing PTO
// rejects new work; existing work under new PTO is a warning only.
func (s *Scheduler) checkPTOOverlap(ctx context.Context, a *Assignment) ([]Warning, error) {
	date := a.Date
	existing, err := s.Assignments.ListAssignments(ctx, AssignmentFilter{
		ProviderID: a.ProviderID,
		From:       &date,
		To:         &date,
	})
	if err != nil {
		return nil, err
	}

	var warnings []Warning
	for _, e := range existing {
		if !e.TimeBlock.Intersects(a.TimeBlock) {
			continue
		}
		existingPTO := e.IsPTO
		if !existingPTO {
			svc, err := s.Services.GetService(ctx, e.ServiceID)
			if err != nil {
				return nil, err
			}
			if svc != nil && svc.Name == ptoServiceName {
				existingPTO = true
			}
		}
		switch {
		case existingPTO && !a.IsPTO:
			return nil, &PTOConflictError{
				ProviderID: a.ProviderID,
				Date:       a.Date,
				TimeBlock:  a.TimeBlock,
				ExistingID: e.ID,
			}
		case a.IsPTO && !existingPTO:
			warnings = append(warnings, Warning{
				Type:    WarnWorkPTOOverlap,
				Message: "provider already has a work assignment in this slot; it will need to be reassigned",
			})
		}
	}
	return warnings, nil
}

// syncPTO mirrors a PTO assignment into a pre-approved request and a
// leave interval. Best-effort: the assignment already exists, so
// failures here are logged and tolerated rather than rolled back.
func (s *Scheduler) syncPTO(ctx context.Context, a Assignment, provider *Provider) {
	now := time.Now().UTC()
	req := PTORequest{
		ID:           uuid.NewString(),
		ProviderID:   a.ProviderID,
		StartDate:    a.Date,
		EndDate:      a.Date,
		LeaveType:    LeaveVacation,
		TimeBlock:    a.TimeBlock,
		Status:       StatusApproved,
		RequestedBy:  a.ProviderID,
		ReviewerName: "schedule sync",
		CreatedAt:    now,
		ReviewedAt:   &now,
	}
	if err := s.PTO.SavePTORequest(ctx, req); err != nil {
		s.Log.Warn("pto sync: failed to mirror request",
			zap.String("assignment_id", a.ID),
			zap.String("provider_id", a.ProviderID),
			zap.Error(err))
	}
	leave := ProviderLeave{
		ID:         uuid.NewString(),
		ProviderID: a.ProviderID,
		StartDate:  a.Date,
		EndDate:    a.Date,
		LeaveType:  LeaveVacation,
		Reason:     "scheduled PTO (" + provider.Initials + ")",
	}
	if err := s.PTO.SaveLeave(ctx, leave); err != nil {
		s.Log.Warn("pto sync: failed to mirror leave",
			zap.String("assignment_id", a.ID),
			zap.String("provider_id", a.ProviderID),
			zap.Error(err))
	}
}

// DeleteResult reports a deletion and its PTO cascade.
type DeleteResult struct {
	CascadedRequests int
	CascadedLeaves   int
}

// DeleteAssignment removes an assignment, cascading the mirrored PTO
// rows when the deleted row was a PTO entry.
func (s *Scheduler) DeleteAssignment(ctx context.Context, id string) (*DeleteResult, error) {
	a, err := s.Assignments.GetAssignment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAssignmentNotFound
	}

	wasPTO := a.IsPTO
	if !wasPTO {
		svc, err := s.Services.GetService(ctx, a.ServiceID)
		if err != nil {
			return nil, err
		}
		if svc != nil && svc.Name == ptoServiceName {
			wasPTO = true
		}
	}

	if _, err := s.Assignments.DeleteAssignment(ctx, id); err != nil {
		return nil, err
	}

	result := &DeleteResult{}
	if wasPTO {
		n, err := s.PTO.DeletePTORequestsCovering(ctx, a.ProviderID, a.Date)
		if err != nil {
			s.Log.Warn("pto cascade: failed to delete mirrored requests",
				zap.String("assignment_id", id), zap.Error(err))
		}
		result.CascadedRequests = n
		n, err = s.PTO.DeleteLeavesCovering(ctx, a.ProviderID, a.Date)
		if err != nil {
			s.Log.Warn("pto cascade: failed to delete mirrored leaves",
				zap.String("assignment_id", id), zap.Error(err))
		}
		result.CascadedLeaves = n
	}
	return result, nil
}

func validateAssignment(a *Assignment) error {
	if a.ProviderID == "" {
		return &ValidationError{Field: "provider_id", Message: "required"}
	}
	if a.ServiceID == "" {
		return &ValidationError{Field: "service_id", Message: "required"}
	}
	if a.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "required"}
	}
	switch a.TimeBlock {
	case calendar.BlockAM, calendar.BlockPM, calendar.BlockBoth:
	default:
		return &ValidationError{Field: "time_block", Message: "must be AM, PM, or BOTH"}
	}
	if a.RoomCount < 0 {
		return &ValidationError{Field: "room_count", Message: "must be >= 0"}
	}
	return nil
}
