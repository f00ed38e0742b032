/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types
  decouple the internal domain model from the external API contract.
  Dates cross the wire as YYYY-MM-DD strings; timestamps as RFC 3339.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the schedule package, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup
*/
package api

import (
	"time"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

// =============================================================================
// COMMON
// =============================================================================

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type WarningDTO struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toWarningDTOs(ws []schedule.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{Type: string(w.Type), Message: w.Message}
	}
	return out
}

// =============================================================================
// PROVIDERS AND SERVICES
// =============================================================================

type ProviderDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Initials         string   `json:"initials"`
	Role             string   `json:"role"`
	DefaultRoomCount int      `json:"default_room_count"`
	Capabilities     []string `json:"capabilities,omitempty"`
	WorkDays         []int    `json:"work_days,omitempty"`
}

type SaveProviderRequest struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Initials         string   `json:"initials"`
	Role             string   `json:"role"`
	DefaultRoomCount int      `json:"default_room_count"`
	Capabilities     []string `json:"capabilities"`
	WorkDays         []int    `json:"work_days"`
}

func toProviderDTO(p schedule.Provider) ProviderDTO {
	dto := ProviderDTO{
		ID:               p.ID,
		Name:             p.Name,
		Initials:         p.Initials,
		Role:             string(p.Role),
		DefaultRoomCount: p.DefaultRoomCount,
		Capabilities:     p.Capabilities,
	}
	if p.WorkWeek != nil {
		for _, wd := range p.WorkWeek.Weekdays() {
			dto.WorkDays = append(dto.WorkDays, int(wd))
		}
	}
	return dto
}

type ServiceDTO struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	TimeBlock          string `json:"time_block"`
	RequiresRooms      bool   `json:"requires_rooms"`
	RequiredCapability string `json:"required_capability,omitempty"`
	ShowOnMainCalendar bool   `json:"show_on_main_calendar"`
}

func toServiceDTO(s schedule.Service) ServiceDTO {
	return ServiceDTO{
		ID:                 s.ID,
		Name:               s.Name,
		TimeBlock:          string(s.TimeBlock),
		RequiresRooms:      s.RequiresRooms,
		RequiredCapability: s.RequiredCapability,
		ShowOnMainCalendar: s.ShowOnMainCalendar,
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

type AssignmentDTO struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	TimeBlock  string `json:"time_block"`
	RoomCount  int    `json:"room_count"`
	IsPTO      bool   `json:"is_pto"`
	IsCovering bool   `json:"is_covering"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

func toAssignmentDTO(a schedule.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		ID:         a.ID,
		Date:       a.Date.String(),
		ServiceID:  a.ServiceID,
		ProviderID: a.ProviderID,
		TimeBlock:  string(a.TimeBlock),
		RoomCount:  a.RoomCount,
		IsPTO:      a.IsPTO,
		IsCovering: a.IsCovering,
		Notes:      a.Notes,
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toAssignmentDTOs(as []schedule.Assignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	return dtos
}

type CreateAssignmentRequest struct {
	Date       string `json:"date"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	TimeBlock  string `json:"time_block"`
	RoomCount  int    `json:"room_count"`
	IsPTO      bool   `json:"is_pto"`
	IsCovering bool   `json:"is_covering"`
	Notes      string `json:"notes"`

	// OverrideAvailability skips the availability gate; set after the
	// user confirms a warn-level violation.
	OverrideAvailability bool `json:"override_availability"`
}

type CreateAssignmentResponse struct {
	Assignment AssignmentDTO `json:"assignment"`
	Warnings   []WarningDTO  `json:"warnings,omitempty"`
}

type DeleteAssignmentResponse struct {
	Deleted          bool `json:"deleted"`
	CascadedRequests int  `json:"cascaded_requests"`
	CascadedLeaves   int  `json:"cascaded_leaves"`
}

// =============================================================================
// AVAILABILITY RULES
// =============================================================================

type RuleDTO struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	DayOfWeek   int    `json:"day_of_week"`
	TimeBlock   string `json:"time_block"`
	RuleType    string `json:"rule_type"`
	Enforcement string `json:"enforcement"`
	Reason      string `json:"reason,omitempty"`
}

func toRuleDTO(r schedule.AvailabilityRule) RuleDTO {
	return RuleDTO{
		ID:          r.ID,
		ProviderID:  r.ProviderID,
		ServiceID:   r.ServiceID,
		DayOfWeek:   int(r.DayOfWeek),
		TimeBlock:   string(r.TimeBlock),
		RuleType:    string(r.RuleType),
		Enforcement: string(r.Enforcement),
		Reason:      r.Reason,
	}
}

type SaveRuleRequest struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	ServiceID   string `json:"service_id"`
	DayOfWeek   int    `json:"day_of_week"`
	TimeBlock   string `json:"time_block"`
	RuleType    string `json:"rule_type"`
	Enforcement string `json:"enforcement"`
	Reason      string `json:"reason"`
}

type AvailabilityCheckRequest struct {
	Checks []AvailabilityCheckDTO `json:"checks"`
}

type AvailabilityCheckDTO struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	Date       string `json:"date"`
	TimeBlock  string `json:"time_block"`
}

type AvailabilityViolationDTO struct {
	Check       AvailabilityCheckDTO `json:"check"`
	Enforcement string               `json:"enforcement"`
	Reason      string               `json:"reason,omitempty"`
}

type AvailabilityCheckResponse struct {
	HardBlocks []AvailabilityViolationDTO `json:"hard_blocks"`
	Warnings   []AvailabilityViolationDTO `json:"warnings"`
}

// =============================================================================
// PTO
// =============================================================================

type BalanceSummaryDTO struct {
	ProviderID      string `json:"provider_id"`
	Year            int    `json:"year"`
	AnnualAllowance string `json:"annual_allowance"`
	CarryoverDays   string `json:"carryover_days"`
	TotalAvailable  string `json:"total_available"`
	DaysUsed        string `json:"days_used"`
	DaysRemaining   string `json:"days_remaining"`
	PendingDays     string `json:"pending_days"`
	AllowanceSource string `json:"allowance_source"`
	WarningLevel    string `json:"warning_level"`
	WarningMessage  string `json:"warning_message,omitempty"`
}

func toBalanceDTO(b *schedule.BalanceSummary) BalanceSummaryDTO {
	return BalanceSummaryDTO{
		ProviderID:      b.ProviderID,
		Year:            b.Year,
		AnnualAllowance: b.AnnualAllowance.String(),
		CarryoverDays:   b.CarryoverDays.String(),
		TotalAvailable:  b.TotalAvailable.String(),
		DaysUsed:        b.DaysUsed.String(),
		DaysRemaining:   b.DaysRemaining.String(),
		PendingDays:     b.PendingDays.String(),
		AllowanceSource: string(b.AllowanceSource),
		WarningLevel:    string(b.Warning.Level),
		WarningMessage:  b.Warning.Message,
	}
}

type ValidatePTORequest struct {
	ProviderID string `json:"provider_id"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TimeBlock  string `json:"time_block"`
	LeaveType  string `json:"leave_type"`
}

type ValidatePTOResponse struct {
	DaysRequested string             `json:"days_requested"`
	Balance       *BalanceSummaryDTO `json:"balance,omitempty"`
	Warnings      []WarningDTO       `json:"warnings"`
	CanSubmit     bool               `json:"can_submit"`
}

type SubmitPTORequest struct {
	ProviderID  string `json:"provider_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	TimeBlock   string `json:"time_block"`
	LeaveType   string `json:"leave_type"`
	RequestedBy string `json:"requested_by"`
}

type ReviewPTORequest struct {
	Reviewer string `json:"reviewer"`
	Comment  string `json:"comment"`
}

type PTORequestDTO struct {
	ID              string `json:"id"`
	ProviderID      string `json:"provider_id"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
	LeaveType       string `json:"leave_type"`
	TimeBlock       string `json:"time_block"`
	Status          string `json:"status"`
	RequestedBy     string `json:"requested_by,omitempty"`
	ReviewerName    string `json:"reviewer_name,omitempty"`
	ReviewerComment string `json:"reviewer_comment,omitempty"`
	CreatedAt       string `json:"created_at"`
	ReviewedAt      string `json:"reviewed_at,omitempty"`
}

func toPTORequestDTO(r schedule.PTORequest) PTORequestDTO {
	dto := PTORequestDTO{
		ID:              r.ID,
		ProviderID:      r.ProviderID,
		StartDate:       r.StartDate.String(),
		EndDate:         r.EndDate.String(),
		LeaveType:       string(r.LeaveType),
		TimeBlock:       string(r.TimeBlock),
		Status:          string(r.Status),
		RequestedBy:     r.RequestedBy,
		ReviewerName:    r.ReviewerName,
		ReviewerComment: r.ReviewerComment,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
	}
	if r.ReviewedAt != nil {
		dto.ReviewedAt = r.ReviewedAt.Format(time.RFC3339)
	}
	return dto
}

type PTOConfigDTO struct {
	ProviderID      string   `json:"provider_id"`
	Year            int      `json:"year"`
	AnnualAllowance *float64 `json:"annual_allowance"`
	CarryoverDays   float64  `json:"carryover_days"`
}

type RoleDefaultDTO struct {
	Role            string  `json:"role"`
	AnnualAllowance float64 `json:"annual_allowance"`
}

// =============================================================================
// BULK OPERATIONS
// =============================================================================

type BulkPatternDTO struct {
	Type      string `json:"type"`
	Weekday   int    `json:"weekday"`
	TimeBlock string `json:"time_block,omitempty"`
	ServiceID string `json:"service_id"`
}

type BulkOperationRequest struct {
	ProviderID string         `json:"provider_id"`
	Action     string         `json:"action"`
	Pattern    BulkPatternDTO `json:"pattern"`
	StartDate  string         `json:"start_date"`
	EndDate    string         `json:"end_date"`
	Preview    bool           `json:"preview"`
	RoomCount  int            `json:"room_count"`
}

type SkippedSlotDTO struct {
	Date      string `json:"date"`
	ServiceID string `json:"service_id"`
	TimeBlock string `json:"time_block"`
	Reason    string `json:"reason"`
}

type BulkOperationResponse struct {
	Preview       bool             `json:"preview"`
	AffectedCount int              `json:"affected_count"`
	Assignments   []AssignmentDTO  `json:"assignments,omitempty"`
	Skipped       []SkippedSlotDTO `json:"skipped,omitempty"`
	HistoryID     string           `json:"history_id,omitempty"`
}

func toSkippedDTOs(slots []schedule.SkippedSlot) []SkippedSlotDTO {
	out := make([]SkippedSlotDTO, len(slots))
	for i, s := range slots {
		out[i] = SkippedSlotDTO{
			Date:      s.Date.String(),
			ServiceID: s.ServiceID,
			TimeBlock: string(s.TimeBlock),
			Reason:    s.Reason,
		}
	}
	return out
}

type AlternatingScheduleRequest struct {
	TemplateIDs  []string `json:"template_ids"`
	IndexPattern []int    `json:"index_pattern"`
	StartDate    string   `json:"start_date"`
	EndDate      string   `json:"end_date"`
	ClearFirst   bool     `json:"clear_first"`
}

type AlternatingScheduleResponse struct {
	CreatedCount     int              `json:"created_count"`
	ClearedCount     int              `json:"cleared_count"`
	HolidaySkipped   []SkippedSlotDTO `json:"holiday_skipped,omitempty"`
	DuplicateSkipped []SkippedSlotDTO `json:"duplicate_skipped,omitempty"`
	HistoryIDs       []string         `json:"history_ids,omitempty"`
}

// =============================================================================
// WEEK TEMPLATES
// =============================================================================

type TemplateSlotDTO struct {
	DayOfWeek  int    `json:"day_of_week"`
	TimeBlock  string `json:"time_block"`
	ServiceID  string `json:"service_id"`
	ProviderID string `json:"provider_id"`
	RoomCount  int    `json:"room_count"`
}

type WeekTemplateDTO struct {
	ID    string            `json:"id"`
	Name  string            `json:"name"`
	Slots []TemplateSlotDTO `json:"slots"`
}

func toTemplateDTO(t schedule.WeekTemplate) WeekTemplateDTO {
	dto := WeekTemplateDTO{ID: t.ID, Name: t.Name, Slots: make([]TemplateSlotDTO, len(t.Slots))}
	for i, s := range t.Slots {
		dto.Slots[i] = TemplateSlotDTO{
			DayOfWeek:  int(s.DayOfWeek),
			TimeBlock:  string(s.TimeBlock),
			ServiceID:  s.ServiceID,
			ProviderID: s.ProviderID,
			RoomCount:  s.RoomCount,
		}
	}
	return dto
}

func fromTemplateDTO(dto WeekTemplateDTO) schedule.WeekTemplate {
	t := schedule.WeekTemplate{ID: dto.ID, Name: dto.Name, Slots: make([]schedule.TemplateSlot, len(dto.Slots))}
	for i, s := range dto.Slots {
		t.Slots[i] = schedule.TemplateSlot{
			DayOfWeek:  time.Weekday(s.DayOfWeek),
			TimeBlock:  calendar.TimeBlock(s.TimeBlock),
			ServiceID:  s.ServiceID,
			ProviderID: s.ProviderID,
			RoomCount:  s.RoomCount,
		}
	}
	return t
}

// =============================================================================
// CHANGE HISTORY
// =============================================================================

type HistoryEntryDTO struct {
	ID            string            `json:"id"`
	Operation     string            `json:"operation"`
	Description   string            `json:"description"`
	AffectedStart string            `json:"affected_start"`
	AffectedEnd   string            `json:"affected_end"`
	AddedCount    int               `json:"added_count"`
	RemovedCount  int               `json:"removed_count"`
	IsUndone      bool              `json:"is_undone"`
	UndoneAt      string            `json:"undone_at,omitempty"`
	IsRedone      bool              `json:"is_redone"`
	RedoneAt      string            `json:"redone_at,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
}

func toHistoryDTO(e schedule.ChangeHistoryEntry) HistoryEntryDTO {
	dto := HistoryEntryDTO{
		ID:            e.ID,
		Operation:     string(e.Operation),
		Description:   e.Description,
		AffectedStart: e.AffectedStart.String(),
		AffectedEnd:   e.AffectedEnd.String(),
		IsUndone:      e.IsUndone,
		IsRedone:      e.IsRedone,
		Metadata:      e.Metadata,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
	if ids, ok := e.Change.Added(); ok {
		dto.AddedCount = len(ids)
	}
	if snapshots, ok := e.Change.Removed(); ok {
		dto.RemovedCount = len(snapshots)
	}
	if e.UndoneAt != nil {
		dto.UndoneAt = e.UndoneAt.Format(time.RFC3339)
	}
	if e.RedoneAt != nil {
		dto.RedoneAt = e.RedoneAt.Format(time.RFC3339)
	}
	return dto
}

type UndoRequest struct {
	Force bool `json:"force"`
}

type UndoConflictDTO struct {
	Type         string `json:"type"`
	AssignmentID string `json:"assignment_id"`
	Description  string `json:"description"`
}

type UndoResponse struct {
	Applied       bool              `json:"applied"`
	DeletedCount  int               `json:"deleted_count"`
	RestoredCount int               `json:"restored_count"`
	Conflicts     []UndoConflictDTO `json:"conflicts,omitempty"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

// HolidayDTO carries the observed date of one holiday.
type HolidayDTO struct {
	Name string `json:"name"`
	Date string `json:"date"`
}
