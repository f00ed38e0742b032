/*
Package schedule is the scheduling conflict and consistency engine for
a clinical department rota.

PURPOSE:
  Decides whether a proposed assignment or bulk operation is legal,
  computes PTO consumption against the department calendar, detects
  overlapping and duplicate bookings, and records bulk mutations as
  reversible journal entries with conflict-aware undo/redo.

KEY CONCEPTS IN THIS FILE (types.go):
  - Assignment: one provider doing one service on one date/time-block
  - Provider / Service: the people and the bookable activities
  - AvailabilityRule: per provider+service allow/block constraints
  - PTORequest / ProviderLeave: the leave request lifecycle
  - Warning: a non-blocking advisory attached to successful results

DESIGN PRINCIPLES:
  1. Advisory conflicts: uniqueness of (date, service, block) is
     enforced at write time by the conflict detector, not by a
     storage constraint. Two racing writers can both pass the check;
     that window is accepted.
  2. Discriminated results: expected outcomes (policy rejections,
     warnings, undo conflicts) are typed values, not panics.
  3. Best-effort sync: PTO assignments mirror into request/leave rows
     outside any transaction; partial failure is logged and tolerated.

SEE ALSO:
  - availability.go: allow/block rule evaluation
  - conflict.go: assignment creation/deletion pipeline
  - balance.go: PTO allowance resolution and balance math
  - bulk.go: bulk add/remove planning and alternating templates
  - history.go: the reversible change journal
*/
package schedule

import (
	"time"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// ROLES
// =============================================================================

type Role string

const (
	RoleAttending Role = "attending"
	RoleFellow    Role = "fellow"
	RoleNP        Role = "np"
	RolePA        Role = "pa"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleAttending, RoleFellow, RoleNP, RolePA:
		return true
	}
	return false
}

// =============================================================================
// PROVIDER - A clinical staff member
// =============================================================================

type Provider struct {
	ID               string
	Name             string
	Initials         string
	Role             Role
	DefaultRoomCount int
	Capabilities     []string
	WorkWeek         calendar.WorkWeek // nil means Mon-Fri
}

// HasCapability reports whether the provider holds the named capability.
func (p Provider) HasCapability(cap string) bool {
	for _, c := range p.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

// =============================================================================
// SERVICE - A bookable activity
// =============================================================================

type Service struct {
	ID                 string
	Name               string
	TimeBlock          calendar.TimeBlock
	RequiresRooms      bool
	RequiredCapability string // empty means any provider is eligible
	ShowOnMainCalendar bool
}

// =============================================================================
// ASSIGNMENT - One provider on one service for one date/block
// =============================================================================

type Assignment struct {
	ID         string
	Date       calendar.Date
	ServiceID  string
	ProviderID string
	TimeBlock  calendar.TimeBlock
	RoomCount  int
	IsPTO      bool
	IsCovering bool
	Notes      string
	CreatedAt  time.Time
}

// =============================================================================
// AVAILABILITY RULES
// =============================================================================

type RuleType string

const (
	RuleAllow RuleType = "allow"
	RuleBlock RuleType = "block"
)

// Enforcement is the severity of an availability violation. The
// absent rule is the third state: no rule in storage means no
// constraint.
type Enforcement string

const (
	EnforceUnset Enforcement = ""
	EnforceWarn  Enforcement = "warn"
	EnforceHard  Enforcement = "hard"
)

// CycleEnforcement advances warn -> hard -> unset, matching the rule
// editor's click cycle. Unset means the rule should be removed.
func CycleEnforcement(e Enforcement) Enforcement {
	switch e {
	case EnforceWarn:
		return EnforceHard
	case EnforceHard:
		return EnforceUnset
	default:
		return EnforceWarn
	}
}

type AvailabilityRule struct {
	ID          string
	ProviderID  string
	ServiceID   string
	DayOfWeek   time.Weekday
	TimeBlock   calendar.TimeBlock
	RuleType    RuleType
	Enforcement Enforcement
	Reason      string
}

// =============================================================================
// PTO REQUESTS AND LEAVES
// =============================================================================

type LeaveType string

const (
	LeaveVacation   LeaveType = "vacation"
	LeavePersonal   LeaveType = "personal"
	LeaveMedical    LeaveType = "medical"
	LeaveConference LeaveType = "conference"
	LeaveMaternity  LeaveType = "maternity"
	LeaveOther      LeaveType = "other"
)

func ValidLeaveType(lt LeaveType) bool {
	switch lt {
	case LeaveVacation, LeavePersonal, LeaveMedical, LeaveConference, LeaveMaternity, LeaveOther:
		return true
	}
	return false
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
)

type PTORequest struct {
	ID              string
	ProviderID      string
	StartDate       calendar.Date
	EndDate         calendar.Date
	LeaveType       LeaveType
	TimeBlock       calendar.TimeBlock // BlockBoth means full days
	Status          RequestStatus
	RequestedBy     string
	ReviewerName    string
	ReviewerComment string
	CreatedAt       time.Time
	ReviewedAt      *time.Time
}

// Overlaps reports whether the request's range intersects [from, to].
func (r PTORequest) Overlaps(from, to calendar.Date) bool {
	return !r.EndDate.Before(from) && !r.StartDate.After(to)
}

// ProviderLeave is the denormalized leave interval used to answer
// "who else is off" without rescanning requests.
type ProviderLeave struct {
	ID         string
	ProviderID string
	StartDate  calendar.Date
	EndDate    calendar.Date
	LeaveType  LeaveType
	Reason     string
}

func (l ProviderLeave) Overlaps(from, to calendar.Date) bool {
	return !l.EndDate.Before(from) && !l.StartDate.After(to)
}

// =============================================================================
// PTO ALLOWANCE CONFIGURATION
// =============================================================================

// ProviderPTOConfig is a per-provider, per-year allowance override.
// A nil AnnualAllowance means "no override, fall through to the role
// default" while still contributing carryover.
type ProviderPTOConfig struct {
	ProviderID      string
	Year            int
	AnnualAllowance *float64
	CarryoverDays   float64
}

// PTORoleDefault is the per-role annual allowance.
type PTORoleDefault struct {
	Role            Role
	AnnualAllowance float64
}

// =============================================================================
// WARNINGS - Advisory, never blocking
// =============================================================================

type WarningType string

const (
	WarnWorkPTOOverlap     WarningType = "work_pto_overlap"
	WarnOtherProvidersOff  WarningType = "other_providers_off"
	WarnHolidayProximity   WarningType = "holiday_proximity"
	WarnAssignmentConflict WarningType = "assignment_conflict"
	WarnBalance            WarningType = "balance_warning"
	WarnAvailability       WarningType = "availability_warning"
)

type Warning struct {
	Type    WarningType
	Message string
}
