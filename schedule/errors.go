/*
errors.go - Centralized error types for the scheduling engine

PURPOSE:
  All error types in one place. Policy rejections (holiday without
  exemption, PTO conflict, hard availability block) are expected,
  user-recoverable outcomes; they are distinct sentinel-wrapped types
  so handlers can map them without string matching.

ERROR CATEGORIES:
  1. Validation errors - malformed input, no storage access occurred
  2. Policy rejections - a named scheduling rule refused the write
  3. Not-found errors - missing referenced rows
  4. Journal errors - undo/redo state violations

USAGE:
  if errors.Is(err, schedule.ErrPolicyRejected) {
      // 422, message names the violated rule
  }
*/
package schedule

import (
	"errors"
	"fmt"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of malformed-input errors.
	ErrValidation = errors.New("validation failed")

	// ErrPolicyRejected is the root of all scheduling policy rejections.
	ErrPolicyRejected = errors.New("rejected by scheduling policy")

	// ErrProviderNotFound is returned when a referenced provider doesn't exist.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrServiceNotFound is returned when a referenced service doesn't exist.
	ErrServiceNotFound = errors.New("service not found")

	// ErrAssignmentNotFound is returned when a referenced assignment doesn't exist.
	ErrAssignmentNotFound = errors.New("assignment not found")

	// ErrRequestNotFound is returned when a referenced PTO request doesn't exist.
	ErrRequestNotFound = errors.New("pto request not found")

	// ErrEntryNotFound is returned when a referenced history entry doesn't exist.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrAlreadyUndone is returned when undoing an entry twice.
	ErrAlreadyUndone = errors.New("operation already undone")

	// ErrNotUndone is returned when redoing an entry that was never undone.
	ErrNotUndone = errors.New("operation has not been undone")
)

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports malformed input. No storage was touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// POLICY REJECTIONS - Expected, recoverable outcomes
// =============================================================================

// HolidayError rejects a non-exempt assignment on a holiday.
type HolidayError struct {
	Date    calendar.Date
	Holiday string
	Service string
}

func (e *HolidayError) Error() string {
	return fmt.Sprintf("%s is %s; only inpatient services may be scheduled on holidays (service: %s)",
		e.Date, e.Holiday, e.Service)
}

func (e *HolidayError) Unwrap() error { return ErrPolicyRejected }

// CapabilityError rejects an assignment to a provider lacking the
// capability the service requires.
type CapabilityError struct {
	ProviderID string
	ServiceID  string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %s lacks the %q capability required by service %s",
		e.ProviderID, e.Capability, e.ServiceID)
}

func (e *CapabilityError) Unwrap() error { return ErrPolicyRejected }

// PTOConflictError rejects a work assignment over existing PTO.
type PTOConflictError struct {
	ProviderID string
	Date       calendar.Date
	TimeBlock  calendar.TimeBlock
	ExistingID string
}

func (e *PTOConflictError) Error() string {
	return fmt.Sprintf("provider %s already has PTO on %s (%s); remove the PTO entry first",
		e.ProviderID, e.Date, e.TimeBlock)
}

func (e *PTOConflictError) Unwrap() error { return ErrPolicyRejected }

// AvailabilityError rejects an assignment hard-blocked by a rule.
type AvailabilityError struct {
	ProviderID string
	ServiceID  string
	Date       calendar.Date
	TimeBlock  calendar.TimeBlock
	Reason     string
}

func (e *AvailabilityError) Error() string {
	msg := fmt.Sprintf("provider %s is not available for service %s on %s (%s)",
		e.ProviderID, e.ServiceID, e.Date, e.TimeBlock)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *AvailabilityError) Unwrap() error { return ErrPolicyRejected }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPolicyRejection reports whether the error is an expected scheduling
// rule rejection rather than a defect.
func IsPolicyRejection(err error) bool { return errors.Is(err, ErrPolicyRejected) }

// IsClientError reports whether the error is due to invalid client input
// or an expected rejection (4xx at the handler boundary).
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPolicyRejected) ||
		errors.Is(err, ErrAlreadyUndone) ||
		errors.Is(err, ErrNotUndone)
}

// IsNotFound reports whether the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrServiceNotFound) ||
		errors.Is(err, ErrAssignmentNotFound) ||
		errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
