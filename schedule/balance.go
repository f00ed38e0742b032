/*
balance.go - PTO allowance resolution and balance calculation

PURPOSE:
  Answers "how many PTO days does this provider have left this year?"
  and pre-screens a leave request with advisory warnings.

ALLOWANCE RESOLUTION (in order):
  1. Provider-specific config row for the year, when its allowance is
     set -> source "provider_config"; carryover from the same row.
  2. Role default table -> source "role_default"; carryover still
     comes from the provider config row when one exists.
  3. Hardcoded per-role defaults (attending 20, fellow/np/pa 15)
     -> source "system_default".

WARNING LEVELS:
  exceeded:    days remaining < 0
  approaching: usage >= 80% of total available
  none:        otherwise

VALIDATION IS ADVISORY:
  ValidateRequest never blocks; CanSubmit is always true. The hard
  gates run later at assignment-creation time (conflict.go).
*/
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/caredesk/schedule-engine/calendar"
)

// systemDefaultAllowance is the last-resort per-role allowance.
var systemDefaultAllowance = map[Role]float64{
	RoleAttending: 20,
	RoleFellow:    15,
	RoleNP:        15,
	RolePA:        15,
}

// holidayProximityWindow is how many days from a holiday counts as
// holiday-adjacent for the soft per-provider fairness policy.
const holidayProximityWindow = 2

// holidayAdjacentLimit is how many holiday-adjacent approved requests
// a provider can hold in a year before further ones draw a warning.
const holidayAdjacentLimit = 2

type AllowanceSource string

const (
	SourceProviderConfig AllowanceSource = "provider_config"
	SourceRoleDefault    AllowanceSource = "role_default"
	SourceSystemDefault  AllowanceSource = "system_default"
)

type BalanceWarningLevel string

const (
	BalanceOK          BalanceWarningLevel = "none"
	BalanceApproaching BalanceWarningLevel = "approaching"
	BalanceExceeded    BalanceWarningLevel = "exceeded"
)

type BalanceWarning struct {
	Level   BalanceWarningLevel
	Message string
}

// BalanceSummary is the full per-year PTO picture for one provider.
type BalanceSummary struct {
	ProviderID      string
	Year            int
	AnnualAllowance decimal.Decimal
	CarryoverDays   decimal.Decimal
	TotalAvailable  decimal.Decimal
	DaysUsed        decimal.Decimal
	DaysRemaining   decimal.Decimal
	PendingDays     decimal.Decimal
	AllowanceSource AllowanceSource
	Warning         BalanceWarning
}

// =============================================================================
// BALANCE ENGINE
// =============================================================================

type BalanceEngine struct {
	PTO         PTOStore
	Providers   ProviderStore
	Assignments AssignmentStore
	Log         *zap.Logger
}

func NewBalanceEngine(store Store, log *zap.Logger) *BalanceEngine {
	if log == nil {
		log = zap.NewNop()
	}
	return &BalanceEngine{PTO: store, Providers: store, Assignments: store, Log: log}
}

// Balance computes the provider's PTO balance for a year.
func (b *BalanceEngine) Balance(ctx context.Context, providerID string, year int) (*BalanceSummary, error) {
	provider, err := b.Providers.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}

	allowance, carryover, source, err := b.resolveAllowance(ctx, provider, year)
	if err != nil {
		return nil, err
	}
	total := allowance.Add(carryover)

	used, err := b.sumRequestDays(ctx, provider, year, StatusApproved)
	if err != nil {
		return nil, err
	}
	pending, err := b.sumRequestDays(ctx, provider, year, StatusPending)
	if err != nil {
		return nil, err
	}

	remaining := total.Sub(used)
	summary := &BalanceSummary{
		ProviderID:      providerID,
		Year:            year,
		AnnualAllowance: allowance,
		CarryoverDays:   carryover,
		TotalAvailable:  total,
		DaysUsed:        used,
		DaysRemaining:   remaining,
		PendingDays:     pending,
		AllowanceSource: source,
		Warning:         balanceWarning(total, used, remaining),
	}
	return summary, nil
}

func balanceWarning(total, used, remaining decimal.Decimal) BalanceWarning {
	if remaining.IsNegative() {
		return BalanceWarning{
			Level:   BalanceExceeded,
			Message: fmt.Sprintf("PTO balance exceeded by %s days", remaining.Neg()),
		}
	}
	if total.IsPositive() && used.GreaterThanOrEqual(total.Mul(decimal.NewFromFloat(0.8))) {
		return BalanceWarning{
			Level:   BalanceApproaching,
			Message: fmt.Sprintf("approaching PTO limit: %s days remaining", remaining),
		}
	}
	return BalanceWarning{Level: BalanceOK}
}

// resolveAllowance walks provider config -> role default -> system
// default. Carryover comes from the provider config row whenever one
// exists, regardless of where the allowance itself resolved.
func (b *BalanceEngine) resolveAllowance(ctx context.Context, provider *Provider, year int) (allowance, carryover decimal.Decimal, source AllowanceSource, err error) {
	cfg, err := b.PTO.GetPTOConfig(ctx, provider.ID, year)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	if cfg != nil {
		carryover = decimal.NewFromFloat(cfg.CarryoverDays)
	}
	if cfg != nil && cfg.AnnualAllowance != nil {
		return decimal.NewFromFloat(*cfg.AnnualAllowance), carryover, SourceProviderConfig, nil
	}

	rd, err := b.PTO.GetRoleDefault(ctx, provider.Role)
	if err != nil {
		return decimal.Zero, decimal.Zero, "", err
	}
	if rd != nil {
		return decimal.NewFromFloat(rd.AnnualAllowance), carryover, SourceRoleDefault, nil
	}

	return decimal.NewFromFloat(systemDefaultAllowance[provider.Role]), carryover, SourceSystemDefault, nil
}

// sumRequestDays totals the PTO cost of the provider's requests in a
// given status, clipped to the target year.
func (b *BalanceEngine) sumRequestDays(ctx context.Context, provider *Provider, year int, status RequestStatus) (decimal.Decimal, error) {
	yearStart := calendar.NewDate(year, 1, 1)
	yearEnd := calendar.NewDate(year, 12, 31)
	reqs, err := b.PTO.ListPTORequests(ctx, PTORequestFilter{
		ProviderID:  provider.ID,
		Status:      &status,
		OverlapFrom: &yearStart,
		OverlapTo:   &yearEnd,
	})
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, r := range reqs {
		start, end := r.StartDate, r.EndDate
		if start.Before(yearStart) {
			start = yearStart
		}
		if end.After(yearEnd) {
			end = yearEnd
		}
		total = total.Add(calendar.PTODays(start, end, r.TimeBlock, provider.WorkWeek))
	}
	return total, nil
}

// =============================================================================
// PRE-SUBMISSION VALIDATION - Advisory only
// =============================================================================

// RequestInput is a proposed leave request to pre-screen.
type RequestInput struct {
	ProviderID string
	StartDate  calendar.Date
	EndDate    calendar.Date
	TimeBlock  calendar.TimeBlock
	LeaveType  LeaveType
}

// ValidationReport carries the computed day count and advisory
// warnings. CanSubmit is always true; nothing here blocks.
type ValidationReport struct {
	DaysRequested decimal.Decimal
	Balance       *BalanceSummary
	Warnings      []Warning
	CanSubmit     bool
}

// ValidateRequest pre-screens a leave request: day count, balance
// impact, who else is off, holiday adjacency, and work assignments
// that would need reassignment.
func (b *BalanceEngine) ValidateRequest(ctx context.Context, in RequestInput) (*ValidationReport, error) {
	if in.ProviderID == "" {
		return nil, &ValidationError{Field: "provider_id", Message: "required"}
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return nil, &ValidationError{Field: "date_range", Message: "start and end dates are required"}
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, &ValidationError{Field: "date_range", Message: "end date before start date"}
	}

	provider, err := b.Providers.GetProvider(ctx, in.ProviderID)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, ErrProviderNotFound
	}

	days := calendar.PTODays(in.StartDate, in.EndDate, in.TimeBlock, provider.WorkWeek)
	summary, err := b.Balance(ctx, in.ProviderID, in.StartDate.Year())
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{
		DaysRequested: days,
		Balance:       summary,
		CanSubmit:     true,
	}

	// Balance impact of this request on top of what's already used.
	projected := summary.DaysUsed.Add(days)
	if projected.GreaterThan(summary.TotalAvailable) {
		report.Warnings = append(report.Warnings, Warning{
			Type: WarnBalance,
			Message: fmt.Sprintf("request would exceed the annual allowance by %s days",
				projected.Sub(summary.TotalAvailable)),
		})
	} else if summary.TotalAvailable.IsPositive() &&
		projected.GreaterThanOrEqual(summary.TotalAvailable.Mul(decimal.NewFromFloat(0.8))) {
		report.Warnings = append(report.Warnings, Warning{
			Type: WarnBalance,
			Message: fmt.Sprintf("request brings usage to %s of %s available days",
				projected, summary.TotalAvailable),
		})
	}

	if w, err := b.othersOffWarning(ctx, in); err != nil {
		return nil, err
	} else if w != nil {
		report.Warnings = append(report.Warnings, *w)
	}

	if w, err := b.holidayProximityWarning(ctx, provider, in); err != nil {
		return nil, err
	} else if w != nil {
		report.Warnings = append(report.Warnings, *w)
	}

	if w, err := b.assignmentConflictWarning(ctx, in); err != nil {
		return nil, err
	} else if w != nil {
		report.Warnings = append(report.Warnings, *w)
	}

	return report, nil
}

// othersOffWarning names other providers with leave overlapping the
// requested window.
func (b *BalanceEngine) othersOffWarning(ctx context.Context, in RequestInput) (*Warning, error) {
	leaves, err := b.PTO.ListLeavesOverlapping(ctx, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{in.ProviderID: true}
	var names []string
	for _, l := range leaves {
		if seen[l.ProviderID] {
			continue
		}
		seen[l.ProviderID] = true
		p, err := b.Providers.GetProvider(ctx, l.ProviderID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)
	return &Warning{
		Type:    WarnOtherProvidersOff,
		Message: strings.Join(names, ", ") + " also have leave during this period",
	}, nil
}

// holidayProximityWarning applies the soft fairness policy: a
// holiday-adjacent request only draws a warning once the provider
// already holds two or more approved holiday-adjacent requests in the
// year.
func (b *BalanceEngine) holidayProximityWarning(ctx context.Context, provider *Provider, in RequestInput) (*Warning, error) {
	nearHoliday := false
	var holidayName string
	for _, d := range calendar.DaysInRange(in.StartDate, in.EndDate) {
		if near, h := calendar.NearHoliday(d, holidayProximityWindow); near {
			nearHoliday = true
			holidayName = h.Name
			break
		}
	}
	if !nearHoliday {
		return nil, nil
	}

	approved := StatusApproved
	yearStart := calendar.NewDate(in.StartDate.Year(), 1, 1)
	yearEnd := calendar.NewDate(in.StartDate.Year(), 12, 31)
	reqs, err := b.PTO.ListPTORequests(ctx, PTORequestFilter{
		ProviderID:  provider.ID,
		Status:      &approved,
		OverlapFrom: &yearStart,
		OverlapTo:   &yearEnd,
	})
	if err != nil {
		return nil, err
	}

	adjacent := 0
	for _, r := range reqs {
		for d := r.StartDate; d.BeforeOrEqual(r.EndDate); d = d.AddDays(1) {
			if near, _ := calendar.NearHoliday(d, holidayProximityWindow); near {
				adjacent++
				break
			}
		}
	}
	if adjacent < holidayAdjacentLimit {
		return nil, nil
	}
	return &Warning{
		Type: WarnHolidayProximity,
		Message: fmt.Sprintf("request is near %s and the provider already has %d approved holiday-adjacent requests this year",
			holidayName, adjacent),
	}, nil
}

// assignmentConflictWarning lists existing work assignments inside the
// requested window that would need reassignment.
func (b *BalanceEngine) assignmentConflictWarning(ctx context.Context, in RequestInput) (*Warning, error) {
	isPTO := false
	existing, err := b.Assignments.ListAssignments(ctx, AssignmentFilter{
		ProviderID: in.ProviderID,
		From:       &in.StartDate,
		To:         &in.EndDate,
		IsPTO:      &isPTO,
	})
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, a := range existing {
		if a.TimeBlock.Intersects(in.TimeBlock) {
			dates = append(dates, a.Date.String())
		}
	}
	if len(dates) == 0 {
		return nil, nil
	}
	sort.Strings(dates)
	return &Warning{
		Type: WarnAssignmentConflict,
		Message: fmt.Sprintf("existing work assignments on %s will need reassignment",
			strings.Join(dates, ", ")),
	}, nil
}
