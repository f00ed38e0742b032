/*
handlers.go - HTTP API handlers for the scheduling engine

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Providers:
    GET    /api/providers                      List providers
    POST   /api/providers                      Create/update a provider
    GET    /api/providers/{id}                 Get one provider
    DELETE /api/providers/{id}                 Delete a provider
    GET    /api/providers/{id}/balance         PTO balance for a year
    GET    /api/providers/{id}/rules           Availability rules for a pair
    GET    /api/providers/{id}/pto-config      Allowance override
    PUT    /api/providers/{id}/pto-config      Set allowance override

  Services, templates: symmetric CRUD under /api/services, /api/templates.

  Assignments:
    GET    /api/assignments                    Filtered listing
    POST   /api/assignments                    Create (full conflict pipeline)
    GET    /api/assignments/{id}
    DELETE /api/assignments/{id}               Delete with PTO cascade

  Availability:
    POST   /api/rules                          Create/update a rule
    POST   /api/rules/{id}/cycle               Cycle warn -> hard -> removed
    DELETE /api/rules/{id}
    POST   /api/availability/check             Bulk rule evaluation

  PTO:
    POST   /api/pto/validate                   Pre-submission screening
    POST   /api/pto/requests                   Submit
    GET    /api/pto/requests                   Filtered listing
    POST   /api/pto/requests/{id}/approve
    POST   /api/pto/requests/{id}/deny
    DELETE /api/pto/requests/{id}              Cancel
    GET    /api/pto/role-defaults              All role defaults
    PUT    /api/pto/role-defaults              Set one role default

  Schedule operations:
    POST   /api/schedule/bulk                  Bulk add/remove (preview or commit)
    POST   /api/schedule/alternating           Apply alternating templates
    GET    /api/schedule/history               Recent journal entries
    POST   /api/schedule/history/{id}/undo
    POST   /api/schedule/history/{id}/redo

  Calendar:
    GET    /api/holidays?year=YYYY             Observed holidays

ERROR HANDLING:
  Expected rejections map to 4xx:
  - 400: validation errors
  - 404: missing resources
  - 409: already-undone / not-undone journal states
  - 422: policy rejections (holiday, PTO overlap, hard availability)
  Everything else is a 500 with the detail logged, not leaked.

SECURITY NOTE:
  No authentication middleware. The engine sits behind the department
  intranet proxy which handles auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/metrics"
	"github.com/caredesk/schedule-engine/schedule"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     schedule.Store
	Scheduler *schedule.Scheduler
	Balance   *schedule.BalanceEngine
	Planner   *schedule.BulkPlanner
	Requests  *schedule.RequestService
	History   *schedule.HistoryManager
	Evaluator *schedule.Evaluator
	Metrics   *metrics.Metrics
	Log       *zap.Logger
}

// NewHandler wires the engine services around one store.
func NewHandler(store schedule.Store, m *metrics.Metrics, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Store:     store,
		Scheduler: schedule.NewScheduler(store, log),
		Balance:   schedule.NewBalanceEngine(store, log),
		Planner:   schedule.NewBulkPlanner(store, log),
		Requests:  schedule.NewRequestService(store, log),
		History:   schedule.NewHistoryManager(store, store, log),
		Evaluator: schedule.NewEvaluator(store),
		Metrics:   m,
		Log:       log,
	}
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.Store.ListProviders(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list providers", err)
		return
	}
	dtos := make([]ProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.GetProvider(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get provider", err)
		return
	}
	if p == nil {
		h.writeError(w, http.StatusNotFound, "Provider not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(*p))
}

func (h *Handler) SaveProvider(w http.ResponseWriter, r *http.Request) {
	var req SaveProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	role := schedule.Role(req.Role)
	if !schedule.ValidRole(role) {
		h.writeError(w, http.StatusBadRequest, "invalid role", nil)
		return
	}

	p := schedule.Provider{
		ID:               req.ID,
		Name:             req.Name,
		Initials:         req.Initials,
		Role:             role,
		DefaultRoomCount: req.DefaultRoomCount,
		Capabilities:     req.Capabilities,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if len(req.WorkDays) > 0 {
		weekdays := make([]time.Weekday, len(req.WorkDays))
		for i, d := range req.WorkDays {
			weekdays[i] = time.Weekday(d)
		}
		p.WorkWeek = calendar.NewWorkWeek(weekdays...)
	}

	if err := h.Store.SaveProvider(r.Context(), p); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save provider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

func (h *Handler) DeleteProvider(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteProvider(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to delete provider", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SERVICE HANDLERS
// =============================================================================

func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.Store.ListServices(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list services", err)
		return
	}
	dtos := make([]ServiceDTO, len(services))
	for i, s := range services {
		dtos[i] = toServiceDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.Store.GetService(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get service", err)
		return
	}
	if svc == nil {
		h.writeError(w, http.StatusNotFound, "Service not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toServiceDTO(*svc))
}

func (h *Handler) SaveService(w http.ResponseWriter, r *http.Request) {
	var dto ServiceDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if dto.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	block, err := calendar.ParseTimeBlock(dto.TimeBlock)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid time_block", err)
		return
	}

	svc := schedule.Service{
		ID:                 dto.ID,
		Name:               dto.Name,
		TimeBlock:          block,
		RequiresRooms:      dto.RequiresRooms,
		RequiredCapability: dto.RequiredCapability,
		ShowOnMainCalendar: dto.ShowOnMainCalendar,
	}
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	if err := h.Store.SaveService(r.Context(), svc); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save service", err)
		return
	}
	writeJSON(w, http.StatusCreated, toServiceDTO(svc))
}

func (h *Handler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to delete service", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := schedule.AssignmentFilter{
		ProviderID: q.Get("provider_id"),
		ServiceID:  q.Get("service_id"),
	}
	if v := q.Get("from"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.To = &d
	}
	if v := q.Get("is_pto"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid is_pto flag", err)
			return
		}
		filter.IsPTO = &b
	}

	assignments, err := h.Store.ListAssignments(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTOs(assignments))
}

func (h *Handler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get assignment", err)
		return
	}
	if a == nil {
		h.writeError(w, http.StatusNotFound, "Assignment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

func (h *Handler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req CreateAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid date (use YYYY-MM-DD)", err)
		return
	}
	block, err := calendar.ParseTimeBlock(req.TimeBlock)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid time_block", err)
		return
	}

	result, err := h.Scheduler.CreateAssignment(r.Context(), schedule.Assignment{
		Date:       date,
		ServiceID:  req.ServiceID,
		ProviderID: req.ProviderID,
		TimeBlock:  block,
		RoomCount:  req.RoomCount,
		IsPTO:      req.IsPTO,
		IsCovering: req.IsCovering,
		Notes:      req.Notes,
	}, schedule.CreateOptions{OverrideAvailability: req.OverrideAvailability})
	if err != nil {
		if h.Metrics != nil && schedule.IsPolicyRejection(err) {
			h.Metrics.PolicyRejections.WithLabelValues(rejectionKind(err)).Inc()
		}
		h.writeDomainError(w, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.AssignmentsCreated.Inc()
	}
	writeJSON(w, http.StatusCreated, CreateAssignmentResponse{
		Assignment: toAssignmentDTO(result.Assignment),
		Warnings:   toWarningDTOs(result.Warnings),
	})
}

func (h *Handler) DeleteAssignment(w http.ResponseWriter, r *http.Request) {
	result, err := h.Scheduler.DeleteAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteAssignmentResponse{
		Deleted:          true,
		CascadedRequests: result.CascadedRequests,
		CascadedLeaves:   result.CascadedLeaves,
	})
}

// =============================================================================
// AVAILABILITY RULE HANDLERS
// =============================================================================

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	serviceID := r.URL.Query().Get("service_id")
	if serviceID == "" {
		h.writeError(w, http.StatusBadRequest, "service_id query parameter is required", nil)
		return
	}
	rules, err := h.Store.ListRulesForPair(r.Context(), providerID, serviceID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list rules", err)
		return
	}
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveRule(w http.ResponseWriter, r *http.Request) {
	var req SaveRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ProviderID == "" || req.ServiceID == "" {
		h.writeError(w, http.StatusBadRequest, "provider_id and service_id are required", nil)
		return
	}
	block, err := calendar.ParseTimeBlock(req.TimeBlock)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid time_block", err)
		return
	}
	ruleType := schedule.RuleType(req.RuleType)
	if ruleType != schedule.RuleAllow && ruleType != schedule.RuleBlock {
		h.writeError(w, http.StatusBadRequest, "rule_type must be allow or block", nil)
		return
	}
	enforcement := schedule.Enforcement(req.Enforcement)
	if enforcement != schedule.EnforceWarn && enforcement != schedule.EnforceHard {
		h.writeError(w, http.StatusBadRequest, "enforcement must be warn or hard", nil)
		return
	}

	rule := schedule.AvailabilityRule{
		ID:          req.ID,
		ProviderID:  req.ProviderID,
		ServiceID:   req.ServiceID,
		DayOfWeek:   time.Weekday(req.DayOfWeek),
		TimeBlock:   block,
		RuleType:    ruleType,
		Enforcement: enforcement,
		Reason:      req.Reason,
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if err := h.Store.SaveRule(r.Context(), rule); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleDTO(rule))
}

// CycleRule advances a rule's enforcement one step (warn -> hard ->
// removed), mirroring the grid editor's click cycle.
func (h *Handler) CycleRule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	providerID := r.URL.Query().Get("provider_id")
	serviceID := r.URL.Query().Get("service_id")
	rules, err := h.Store.ListRulesForPair(r.Context(), providerID, serviceID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to load rule", err)
		return
	}
	var rule *schedule.AvailabilityRule
	for i := range rules {
		if rules[i].ID == id {
			rule = &rules[i]
			break
		}
	}
	if rule == nil {
		h.writeError(w, http.StatusNotFound, "Rule not found", nil)
		return
	}

	next := schedule.CycleEnforcement(rule.Enforcement)
	if next == schedule.EnforceUnset {
		if err := h.Store.DeleteRule(r.Context(), id); err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	rule.Enforcement = next
	if err := h.Store.SaveRule(r.Context(), *rule); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save rule", err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleDTO(*rule))
}

func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteRule(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to delete rule", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	checks := make([]schedule.AvailabilityCheck, len(req.Checks))
	for i, c := range req.Checks {
		date, err := calendar.ParseDate(c.Date)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid date (use YYYY-MM-DD)", err)
			return
		}
		block, err := calendar.ParseTimeBlock(c.TimeBlock)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid time_block", err)
			return
		}
		checks[i] = schedule.AvailabilityCheck{
			ProviderID: c.ProviderID,
			ServiceID:  c.ServiceID,
			Date:       date,
			TimeBlock:  block,
		}
	}

	result, err := h.Evaluator.CheckBulkAvailability(r.Context(), checks)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Availability check failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityCheckResponse{
		HardBlocks: toViolationDTOs(result.HardBlocks),
		Warnings:   toViolationDTOs(result.Warnings),
	})
}

func toViolationDTOs(vs []schedule.AvailabilityViolation) []AvailabilityViolationDTO {
	out := make([]AvailabilityViolationDTO, len(vs))
	for i, v := range vs {
		out[i] = AvailabilityViolationDTO{
			Check: AvailabilityCheckDTO{
				ProviderID: v.Check.ProviderID,
				ServiceID:  v.Check.ServiceID,
				Date:       v.Check.Date.String(),
				TimeBlock:  string(v.Check.TimeBlock),
			},
			Enforcement: string(v.Result.Enforcement),
			Reason:      v.Result.Reason,
		}
	}
	return out
}

// =============================================================================
// PTO HANDLERS
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	year := calendar.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}

	summary, err := h.Balance.Balance(r.Context(), providerID, year)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(summary))
}

func (h *Handler) ValidatePTO(w http.ResponseWriter, r *http.Request) {
	var req ValidatePTORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := h.parseRequestInput(req.ProviderID, req.StartDate, req.EndDate, req.TimeBlock, req.LeaveType)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	report, err := h.Balance.ValidateRequest(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := ValidatePTOResponse{
		DaysRequested: report.DaysRequested.String(),
		Warnings:      toWarningDTOs(report.Warnings),
		CanSubmit:     report.CanSubmit,
	}
	if report.Balance != nil {
		b := toBalanceDTO(report.Balance)
		resp.Balance = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) SubmitPTORequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitPTORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in, err := h.parseRequestInput(req.ProviderID, req.StartDate, req.EndDate, req.TimeBlock, req.LeaveType)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	created, err := h.Requests.Submit(r.Context(), in, req.RequestedBy)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPTORequestDTO(*created))
}

func (h *Handler) ListPTORequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := schedule.PTORequestFilter{ProviderID: q.Get("provider_id")}
	if v := q.Get("status"); v != "" {
		status := schedule.RequestStatus(v)
		filter.Status = &status
	}
	if v := q.Get("from"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.OverlapFrom = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := calendar.ParseDate(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.OverlapTo = &d
	}

	requests, err := h.Store.ListPTORequests(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	dtos := make([]PTORequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toPTORequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) ApprovePTORequest(w http.ResponseWriter, r *http.Request) {
	h.reviewPTORequest(w, r, schedule.StatusApproved)
}

func (h *Handler) DenyPTORequest(w http.ResponseWriter, r *http.Request) {
	h.reviewPTORequest(w, r, schedule.StatusDenied)
}

func (h *Handler) reviewPTORequest(w http.ResponseWriter, r *http.Request, status schedule.RequestStatus) {
	var req ReviewPTORequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	id := chi.URLParam(r, "id")

	var (
		updated *schedule.PTORequest
		err     error
	)
	if status == schedule.StatusApproved {
		updated, err = h.Requests.Approve(r.Context(), id, req.Reviewer, req.Comment)
	} else {
		updated, err = h.Requests.Deny(r.Context(), id, req.Reviewer, req.Comment)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPTORequestDTO(*updated))
}

func (h *Handler) CancelPTORequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Requests.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPTOConfig(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	year := calendar.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}
	cfg, err := h.Store.GetPTOConfig(r.Context(), providerID, year)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get PTO config", err)
		return
	}
	if cfg == nil {
		h.writeError(w, http.StatusNotFound, "No PTO config for provider/year", nil)
		return
	}
	writeJSON(w, http.StatusOK, PTOConfigDTO{
		ProviderID:      cfg.ProviderID,
		Year:            cfg.Year,
		AnnualAllowance: cfg.AnnualAllowance,
		CarryoverDays:   cfg.CarryoverDays,
	})
}

func (h *Handler) SavePTOConfig(w http.ResponseWriter, r *http.Request) {
	var dto PTOConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg := schedule.ProviderPTOConfig{
		ProviderID:      chi.URLParam(r, "id"),
		Year:            dto.Year,
		AnnualAllowance: dto.AnnualAllowance,
		CarryoverDays:   dto.CarryoverDays,
	}
	if cfg.Year == 0 {
		cfg.Year = calendar.Today().Year()
	}
	if err := h.Store.SavePTOConfig(r.Context(), cfg); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save PTO config", err)
		return
	}
	dto.ProviderID = cfg.ProviderID
	dto.Year = cfg.Year
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) ListRoleDefaults(w http.ResponseWriter, r *http.Request) {
	roles := []schedule.Role{schedule.RoleAttending, schedule.RoleFellow, schedule.RoleNP, schedule.RolePA}
	var dtos []RoleDefaultDTO
	for _, role := range roles {
		d, err := h.Store.GetRoleDefault(r.Context(), role)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to get role defaults", err)
			return
		}
		if d != nil {
			dtos = append(dtos, RoleDefaultDTO{Role: string(d.Role), AnnualAllowance: d.AnnualAllowance})
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveRoleDefault(w http.ResponseWriter, r *http.Request) {
	var dto RoleDefaultDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	role := schedule.Role(dto.Role)
	if !schedule.ValidRole(role) {
		h.writeError(w, http.StatusBadRequest, "invalid role", nil)
		return
	}
	if err := h.Store.SaveRoleDefault(r.Context(), schedule.PTORoleDefault{
		Role:            role,
		AnnualAllowance: dto.AnnualAllowance,
	}); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save role default", err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BULK OPERATION HANDLERS
// =============================================================================

func (h *Handler) BulkOperation(w http.ResponseWriter, r *http.Request) {
	var req BulkOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	bulkReq := schedule.BulkRequest{
		ProviderID: req.ProviderID,
		Action:     schedule.BulkAction(req.Action),
		StartDate:  start,
		EndDate:    end,
		Preview:    req.Preview,
		RoomCount:  req.RoomCount,
		Pattern: schedule.BulkPattern{
			Type:      schedule.PatternType(req.Pattern.Type),
			Weekday:   time.Weekday(req.Pattern.Weekday),
			ServiceID: req.Pattern.ServiceID,
		},
	}
	if req.Pattern.TimeBlock != "" {
		block, err := calendar.ParseTimeBlock(req.Pattern.TimeBlock)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid pattern time_block", err)
			return
		}
		bulkReq.Pattern.TimeBlock = &block
	}

	result, err := h.Planner.PlanBulk(r.Context(), bulkReq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.Metrics != nil && !result.Preview {
		h.Metrics.BulkOperations.WithLabelValues(string(bulkReq.Action)).Inc()
	}
	writeJSON(w, http.StatusOK, BulkOperationResponse{
		Preview:       result.Preview,
		AffectedCount: result.AffectedCount,
		Assignments:   toAssignmentDTOs(result.Assignments),
		Skipped:       toSkippedDTOs(result.Skipped),
		HistoryID:     result.HistoryID,
	})
}

func (h *Handler) ApplyAlternating(w http.ResponseWriter, r *http.Request) {
	var req AlternatingScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := calendar.ParseDate(req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.ParseDate(req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	result, err := h.Planner.ApplyAlternating(r.Context(), schedule.AlternatingRequest{
		TemplateIDs:  req.TemplateIDs,
		IndexPattern: req.IndexPattern,
		StartDate:    start,
		EndDate:      end,
		ClearFirst:   req.ClearFirst,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.BulkOperations.WithLabelValues("apply_template").Inc()
	}
	writeJSON(w, http.StatusOK, AlternatingScheduleResponse{
		CreatedCount:     result.CreatedCount,
		ClearedCount:     result.ClearedCount,
		HolidaySkipped:   toSkippedDTOs(result.HolidaySkipped),
		DuplicateSkipped: toSkippedDTOs(result.DuplicateSkipped),
		HistoryIDs:       result.HistoryIDs,
	})
}

// =============================================================================
// WEEK TEMPLATE HANDLERS
// =============================================================================

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.Store.ListTemplates(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list templates", err)
		return
	}
	dtos := make([]WeekTemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toTemplateDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	t, err := h.Store.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to get template", err)
		return
	}
	if t == nil {
		h.writeError(w, http.StatusNotFound, "Template not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(*t))
}

func (h *Handler) SaveTemplate(w http.ResponseWriter, r *http.Request) {
	var dto WeekTemplateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if dto.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if dto.ID == "" {
		dto.ID = uuid.NewString()
	}
	if err := h.Store.SaveTemplate(r.Context(), fromTemplateDTO(dto)); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save template", err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteTemplate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to delete template", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = n
	}
	entries, err := h.Store.ListEntries(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to list history", err)
		return
	}
	dtos := make([]HistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toHistoryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) UndoOperation(w http.ResponseWriter, r *http.Request) {
	h.replayOperation(w, r, h.History.Undo, "undo")
}

func (h *Handler) RedoOperation(w http.ResponseWriter, r *http.Request) {
	h.replayOperation(w, r, h.History.Redo, "redo")
}

func (h *Handler) replayOperation(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id string, force bool) (*schedule.UndoResult, *schedule.ConflictReport, error),
	name string,
) {
	var req UndoRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	result, report, err := op(r.Context(), chi.URLParam(r, "id"), req.Force)
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.UndoOperations.WithLabelValues(name + "_error").Inc()
		}
		h.writeDomainError(w, err)
		return
	}
	if report != nil {
		if h.Metrics != nil {
			h.Metrics.UndoOperations.WithLabelValues(name + "_conflict").Inc()
		}
		conflicts := make([]UndoConflictDTO, len(report.Conflicts))
		for i, c := range report.Conflicts {
			conflicts[i] = UndoConflictDTO{
				Type:         string(c.Type),
				AssignmentID: c.AssignmentID,
				Description:  c.Description,
			}
		}
		writeJSON(w, http.StatusConflict, UndoResponse{Applied: false, Conflicts: conflicts})
		return
	}

	if h.Metrics != nil {
		h.Metrics.UndoOperations.WithLabelValues(name + "_applied").Inc()
	}
	writeJSON(w, http.StatusOK, UndoResponse{
		Applied:       true,
		DeletedCount:  result.DeletedCount,
		RestoredCount: result.RestoredCount,
	})
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := calendar.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid year", err)
			return
		}
		year = y
	}
	holidays := calendar.HolidaysForYear(year)
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{Name: hol.Name, Date: hol.Date.String()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) parseRequestInput(providerID, start, end, block, leaveType string) (schedule.RequestInput, error) {
	startDate, err := calendar.ParseDate(start)
	if err != nil {
		return schedule.RequestInput{}, errors.New("invalid start_date (use YYYY-MM-DD)")
	}
	endDate, err := calendar.ParseDate(end)
	if err != nil {
		return schedule.RequestInput{}, errors.New("invalid end_date (use YYYY-MM-DD)")
	}
	tb := calendar.BlockBoth
	if block != "" {
		tb, err = calendar.ParseTimeBlock(block)
		if err != nil {
			return schedule.RequestInput{}, errors.New("invalid time_block")
		}
	}
	lt := schedule.LeaveVacation
	if leaveType != "" {
		lt = schedule.LeaveType(leaveType)
		if !schedule.ValidLeaveType(lt) {
			return schedule.RequestInput{}, errors.New("invalid leave_type")
		}
	}
	return schedule.RequestInput{
		ProviderID: providerID,
		StartDate:  startDate,
		EndDate:    endDate,
		TimeBlock:  tb,
		LeaveType:  lt,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	if status >= 500 {
		h.Log.Error(message, zap.Error(err))
		// Internal details stay in the log.
		resp.Details = ""
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps schedule package errors onto HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case schedule.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, schedule.ErrAlreadyUndone) || errors.Is(err, schedule.ErrNotUndone):
		h.writeError(w, http.StatusConflict, err.Error(), nil)
	case schedule.IsPolicyRejection(err):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case schedule.IsClientError(err):
		h.writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// rejectionKind labels policy rejections for the metrics counter.
func rejectionKind(err error) string {
	var holidayErr *schedule.HolidayError
	var ptoErr *schedule.PTOConflictError
	var availErr *schedule.AvailabilityError
	switch {
	case errors.As(err, &holidayErr):
		return "holiday"
	case errors.As(err, &ptoErr):
		return "pto_overlap"
	case errors.As(err, &availErr):
		return "availability"
	default:
		return "other"
	}
}
