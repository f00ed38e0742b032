// Package store provides an in-memory schedule.Store for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/caredesk/schedule-engine/calendar"
	"github.com/caredesk/schedule-engine/schedule"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type cfgKey struct {
	ProviderID string
	Year       int
}

type Memory struct {
	mu           sync.RWMutex
	providers    map[string]schedule.Provider
	services     map[string]schedule.Service
	assignments  map[string]schedule.Assignment
	rules        map[string]schedule.AvailabilityRule
	requests     map[string]schedule.PTORequest
	leaves       map[string]schedule.ProviderLeave
	configs      map[cfgKey]schedule.ProviderPTOConfig
	roleDefaults map[schedule.Role]schedule.PTORoleDefault
	templates    map[string]schedule.WeekTemplate
	history      map[string]schedule.ChangeHistoryEntry
	historyOrder []string
}

var _ schedule.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		providers:    make(map[string]schedule.Provider),
		services:     make(map[string]schedule.Service),
		assignments:  make(map[string]schedule.Assignment),
		rules:        make(map[string]schedule.AvailabilityRule),
		requests:     make(map[string]schedule.PTORequest),
		leaves:       make(map[string]schedule.ProviderLeave),
		configs:      make(map[cfgKey]schedule.ProviderPTOConfig),
		roleDefaults: make(map[schedule.Role]schedule.PTORoleDefault),
		templates:    make(map[string]schedule.WeekTemplate),
		history:      make(map[string]schedule.ChangeHistoryEntry),
	}
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func (m *Memory) InsertAssignment(_ context.Context, a schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) InsertAssignments(_ context.Context, as []schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range as {
		m.assignments[a.ID] = a
	}
	return nil
}

func (m *Memory) UpsertAssignment(_ context.Context, a schedule.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[a.ID] = a
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, id string) (*schedule.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) DeleteAssignment(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.assignments[id]
	delete(m.assignments, id)
	return ok, nil
}

func (m *Memory) DeleteAssignments(_ context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := m.assignments[id]; ok {
			delete(m.assignments, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) ListAssignments(_ context.Context, f schedule.AssignmentFilter) ([]schedule.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.Assignment
	for _, a := range m.assignments {
		if matchesFilter(a, f) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].TimeBlock != out[j].TimeBlock {
			return out[i].TimeBlock < out[j].TimeBlock
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesFilter(a schedule.Assignment, f schedule.AssignmentFilter) bool {
	if f.ProviderID != "" && a.ProviderID != f.ProviderID {
		return false
	}
	if f.ServiceID != "" && a.ServiceID != f.ServiceID {
		return false
	}
	if f.TimeBlock != nil && a.TimeBlock != *f.TimeBlock {
		return false
	}
	if f.From != nil && a.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && a.Date.After(*f.To) {
		return false
	}
	if f.IsPTO != nil && a.IsPTO != *f.IsPTO {
		return false
	}
	return true
}

func (m *Memory) AssignmentExists(_ context.Context, date calendar.Date, serviceID string, block calendar.TimeBlock) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.assignments {
		if a.Date.Equal(date) && a.ServiceID == serviceID && a.TimeBlock == block {
			return true, nil
		}
	}
	return false, nil
}

// =============================================================================
// PROVIDERS / SERVICES
// =============================================================================

func (m *Memory) SaveProvider(_ context.Context, p schedule.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[p.ID] = p
	return nil
}

func (m *Memory) GetProvider(_ context.Context, id string) (*schedule.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListProviders(_ context.Context) ([]schedule.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteProvider(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providers, id)
	return nil
}

func (m *Memory) SaveService(_ context.Context, s schedule.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
	return nil
}

func (m *Memory) GetService(_ context.Context, id string) (*schedule.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListServices(_ context.Context) ([]schedule.Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.Service, 0, len(m.services))
	for _, s := range m.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteService(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.services, id)
	return nil
}

// =============================================================================
// AVAILABILITY RULES
// =============================================================================

func (m *Memory) SaveRule(_ context.Context, r schedule.AvailabilityRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.ID] = r
	return nil
}

func (m *Memory) DeleteRule(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

func (m *Memory) ListRulesForPair(_ context.Context, providerID, serviceID string) ([]schedule.AvailabilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.AvailabilityRule
	for _, r := range m.rules {
		if r.ProviderID == providerID && r.ServiceID == serviceID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListRulesForSets(_ context.Context, providerIDs, serviceIDs []string) ([]schedule.AvailabilityRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pset := make(map[string]bool, len(providerIDs))
	for _, id := range providerIDs {
		pset[id] = true
	}
	sset := make(map[string]bool, len(serviceIDs))
	for _, id := range serviceIDs {
		sset[id] = true
	}
	var out []schedule.AvailabilityRule
	for _, r := range m.rules {
		if pset[r.ProviderID] && sset[r.ServiceID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// PTO
// =============================================================================

func (m *Memory) SavePTORequest(_ context.Context, r schedule.PTORequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetPTORequest(_ context.Context, id string) (*schedule.PTORequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) ListPTORequests(_ context.Context, f schedule.PTORequestFilter) ([]schedule.PTORequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.PTORequest
	for _, r := range m.requests {
		if f.ProviderID != "" && r.ProviderID != f.ProviderID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.OverlapFrom != nil && f.OverlapTo != nil && !r.Overlaps(*f.OverlapFrom, *f.OverlapTo) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeletePTORequest(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.requests[id]
	delete(m.requests, id)
	return ok, nil
}

func (m *Memory) DeletePTORequestsCovering(_ context.Context, providerID string, date calendar.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, r := range m.requests {
		if r.ProviderID == providerID && r.StartDate.BeforeOrEqual(date) && r.EndDate.AfterOrEqual(date) {
			delete(m.requests, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) SaveLeave(_ context.Context, l schedule.ProviderLeave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves[l.ID] = l
	return nil
}

func (m *Memory) ListLeavesOverlapping(_ context.Context, from, to calendar.Date) ([]schedule.ProviderLeave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ProviderLeave
	for _, l := range m.leaves {
		if l.Overlaps(from, to) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) DeleteLeavesCovering(_ context.Context, providerID string, date calendar.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, l := range m.leaves {
		if l.ProviderID == providerID && l.StartDate.BeforeOrEqual(date) && l.EndDate.AfterOrEqual(date) {
			delete(m.leaves, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) GetPTOConfig(_ context.Context, providerID string, year int) (*schedule.ProviderPTOConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[cfgKey{providerID, year}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) SavePTOConfig(_ context.Context, c schedule.ProviderPTOConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[cfgKey{c.ProviderID, c.Year}] = c
	return nil
}

func (m *Memory) GetRoleDefault(_ context.Context, role schedule.Role) (*schedule.PTORoleDefault, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.roleDefaults[role]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *Memory) SaveRoleDefault(_ context.Context, d schedule.PTORoleDefault) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleDefaults[d.Role] = d
	return nil
}

// =============================================================================
// TEMPLATES
// =============================================================================

func (m *Memory) SaveTemplate(_ context.Context, t schedule.WeekTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.ID] = t
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id string) (*schedule.WeekTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]schedule.WeekTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schedule.WeekTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

// =============================================================================
// CHANGE HISTORY
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, e schedule.ChangeHistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[e.ID] = e
	m.historyOrder = append(m.historyOrder, e.ID)
	return nil
}

func (m *Memory) GetEntry(_ context.Context, id string) (*schedule.ChangeHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.history[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (m *Memory) ListEntries(_ context.Context, limit int) ([]schedule.ChangeHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []schedule.ChangeHistoryEntry
	for i := len(m.historyOrder) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.history[m.historyOrder[i]])
	}
	return out, nil
}

func (m *Memory) MarkUndone(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.history[id]
	if !ok {
		return schedule.ErrEntryNotFound
	}
	e.IsUndone = true
	e.UndoneAt = &at
	e.IsRedone = false
	e.RedoneAt = nil
	m.history[id] = e
	return nil
}

func (m *Memory) MarkRedone(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.history[id]
	if !ok {
		return schedule.ErrEntryNotFound
	}
	e.IsRedone = true
	e.RedoneAt = &at
	e.IsUndone = false
	e.UndoneAt = nil
	m.history[id] = e
	return nil
}
