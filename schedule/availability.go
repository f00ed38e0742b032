/*
availability.go - Allow/block rule evaluation

PURPOSE:
  Decides whether a provider may work a service on a given weekday and
  time-block, and with what severity a violation is enforced.

ALLOW-LIST PRECEDENCE (named invariant):
  If ANY allow rules exist for a (provider, service) pair, the pair is
  allow-listed: only the enumerated (weekday, block) slots are legal,
  and every block rule for that pair is ignored. Block rules only
  apply to pairs with no allow rules at all. This mirrors long-standing
  department behavior; do not "fix" it.

ESCALATION:
  When an allow-listed pair has no matching slot, enforcement is hard
  if ANY of the pair's allow rules is hard, otherwise warn. A matching
  block rule uses its own enforcement and reason.

BOTH AS WILDCARD:
  A rule block of BOTH matches any requested block, and a requested
  block of BOTH matches any rule block.
*/
package schedule

import (
	"context"
	"fmt"

	"github.com/caredesk/schedule-engine/calendar"
)

// =============================================================================
// EVALUATOR
// =============================================================================

// AvailabilityResult is the outcome of one rule evaluation. Allowed
// with EnforceUnset means no rule constrained the slot. Not allowed
// with EnforceWarn means the caller's UI should confirm; EnforceHard
// means the write is refused unless explicitly overridden.
type AvailabilityResult struct {
	Allowed     bool
	Enforcement Enforcement
	Reason      string
	Rule        *AvailabilityRule
}

type Evaluator struct {
	Rules RuleStore
}

func NewEvaluator(rules RuleStore) *Evaluator {
	return &Evaluator{Rules: rules}
}

// CheckAvailability evaluates the configured rules for one slot.
// Read-only; callers decide whether a warn blocks the write (it never
// does here) or whether a hard does (it always does, absent override).
func (e *Evaluator) CheckAvailability(ctx context.Context, providerID, serviceID string, date calendar.Date, block calendar.TimeBlock) (AvailabilityResult, error) {
	rules, err := e.Rules.ListRulesForPair(ctx, providerID, serviceID)
	if err != nil {
		return AvailabilityResult{}, err
	}
	return evaluateRules(rules, date, block), nil
}

// evaluateRules is the shared core for single and bulk checks.
func evaluateRules(rules []AvailabilityRule, date calendar.Date, block calendar.TimeBlock) AvailabilityResult {
	if len(rules) == 0 {
		return AvailabilityResult{Allowed: true}
	}

	var allows []AvailabilityRule
	var blocks []AvailabilityRule
	for _, r := range rules {
		switch r.RuleType {
		case RuleAllow:
			allows = append(allows, r)
		case RuleBlock:
			blocks = append(blocks, r)
		}
	}

	// Allow-list precedence: any allow rule makes the pair allow-listed
	// and inerts every block rule for the pair.
	if len(allows) > 0 {
		for _, r := range allows {
			r := r
			if r.DayOfWeek == date.Weekday() && r.TimeBlock.Matches(block) {
				return AvailabilityResult{Allowed: true, Rule: &r}
			}
		}
		enforcement := EnforceWarn
		for _, r := range allows {
			if r.Enforcement == EnforceHard {
				enforcement = EnforceHard
				break
			}
		}
		return AvailabilityResult{
			Allowed:     false,
			Enforcement: enforcement,
			Reason:      fmt.Sprintf("%s %s is not in the provider's allowed slots for this service", date.Weekday(), block),
		}
	}

	for _, r := range blocks {
		r := r
		if r.DayOfWeek == date.Weekday() && r.TimeBlock.Matches(block) {
			reason := r.Reason
			if reason == "" {
				reason = fmt.Sprintf("%s %s is blocked for this provider and service", date.Weekday(), block)
			}
			return AvailabilityResult{
				Allowed:     false,
				Enforcement: r.Enforcement,
				Reason:      reason,
				Rule:        &r,
			}
		}
	}

	return AvailabilityResult{Allowed: true}
}

// =============================================================================
// BULK EVALUATION
// =============================================================================

// AvailabilityCheck is one (provider, service, date, block) tuple in a
// bulk evaluation.
type AvailabilityCheck struct {
	ProviderID string
	ServiceID  string
	Date       calendar.Date
	TimeBlock  calendar.TimeBlock
}

// AvailabilityViolation pairs a failed check with its evaluation.
type AvailabilityViolation struct {
	Check  AvailabilityCheck
	Result AvailabilityResult
}

// BulkAvailabilityResult partitions violations by severity.
type BulkAvailabilityResult struct {
	HardBlocks []AvailabilityViolation
	Warnings   []AvailabilityViolation
}

// CheckBulkAvailability runs the same evaluation across many tuples,
// pre-fetching all rules for the involved provider/service sets in one
// pass and grouping them by pair.
func (e *Evaluator) CheckBulkAvailability(ctx context.Context, checks []AvailabilityCheck) (BulkAvailabilityResult, error) {
	if len(checks) == 0 {
		return BulkAvailabilityResult{}, nil
	}

	providerIDs := uniqueStrings(checks, func(c AvailabilityCheck) string { return c.ProviderID })
	serviceIDs := uniqueStrings(checks, func(c AvailabilityCheck) string { return c.ServiceID })

	rules, err := e.Rules.ListRulesForSets(ctx, providerIDs, serviceIDs)
	if err != nil {
		return BulkAvailabilityResult{}, err
	}

	type pair struct{ provider, service string }
	byPair := make(map[pair][]AvailabilityRule)
	for _, r := range rules {
		k := pair{r.ProviderID, r.ServiceID}
		byPair[k] = append(byPair[k], r)
	}

	var out BulkAvailabilityResult
	for _, c := range checks {
		res := evaluateRules(byPair[pair{c.ProviderID, c.ServiceID}], c.Date, c.TimeBlock)
		if res.Allowed {
			continue
		}
		v := AvailabilityViolation{Check: c, Result: res}
		if res.Enforcement == EnforceHard {
			out.HardBlocks = append(out.HardBlocks, v)
		} else {
			out.Warnings = append(out.Warnings, v)
		}
	}
	return out, nil
}

func uniqueStrings(checks []AvailabilityCheck, key func(AvailabilityCheck) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range checks {
		k := key(c)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
