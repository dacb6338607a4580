package rules

import (
	"fmt"

	"github.com/rpattn/enrollgate/internal/domain"
)

// Engine applies an ordered rule set to normalised records. It is safe for
// concurrent use because rules hold no mutable state.
type Engine struct {
	rules   []Rule
	catalog []domain.RuleInfo
}

// NewEngine creates an engine over rules in the given order.
func NewEngine(rules ...Rule) *Engine {
	e := &Engine{rules: make([]Rule, len(rules)), catalog: make([]domain.RuleInfo, len(rules))}
	copy(e.rules, rules)
	for i, r := range rules {
		e.catalog[i] = r.Info()
	}
	return e
}

// Catalog returns the rule descriptors in evaluation order.
func (e *Engine) Catalog() []domain.RuleInfo {
	out := make([]domain.RuleInfo, len(e.catalog))
	copy(out, e.catalog)
	return out
}

// Evaluate runs every rule against rec; no rule short-circuits another.
func (e *Engine) Evaluate(rec domain.NormalizedRecord) domain.RecordDecision {
	outcomes := make([]domain.RuleOutcome, 0, len(e.rules))
	for _, r := range e.rules {
		outcomes = append(outcomes, check(r, rec))
	}
	return domain.NewRecordDecision(rec.RecordID, rec.Line, outcomes)
}

// check converts a panicking rule into a failed outcome for that rule.
func check(r Rule, rec domain.NormalizedRecord) (outcome domain.RuleOutcome) {
	defer func() {
		if p := recover(); p != nil {
			outcome = domain.Fail(r.ID(), fmt.Sprintf("rule error: %v", p))
		}
	}()
	outcome = r.Check(rec)
	outcome.RuleID = r.ID()
	return outcome
}
