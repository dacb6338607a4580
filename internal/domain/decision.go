package domain

// Severity ranks how serious a rule failure is.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// DecisionStatus is the per-record outcome.
type DecisionStatus string

const (
	DecisionAccept DecisionStatus = "ACCEPT"
	DecisionReject DecisionStatus = "REJECT"
)

// RuleInfo describes a rule in the run's catalog.
type RuleInfo struct {
	RuleID   string   `json:"rule_id"`
	Version  string   `json:"version"`
	Severity Severity `json:"severity"`
	Scope    string   `json:"scope"`
}

// RuleOutcome is the result of one rule against one record.
type RuleOutcome struct {
	RuleID string `json:"rule_id"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Pass builds a passing outcome.
func Pass(ruleID string) RuleOutcome {
	return RuleOutcome{RuleID: ruleID, Passed: true}
}

// Fail builds a failing outcome.
func Fail(ruleID, reason string) RuleOutcome {
	return RuleOutcome{RuleID: ruleID, Passed: false, Reason: reason}
}

// RecordDecision aggregates every rule outcome for one record.
type RecordDecision struct {
	RecordID string         `json:"record_id"`
	Line     int            `json:"line"`
	Status   DecisionStatus `json:"status"`
	Outcomes []RuleOutcome  `json:"outcomes"`
}

// NewRecordDecision derives the status from the outcomes: REJECT iff any failed.
func NewRecordDecision(recordID string, line int, outcomes []RuleOutcome) RecordDecision {
	copied := make([]RuleOutcome, len(outcomes))
	copy(copied, outcomes)

	status := DecisionAccept
	for _, o := range copied {
		if !o.Passed {
			status = DecisionReject
			break
		}
	}
	return RecordDecision{
		RecordID: recordID,
		Line:     line,
		Status:   status,
		Outcomes: copied,
	}
}

// Accepted reports whether every rule passed.
func (d RecordDecision) Accepted() bool {
	return d.Status == DecisionAccept
}

// Failures returns the failing outcomes in rule order.
func (d RecordDecision) Failures() []RuleOutcome {
	var failures []RuleOutcome
	for _, o := range d.Outcomes {
		if !o.Passed {
			failures = append(failures, o)
		}
	}
	return failures
}

// FailedRuleIDs returns the ids of every failing rule in rule order.
func (d RecordDecision) FailedRuleIDs() []string {
	failures := d.Failures()
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.RuleID
	}
	return ids
}

// Reasons returns the failure reasons in rule order.
func (d RecordDecision) Reasons() []string {
	failures := d.Failures()
	reasons := make([]string, len(failures))
	for i, f := range failures {
		reasons[i] = f.Reason
	}
	return reasons
}
