package domain

import (
	"math"

	"github.com/cockroachdb/errors"
)

// RunStatus is the batch outcome decided by the quality gate.
type RunStatus string

const (
	RunStatusCompleted             RunStatus = "COMPLETED"
	RunStatusCompletedWithWarnings RunStatus = "COMPLETED_WITH_WARNINGS"
	RunStatusFailed                RunStatus = "FAILED"
)

// Successful reports whether the batch output is usable.
func (s RunStatus) Successful() bool {
	return s == RunStatusCompleted || s == RunStatusCompletedWithWarnings
}

// RuleDetail is the per-rule section of the quality report.
type RuleDetail struct {
	RuleID      string   `json:"rule_id"`
	Severity    Severity `json:"severity,omitempty"`
	FailedCount int      `json:"failed_count"`
	PassRate    float64  `json:"pass_rate"`
	FailureRate float64  `json:"failure_rate"`
	Examples    []string `json:"examples"`
}

// QualityMetrics is a batch snapshot. Valid + Invalid always equals Total.
type QualityMetrics struct {
	Total             int                `json:"total"`
	Valid             int                `json:"valid"`
	Invalid           int                `json:"invalid"`
	AcceptanceRate    float64            `json:"acceptance_rate"`
	RejectionRate     float64            `json:"rejection_rate"`
	FailureRateByRule map[string]float64 `json:"failure_rate_by_rule"`
	RuleDetails       []RuleDetail       `json:"rule_details"`
}

// Detail returns the rule detail for ruleID.
func (m QualityMetrics) Detail(ruleID string) (RuleDetail, bool) {
	for _, d := range m.RuleDetails {
		if d.RuleID == ruleID {
			return d, true
		}
	}
	return RuleDetail{}, false
}

// Gate metric names accepted in policy expressions.
const (
	MetricRejectionRate  = "rejection_rate"
	MetricInvalidRate    = "invalid_rate"
	MetricAcceptanceRate = "acceptance_rate"
)

// Comparison operators accepted in policy expressions.
const (
	OpLessOrEqual    = "<="
	OpLess           = "<"
	OpGreaterOrEqual = ">="
	OpGreater        = ">"
)

// QualityGatePolicy is a versioned, immutable threshold definition.
// DegradedLimit bounds the warning band; nil means any breach only warns.
type QualityGatePolicy struct {
	ID                string   `json:"policy_id"`
	Expression        string   `json:"expression"`
	Metric            string   `json:"metric"`
	Operator          string   `json:"operator"`
	Threshold         float64  `json:"threshold"`
	DegradedLimit     *float64 `json:"degraded_limit,omitempty"`
	MinAcceptanceRate *float64 `json:"min_acceptance_rate,omitempty"`
}

// GateResult records how a policy judged a batch.
type GateResult struct {
	PolicyID      string    `json:"policy_id"`
	Expression    string    `json:"expression"`
	Metric        string    `json:"metric"`
	Measured      float64   `json:"measured"`
	Threshold     float64   `json:"threshold"`
	DegradedLimit *float64  `json:"degraded_limit,omitempty"`
	Passed        bool      `json:"passed"`
	Status        RunStatus `json:"status"`
	Rationale     string    `json:"rationale"`
}

// Validate checks that the policy can be evaluated.
func (p QualityGatePolicy) Validate() error {
	if p.ID == "" {
		return errors.New("quality gate policy id is required")
	}
	switch p.Metric {
	case MetricRejectionRate, MetricInvalidRate, MetricAcceptanceRate:
	default:
		return errors.Newf("unsupported quality gate metric %q", p.Metric)
	}
	switch p.Operator {
	case OpLessOrEqual, OpLess, OpGreaterOrEqual, OpGreater:
	default:
		return errors.Newf("unsupported quality gate operator %q", p.Operator)
	}
	if !isRate(p.Threshold) {
		return errors.Newf("threshold %v must be within [0, 1]", p.Threshold)
	}
	if p.DegradedLimit != nil && !isRate(*p.DegradedLimit) {
		return errors.Newf("degraded limit %v must be within [0, 1]", *p.DegradedLimit)
	}
	if p.MinAcceptanceRate != nil && !isRate(*p.MinAcceptanceRate) {
		return errors.Newf("min acceptance rate %v must be within [0, 1]", *p.MinAcceptanceRate)
	}
	return nil
}

func isRate(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
