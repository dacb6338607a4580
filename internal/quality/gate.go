package quality

import (
	"fmt"

	"github.com/rpattn/enrollgate/internal/domain"
)

// EvaluateGate judges metrics against policy. The gate only classifies the
// batch; it never changes which records were accepted.
func EvaluateGate(m domain.QualityMetrics, p domain.QualityGatePolicy) domain.GateResult {
	exact := Measure(m, p.Metric)
	measured := Round(exact)
	result := domain.GateResult{
		PolicyID:      p.ID,
		Expression:    p.Expression,
		Metric:        p.Metric,
		Measured:      measured,
		Threshold:     p.Threshold,
		DegradedLimit: p.DegradedLimit,
		Passed:        compare(exact, p.Operator, p.Threshold),
	}

	switch {
	case result.Passed:
		result.Status = domain.RunStatusCompleted
		result.Rationale = fmt.Sprintf("%s=%.6g satisfies %s", p.Metric, exact, p.Expression)
		if p.MinAcceptanceRate != nil && Measure(m, domain.MetricAcceptanceRate) < *p.MinAcceptanceRate {
			result.Status = domain.RunStatusCompletedWithWarnings
			result.Rationale = fmt.Sprintf("%s=%.6g satisfies %s but acceptance_rate=%v is below %v",
				p.Metric, exact, p.Expression, m.AcceptanceRate, *p.MinAcceptanceRate)
		}
	case p.DegradedLimit == nil:
		result.Status = domain.RunStatusCompletedWithWarnings
		result.Rationale = fmt.Sprintf("%s=%.6g breaches %s; no degraded limit configured", p.Metric, exact, p.Expression)
	case compare(exact, p.Operator, *p.DegradedLimit):
		result.Status = domain.RunStatusCompletedWithWarnings
		result.Rationale = fmt.Sprintf("%s=%.6g breaches %s but is within degraded limit %v",
			p.Metric, exact, p.Expression, *p.DegradedLimit)
	default:
		result.Status = domain.RunStatusFailed
		result.Rationale = fmt.Sprintf("%s=%.6g breaches %s and degraded limit %v",
			p.Metric, exact, p.Expression, *p.DegradedLimit)
	}
	return result
}
