package quality

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// Default policy values.
const (
	DefaultPolicyID         = "quality_gate.v1"
	DefaultPolicyExpression = "rejection_rate <= 0.05"
)

// PolicyOption customises a parsed policy.
type PolicyOption func(*domain.QualityGatePolicy)

// WithDegradedLimit bounds the warning band. Beyond it the gate fails.
func WithDegradedLimit(limit float64) PolicyOption {
	return func(p *domain.QualityGatePolicy) {
		v := limit
		p.DegradedLimit = &v
	}
}

// WithMinAcceptanceRate downgrades an otherwise passing batch whose acceptance
// rate is below min.
func WithMinAcceptanceRate(min float64) PolicyOption {
	return func(p *domain.QualityGatePolicy) {
		v := min
		p.MinAcceptanceRate = &v
	}
}

// DefaultPolicy returns quality_gate.v1.
func DefaultPolicy() domain.QualityGatePolicy {
	p, err := ParsePolicy(DefaultPolicyID, DefaultPolicyExpression)
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePolicy parses "<metric> <op> <number>", e.g. "rejection_rate <= 0.05".
func ParsePolicy(id, expression string, opts ...PolicyOption) (domain.QualityGatePolicy, error) {
	metric, op, threshold, err := parseExpression(expression)
	if err != nil {
		return domain.QualityGatePolicy{}, errors.WithHint(
			errors.Wrapf(err, "parse quality gate expression %q", expression),
			"expected <metric> <op> <number> with metric rejection_rate, invalid_rate or acceptance_rate",
		)
	}

	p := domain.QualityGatePolicy{
		ID:         strings.TrimSpace(id),
		Expression: fmt.Sprintf("%s %s %s", metric, op, strconv.FormatFloat(threshold, 'f', -1, 64)),
		Metric:     metric,
		Operator:   op,
		Threshold:  threshold,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if err := p.Validate(); err != nil {
		return domain.QualityGatePolicy{}, err
	}
	return p, nil
}

func parseExpression(expression string) (string, string, float64, error) {
	expr := strings.TrimSpace(expression)
	// Two-character operators first so "<=" is not read as "<".
	for _, op := range []string{domain.OpLessOrEqual, domain.OpGreaterOrEqual, domain.OpLess, domain.OpGreater} {
		idx := strings.Index(expr, op)
		if idx < 0 {
			continue
		}
		metric := strings.ToLower(strings.TrimSpace(expr[:idx]))
		value := strings.TrimSpace(expr[idx+len(op):])
		if metric == "" || value == "" {
			return "", "", 0, errors.New("incomplete expression")
		}
		threshold, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return "", "", 0, errors.Wrapf(err, "threshold %q", value)
		}
		return metric, op, threshold, nil
	}
	return "", "", 0, errors.New("no comparison operator")
}

// Measure returns the exact value of metric, computed from the counts in m.
// The rates stored in m are rounded for reporting and must not be compared
// against thresholds.
func Measure(m domain.QualityMetrics, metric string) float64 {
	if metric == domain.MetricAcceptanceRate {
		return exactRate(m.Valid, m.Total)
	}
	return exactRate(m.Invalid, m.Total)
}

func exactRate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func compare(measured float64, op string, limit float64) bool {
	switch op {
	case domain.OpLessOrEqual:
		return measured <= limit
	case domain.OpLess:
		return measured < limit
	case domain.OpGreaterOrEqual:
		return measured >= limit
	case domain.OpGreater:
		return measured > limit
	default:
		return false
	}
}
