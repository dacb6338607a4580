package quality

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
)

var catalog = []domain.RuleInfo{
	{RuleID: "REQUIRED_FIELDS", Version: "v1", Severity: domain.SeverityHigh},
	{RuleID: "CURRENCY_ALLOWED", Version: "v1", Severity: domain.SeverityMedium},
	{RuleID: "AMOUNT_RANGE", Version: "v1", Severity: domain.SeverityMedium},
}

func decision(line int, failed ...string) domain.RecordDecision {
	outcomes := []domain.RuleOutcome{}
	for _, info := range catalog {
		outcome := domain.Pass(info.RuleID)
		for _, f := range failed {
			if f == info.RuleID {
				outcome = domain.Fail(f, "failed")
			}
		}
		outcomes = append(outcomes, outcome)
	}
	return domain.NewRecordDecision(fmt.Sprintf("REQ-%d", line), line, outcomes)
}

// twentyRecordBatch has 9 accepted and 11 rejected records.
func twentyRecordBatch() []domain.RecordDecision {
	var out []domain.RecordDecision
	line := 2
	for i := 0; i < 9; i++ {
		out = append(out, decision(line))
		line++
	}
	for i := 0; i < 5; i++ {
		out = append(out, decision(line, "CURRENCY_ALLOWED"))
		line++
	}
	for i := 0; i < 4; i++ {
		out = append(out, decision(line, "AMOUNT_RANGE"))
		line++
	}
	for i := 0; i < 2; i++ {
		out = append(out, decision(line, "REQUIRED_FIELDS", "AMOUNT_RANGE"))
		line++
	}
	return out
}

func TestAggregatorTwentyRecordScenario(t *testing.T) {
	agg := NewAggregator(DefaultExampleLimit)
	for _, d := range twentyRecordBatch() {
		agg.Add(d)
	}
	m := agg.Metrics(catalog)

	assert.Equal(t, 20, m.Total)
	assert.Equal(t, 9, m.Valid)
	assert.Equal(t, 11, m.Invalid)
	assert.Equal(t, m.Total, m.Valid+m.Invalid)
	assert.Equal(t, 0.55, m.RejectionRate)
	assert.Equal(t, 0.45, m.AcceptanceRate)

	amount, ok := m.Detail("AMOUNT_RANGE")
	require.True(t, ok)
	assert.Equal(t, 6, amount.FailedCount)
	assert.Equal(t, 0.3, amount.FailureRate)
	assert.Equal(t, 0.7, amount.PassRate)
	assert.Equal(t, []string{"REQ-16", "REQ-17", "REQ-18", "REQ-19", "REQ-20"}, amount.Examples)

	gate := EvaluateGate(m, DefaultPolicy())
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, gate.Status)
	assert.False(t, gate.Passed)
	assert.Equal(t, 0.55, gate.Measured)

	legacy, err := ParsePolicy(DefaultPolicyID, "rejection_rate <= 0.40")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, EvaluateGate(m, legacy).Status)
}

func TestFailedCountMatchesDecisions(t *testing.T) {
	batch := twentyRecordBatch()
	agg := NewAggregator(2)
	for _, d := range batch {
		agg.Add(d)
	}
	m := agg.Metrics(catalog)

	for _, info := range catalog {
		want := 0
		for _, d := range batch {
			for _, id := range d.FailedRuleIDs() {
				if id == info.RuleID {
					want++
				}
			}
		}
		detail, _ := m.Detail(info.RuleID)
		if detail.FailedCount != want {
			t.Fatalf("%s failed_count = %d, want %d", info.RuleID, detail.FailedCount, want)
		}
		assert.LessOrEqual(t, len(detail.Examples), 2)
	}
}

func TestAggregatorMergeIsOrderIndependent(t *testing.T) {
	batch := twentyRecordBatch()

	sequential := NewAggregator(3)
	for _, d := range batch {
		sequential.Add(d)
	}

	left, right := NewAggregator(3), NewAggregator(3)
	for i := len(batch) - 1; i >= 0; i-- {
		if i%2 == 0 {
			left.Add(batch[i])
		} else {
			right.Add(batch[i])
		}
	}
	right.Merge(left)

	assert.Equal(t, sequential.Metrics(catalog), right.Metrics(catalog))
}

func TestEmptyBatchHasZeroRatesAndAllRules(t *testing.T) {
	m := NewAggregator(DefaultExampleLimit).Metrics(catalog)

	assert.Equal(t, 0, m.Total)
	assert.Equal(t, 0.0, m.RejectionRate)
	assert.Equal(t, 0.0, m.AcceptanceRate)
	require.Len(t, m.RuleDetails, len(catalog))
	for _, d := range m.RuleDetails {
		assert.Equal(t, 0, d.FailedCount)
		assert.Equal(t, 0.0, d.PassRate)
		assert.NotNil(t, d.Examples)
	}
	assert.Equal(t, domain.RunStatusCompleted, EvaluateGate(m, DefaultPolicy()).Status)
}

func TestUnknownRuleIsAppendedAfterCatalog(t *testing.T) {
	agg := NewAggregator(1)
	agg.Add(domain.NewRecordDecision("REQ-1", 2, []domain.RuleOutcome{domain.Fail("ZZZ", "x"), domain.Fail("AAA", "y")}))
	m := agg.Metrics(catalog)

	require.Len(t, m.RuleDetails, 5)
	assert.Equal(t, "AAA", m.RuleDetails[3].RuleID)
	assert.Equal(t, "ZZZ", m.RuleDetails[4].RuleID)
	assert.Equal(t, 1.0, m.FailureRateByRule["AAA"])
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("custom.v2", "  invalid_rate<0.4 ")
	require.NoError(t, err)
	assert.Equal(t, domain.MetricInvalidRate, p.Metric)
	assert.Equal(t, domain.OpLess, p.Operator)
	assert.Equal(t, 0.4, p.Threshold)
	assert.Equal(t, "invalid_rate < 0.4", p.Expression)

	p, err = ParsePolicy("acc.v1", "acceptance_rate >= 0.9")
	require.NoError(t, err)
	assert.Equal(t, domain.OpGreaterOrEqual, p.Operator)

	for _, bad := range []string{"", "rejection_rate", "rejection_rate <= abc", "latency <= 0.1", "rejection_rate <= 1.5"} {
		_, err := ParsePolicy("bad", bad)
		assert.Error(t, err, bad)
	}
	_, err = ParsePolicy("", "rejection_rate <= 0.1")
	assert.Error(t, err)
}

func TestGateFailsOnlyBeyondDegradedLimit(t *testing.T) {
	m := domain.QualityMetrics{Total: 20, Valid: 9, Invalid: 11, RejectionRate: 0.55, AcceptanceRate: 0.45}

	within, err := ParsePolicy("q", "rejection_rate <= 0.05", WithDegradedLimit(0.60))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, EvaluateGate(m, within).Status)

	beyond, err := ParsePolicy("q", "rejection_rate <= 0.05", WithDegradedLimit(0.40))
	require.NoError(t, err)
	result := EvaluateGate(m, beyond)
	assert.Equal(t, domain.RunStatusFailed, result.Status)
	assert.Contains(t, result.Rationale, "degraded limit")
}

func TestGateBoundaryIsInclusiveForLessOrEqual(t *testing.T) {
	m := domain.QualityMetrics{Total: 20, Valid: 19, Invalid: 1, RejectionRate: 0.05, AcceptanceRate: 0.95}
	assert.Equal(t, domain.RunStatusCompleted, EvaluateGate(m, DefaultPolicy()).Status)
}

func TestMinAcceptanceRateDowngrades(t *testing.T) {
	m := domain.QualityMetrics{Total: 10, Valid: 6, Invalid: 4, RejectionRate: 0.4, AcceptanceRate: 0.6}
	p, err := ParsePolicy("q", "rejection_rate <= 0.40", WithMinAcceptanceRate(0.7))
	require.NoError(t, err)

	result := EvaluateGate(m, p)
	assert.True(t, result.Passed)
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, result.Status)
}

func TestReportIsDeterministic(t *testing.T) {
	build := func() []byte {
		agg := NewAggregator(DefaultExampleLimit)
		for _, d := range twentyRecordBatch() {
			agg.Add(d)
		}
		m := agg.Metrics(catalog)
		p := DefaultPolicy()
		b, err := json.Marshal(BuildReport(m, EvaluateGate(m, p), p))
		require.NoError(t, err)
		return b
	}
	first := build()
	assert.Equal(t, first, build())
	assert.NotContains(t, string(first), "run_id")
	assert.Contains(t, string(first), ReportSchema)
}

func TestGateComparesUnroundedRate(t *testing.T) {
	// 1001/20001 rounds to 0.0500 but is above 0.05.
	agg := NewAggregator(DefaultExampleLimit)
	for line := 2; line < 2+20001; line++ {
		if line < 2+1001 {
			agg.Add(decision(line, "CURRENCY_ALLOWED"))
		} else {
			agg.Add(decision(line))
		}
	}
	m := agg.Metrics(catalog)
	require.Equal(t, 0.05, m.RejectionRate)

	result := EvaluateGate(m, DefaultPolicy())
	assert.False(t, result.Passed)
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, result.Status)
	assert.Equal(t, 0.05, result.Measured)
	assert.Contains(t, result.Rationale, "0.0500475")

	limit, err := ParsePolicy("q", "rejection_rate <= 0.01", WithDegradedLimit(0.05))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusFailed, EvaluateGate(m, limit).Status)
}

func TestMinAcceptanceRateUsesUnroundedRate(t *testing.T) {
	// 6999/10001 is 0.69983..., rendered as 0.6998.
	agg := NewAggregator(DefaultExampleLimit)
	for line := 2; line < 2+10001; line++ {
		if line < 2+3002 {
			agg.Add(decision(line, "AMOUNT_RANGE"))
		} else {
			agg.Add(decision(line))
		}
	}
	m := agg.Metrics(catalog)
	require.Equal(t, 0.6998, m.AcceptanceRate)

	p, err := ParsePolicy("q", "rejection_rate <= 0.40", WithMinAcceptanceRate(0.69985))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompletedWithWarnings, EvaluateGate(m, p).Status)

	p, err = ParsePolicy("q", "rejection_rate <= 0.40", WithMinAcceptanceRate(0.6998))
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, EvaluateGate(m, p).Status)
}
