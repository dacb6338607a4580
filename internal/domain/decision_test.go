package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordDecisionRejectsOnAnyFailure(t *testing.T) {
	outcomes := []RuleOutcome{
		Pass("REQUIRED_FIELDS"),
		Fail("CURRENCY_ALLOWED", "moneda 'GBP' not allowed"),
		Fail("AMOUNT_RANGE", "monto_o_limite 0 out of range"),
	}

	d := NewRecordDecision("REQ-1", 3, outcomes)

	assert.Equal(t, DecisionReject, d.Status)
	assert.False(t, d.Accepted())
	assert.Equal(t, []string{"CURRENCY_ALLOWED", "AMOUNT_RANGE"}, d.FailedRuleIDs())
	assert.Equal(t, []string{"moneda 'GBP' not allowed", "monto_o_limite 0 out of range"}, d.Reasons())
	require.Len(t, d.Outcomes, 3)
}

func TestNewRecordDecisionAcceptsWhenAllPass(t *testing.T) {
	d := NewRecordDecision("REQ-2", 1, []RuleOutcome{Pass("A"), Pass("B")})

	assert.Equal(t, DecisionAccept, d.Status)
	assert.Empty(t, d.Failures())
}

func TestNewRecordDecisionCopiesOutcomes(t *testing.T) {
	outcomes := []RuleOutcome{Pass("A")}
	d := NewRecordDecision("REQ-3", 1, outcomes)

	outcomes[0] = Fail("A", "mutated")

	assert.True(t, d.Accepted())
	assert.True(t, d.Outcomes[0].Passed)
}

func TestRawRecordIDFallsBackToLine(t *testing.T) {
	r := NewRawRecord(7, []Field{{Name: FieldIDSolicitud, Value: "  "}}, "")
	assert.Equal(t, "line:7", r.RecordID())

	r = NewRawRecord(8, []Field{{Name: FieldIDSolicitud, Value: " REQ-8 "}}, "")
	assert.Equal(t, "REQ-8", r.RecordID())

	_, ok := r.Lookup(FieldMoneda)
	assert.False(t, ok)
}
