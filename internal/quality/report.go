package quality

import "github.com/rpattn/enrollgate/internal/domain"

// ReportSchema identifies the data_quality_report.json layout.
const ReportSchema = "enrollgate.data_quality_report.v1"

// Report is the data_quality_report.json payload. It carries no run identity
// or timestamps so identical input and policy give identical bytes.
type Report struct {
	Schema            string              `json:"schema"`
	Totals            Totals              `json:"totals"`
	FailureRateByRule map[string]float64  `json:"failure_rate_by_rule"`
	RuleDetails       []domain.RuleDetail `json:"rule_details"`
	QualityGate       GateSection         `json:"quality_gate"`
	Notes             []string            `json:"notes"`
}

// Totals are the batch counts and rates.
type Totals struct {
	Total          int     `json:"total"`
	Valid          int     `json:"valid"`
	Invalid        int     `json:"invalid"`
	AcceptanceRate float64 `json:"acceptance_rate"`
	RejectionRate  float64 `json:"rejection_rate"`
}

// GateSection embeds the policy verbatim next to its result.
type GateSection struct {
	Policy domain.QualityGatePolicy `json:"policy"`
	Result domain.GateResult        `json:"result"`
}

// BuildReport assembles the quality report.
func BuildReport(m domain.QualityMetrics, gate domain.GateResult, p domain.QualityGatePolicy) Report {
	details := m.RuleDetails
	if details == nil {
		details = []domain.RuleDetail{}
	}
	byRule := m.FailureRateByRule
	if byRule == nil {
		byRule = map[string]float64{}
	}
	return Report{
		Schema: ReportSchema,
		Totals: Totals{
			Total:          m.Total,
			Valid:          m.Valid,
			Invalid:        m.Invalid,
			AcceptanceRate: m.AcceptanceRate,
			RejectionRate:  m.RejectionRate,
		},
		FailureRateByRule: byRule,
		RuleDetails:       details,
		QualityGate:       GateSection{Policy: p, Result: gate},
		Notes: []string{
			"rates are rounded to 4 decimals and are 0 when total is 0",
			"a record may fail several rules; failed_count per rule can exceed invalid",
			"examples list the record ids with the lowest source lines per rule",
		},
	}
}
