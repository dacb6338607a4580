package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rpattn/enrollgate/internal/domain"
)

// RequiredFieldsRule fails when any required field is empty after normalisation.
// A date that could not be parsed counts as missing.
type RequiredFieldsRule struct {
	fields []string
}

// NewRequiredFieldsRule creates the rule for the given field names.
func NewRequiredFieldsRule(fields []string) *RequiredFieldsRule {
	copied := make([]string, len(fields))
	copy(copied, fields)
	return &RequiredFieldsRule{fields: copied}
}

func (r *RequiredFieldsRule) ID() string { return RuleRequiredFields }

func (r *RequiredFieldsRule) Info() domain.RuleInfo {
	return info(RuleRequiredFields, domain.SeverityHigh)
}

func (r *RequiredFieldsRule) Check(rec domain.NormalizedRecord) domain.RuleOutcome {
	var missing []string
	for _, field := range r.fields {
		if !present(rec, field) {
			missing = append(missing, field)
		}
	}
	if len(missing) == 0 {
		return domain.Pass(RuleRequiredFields)
	}
	return domain.Fail(RuleRequiredFields, "missing required fields: "+strings.Join(missing, ", "))
}

// present reports whether field carries a usable value. An amount that was
// supplied but is not numeric counts as present; AMOUNT_RANGE judges it.
func present(rec domain.NormalizedRecord, field string) bool {
	switch field {
	case domain.FieldIDSolicitud:
		return rec.IDSolicitud != ""
	case domain.FieldFechaSolicitud:
		return rec.FechaSolicitud != ""
	case domain.FieldTipoProducto:
		return rec.TipoProducto != ""
	case domain.FieldIDCliente:
		return rec.IDCliente != ""
	case domain.FieldMontoOLimite:
		if rec.MontoOLimite != nil {
			return true
		}
		_, supplied := rec.IssueFor(domain.FieldMontoOLimite)
		return supplied
	case domain.FieldMoneda:
		return rec.Moneda != ""
	case domain.FieldPais:
		return rec.Pais != ""
	case domain.FieldRiskScore:
		if rec.RiskScore != nil {
			return true
		}
		_, supplied := rec.IssueFor(domain.FieldRiskScore)
		return supplied
	default:
		return false
	}
}

// FieldFormatRule fails records the adapter could not decode and records whose
// typed optional fields (is_vip, risk_score) could not be coerced.
type FieldFormatRule struct{}

// NewFieldFormatRule creates the rule.
func NewFieldFormatRule() *FieldFormatRule { return &FieldFormatRule{} }

func (r *FieldFormatRule) ID() string { return RuleFieldFormat }

func (r *FieldFormatRule) Info() domain.RuleInfo {
	return info(RuleFieldFormat, domain.SeverityHigh)
}

func (r *FieldFormatRule) Check(rec domain.NormalizedRecord) domain.RuleOutcome {
	var reasons []string
	if rec.DecodeError != "" {
		reasons = append(reasons, "decode error: "+rec.DecodeError)
	}
	for _, field := range []string{domain.FieldIsVIP, domain.FieldRiskScore} {
		if issue, ok := rec.IssueFor(field); ok {
			reasons = append(reasons, issue.Reason)
		}
	}
	if len(reasons) == 0 {
		return domain.Pass(RuleFieldFormat)
	}
	return domain.Fail(RuleFieldFormat, strings.Join(reasons, "; "))
}

// CurrencyAllowedRule checks moneda against an allow-list. An empty currency
// passes here and is reported by REQUIRED_FIELDS.
type CurrencyAllowedRule struct {
	allowed []string
	set     map[string]struct{}
}

// NewCurrencyAllowedRule creates the rule. Codes are compared upper-cased.
func NewCurrencyAllowedRule(allowed []string) *CurrencyAllowedRule {
	r := &CurrencyAllowedRule{set: make(map[string]struct{}, len(allowed))}
	for _, code := range allowed {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, dup := r.set[code]; dup {
			continue
		}
		r.set[code] = struct{}{}
		r.allowed = append(r.allowed, code)
	}
	return r
}

func (r *CurrencyAllowedRule) ID() string { return RuleCurrencyAllowed }

func (r *CurrencyAllowedRule) Info() domain.RuleInfo {
	return info(RuleCurrencyAllowed, domain.SeverityMedium)
}

func (r *CurrencyAllowedRule) Check(rec domain.NormalizedRecord) domain.RuleOutcome {
	if rec.Moneda == "" {
		return domain.Pass(RuleCurrencyAllowed)
	}
	if _, ok := r.set[rec.Moneda]; ok {
		return domain.Pass(RuleCurrencyAllowed)
	}
	return domain.Fail(RuleCurrencyAllowed,
		fmt.Sprintf("moneda '%s' not in allowed list [%s]", rec.Moneda, strings.Join(r.allowed, ", ")))
}

// AmountRangeRule checks monto_o_limite against an inclusive range. A missing
// amount passes here and is reported by REQUIRED_FIELDS.
type AmountRangeRule struct {
	min, max float64
}

// NewAmountRangeRule creates the rule for [min, max].
func NewAmountRangeRule(min, max float64) *AmountRangeRule {
	return &AmountRangeRule{min: min, max: max}
}

func (r *AmountRangeRule) ID() string { return RuleAmountRange }

func (r *AmountRangeRule) Info() domain.RuleInfo {
	return info(RuleAmountRange, domain.SeverityMedium)
}

func (r *AmountRangeRule) Check(rec domain.NormalizedRecord) domain.RuleOutcome {
	if rec.MontoOLimite == nil {
		if issue, ok := rec.IssueFor(domain.FieldMontoOLimite); ok {
			return domain.Fail(RuleAmountRange, issue.Reason)
		}
		return domain.Pass(RuleAmountRange)
	}
	v := *rec.MontoOLimite
	if v < r.min || v > r.max {
		return domain.Fail(RuleAmountRange, fmt.Sprintf("monto_o_limite %s out of range [%s, %s]",
			formatAmount(v), formatAmount(r.min), formatAmount(r.max)))
	}
	return domain.Pass(RuleAmountRange)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
