// Package rules holds the eligibility rules and the engine that applies them.
package rules

import "github.com/rpattn/enrollgate/internal/domain"

// Rule identifiers. They are part of the artifact contract.
const (
	RuleRequiredFields  = "REQUIRED_FIELDS"
	RuleFieldFormat     = "FIELD_FORMAT"
	RuleCurrencyAllowed = "CURRENCY_ALLOWED"
	RuleAmountRange     = "AMOUNT_RANGE"
)

// Version is stamped on every built-in rule.
const Version = "v1"

const eligibilityScope = "eligibility"

// Rule is a single side-effect free eligibility check.
type Rule interface {
	ID() string
	Info() domain.RuleInfo
	Check(record domain.NormalizedRecord) domain.RuleOutcome
}

// Config parameterises the built-in rules.
type Config struct {
	RequiredFields    []string
	AllowedCurrencies []string
	AmountMin         float64
	AmountMax         float64
}

// DefaultConfig returns the production rule parameters.
func DefaultConfig() Config {
	return Config{
		RequiredFields: []string{
			domain.FieldIDSolicitud,
			domain.FieldFechaSolicitud,
			domain.FieldTipoProducto,
			domain.FieldIDCliente,
			domain.FieldMontoOLimite,
			domain.FieldMoneda,
			domain.FieldPais,
		},
		AllowedCurrencies: []string{"ARS", "USD", "EUR"},
		AmountMin:         1,
		AmountMax:         1_000_000,
	}
}

// DefaultRules returns the built-in rules in evaluation order.
// Zero-valued config fields fall back to DefaultConfig.
func DefaultRules(cfg Config) []Rule {
	def := DefaultConfig()
	if len(cfg.RequiredFields) == 0 {
		cfg.RequiredFields = def.RequiredFields
	}
	if len(cfg.AllowedCurrencies) == 0 {
		cfg.AllowedCurrencies = def.AllowedCurrencies
	}
	if cfg.AmountMin == 0 && cfg.AmountMax == 0 {
		cfg.AmountMin, cfg.AmountMax = def.AmountMin, def.AmountMax
	}

	return []Rule{
		NewRequiredFieldsRule(cfg.RequiredFields),
		NewFieldFormatRule(),
		NewCurrencyAllowedRule(cfg.AllowedCurrencies),
		NewAmountRangeRule(cfg.AmountMin, cfg.AmountMax),
	}
}

func info(id string, severity domain.Severity) domain.RuleInfo {
	return domain.RuleInfo{RuleID: id, Version: Version, Severity: severity, Scope: eligibilityScope}
}
