// Package normalize turns raw records into the canonical shape used by the rules.
//
// Normalisation never fails: anything that cannot be coerced is recorded as a
// FieldIssue on the record and judged later by the rule engine.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// DateLayout is the only accepted date pattern (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Risk score thresholds: below LowRiskCeiling is LOW, below MediumRiskCeiling is MED.
const (
	LowRiskCeiling    = 34
	MediumRiskCeiling = 67
)

var (
	trueValues  = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "y": {}, "si": {}, "sí": {}}
	falseValues = map[string]struct{}{"false": {}, "0": {}, "no": {}, "n": {}}
)

// Normalize is deterministic and performs no I/O.
func Normalize(raw domain.RawRecord) domain.NormalizedRecord {
	var issues []domain.FieldIssue
	addIssue := func(field, format string, args ...any) {
		issues = append(issues, domain.FieldIssue{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	id := strings.TrimSpace(raw.Get(domain.FieldIDSolicitud))
	n := domain.NormalizedRecord{
		RecordID:     domain.RecordIDFor(id, raw.Line),
		Line:         raw.Line,
		IDSolicitud:  id,
		TipoProducto: strings.ToLower(strings.TrimSpace(raw.Get(domain.FieldTipoProducto))),
		IDCliente:    strings.TrimSpace(raw.Get(domain.FieldIDCliente)),
		Moneda:       strings.ToUpper(strings.TrimSpace(raw.Get(domain.FieldMoneda))),
		Pais:         strings.ToUpper(strings.TrimSpace(raw.Get(domain.FieldPais))),
		RiskBucket:   domain.RiskBucketUnknown,
		DecodeError:  raw.DecodeError,
	}

	if fecha := strings.TrimSpace(raw.Get(domain.FieldFechaSolicitud)); fecha != "" {
		if d, err := time.Parse(DateLayout, fecha); err == nil {
			n.FechaSolicitud = d.Format(DateLayout)
		} else {
			addIssue(domain.FieldFechaSolicitud, "invalid fecha_solicitud format (expected YYYY-MM-DD): '%s'", fecha)
		}
	}

	if monto := strings.TrimSpace(raw.Get(domain.FieldMontoOLimite)); monto != "" {
		if v, err := ParseAmount(monto); err == nil {
			n.MontoOLimite = &v
		} else {
			addIssue(domain.FieldMontoOLimite, "monto_o_limite is not numeric: '%s'", monto)
		}
	}

	if vip := strings.TrimSpace(raw.Get(domain.FieldIsVIP)); vip != "" {
		if b, ok := ParseBool(vip); ok {
			n.IsVIP = b
		} else {
			addIssue(domain.FieldIsVIP, "is_vip is not a boolean: '%s'", vip)
		}
	}

	if risk := strings.TrimSpace(raw.Get(domain.FieldRiskScore)); risk != "" {
		if score, err := strconv.Atoi(risk); err == nil {
			n.RiskScore = &score
			n.RiskBucket = RiskBucket(score)
		} else {
			addIssue(domain.FieldRiskScore, "risk_score is not an int: '%s'", risk)
		}
	}

	n.Issues = issues
	return n
}

// ParseAmount accepts plain decimal numbers. Thousands separators are rejected
// rather than guessed.
func ParseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v != v { // NaN
		return 0, errors.New("amount is NaN")
	}
	return v, nil
}

// ParseBool recognises the boolean spellings seen in the legacy feeds.
func ParseBool(s string) (bool, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if _, ok := trueValues[v]; ok {
		return true, true
	}
	if _, ok := falseValues[v]; ok {
		return false, true
	}
	return false, false
}

// RiskBucket maps a score onto LOW / MED / HIGH.
func RiskBucket(score int) string {
	switch {
	case score < LowRiskCeiling:
		return domain.RiskBucketLow
	case score < MediumRiskCeiling:
		return domain.RiskBucketMedium
	default:
		return domain.RiskBucketHigh
	}
}
