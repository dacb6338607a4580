package domain

import (
	"fmt"
	"strings"
)

// Canonical input field names shared by every format adapter.
const (
	FieldIDSolicitud    = "id_solicitud"
	FieldFechaSolicitud = "fecha_solicitud"
	FieldTipoProducto   = "tipo_producto"
	FieldIDCliente      = "id_cliente"
	FieldMontoOLimite   = "monto_o_limite"
	FieldMoneda         = "moneda"
	FieldPais           = "pais"
	FieldIsVIP          = "is_vip"
	FieldRiskScore      = "risk_score"
)

// Field is one name/value pair decoded from the source.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawRecord is a decoded but uninterpreted input record.
// Line is the 1-based line, row or array index in the source.
type RawRecord struct {
	Line        int     `json:"line"`
	Fields      []Field `json:"fields"`
	DecodeError string  `json:"decode_error,omitempty"`
}

// NewRawRecord copies fields so callers cannot mutate the record afterwards.
func NewRawRecord(line int, fields []Field, decodeErr string) RawRecord {
	copied := make([]Field, len(fields))
	copy(copied, fields)
	return RawRecord{Line: line, Fields: copied, DecodeError: decodeErr}
}

// Get returns the value for name, or "" when the field is absent.
func (r RawRecord) Get(name string) string {
	v, _ := r.Lookup(name)
	return v
}

// Lookup returns the value for name and whether the field was present.
func (r RawRecord) Lookup(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// RecordID is the correlation key used across artifacts.
func (r RawRecord) RecordID() string {
	return RecordIDFor(r.Get(FieldIDSolicitud), r.Line)
}

// HasDecodeError reports whether the adapter could not decode the record.
func (r RawRecord) HasDecodeError() bool {
	return r.DecodeError != ""
}

// RecordIDFor falls back to the source line when the request id is blank.
func RecordIDFor(id string, line int) string {
	if trimmed := strings.TrimSpace(id); trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("line:%d", line)
}

// Risk buckets derived from risk_score.
const (
	RiskBucketLow     = "LOW"
	RiskBucketMedium  = "MED"
	RiskBucketHigh    = "HIGH"
	RiskBucketUnknown = "UNKNOWN"
)

// FieldIssue records a field that could not be normalised.
type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NormalizedRecord is the canonical shape rules are evaluated against.
type NormalizedRecord struct {
	RecordID       string       `json:"record_id"`
	Line           int          `json:"line"`
	IDSolicitud    string       `json:"id_solicitud"`
	FechaSolicitud string       `json:"fecha_solicitud"`
	TipoProducto   string       `json:"tipo_producto"`
	IDCliente      string       `json:"id_cliente"`
	MontoOLimite   *float64     `json:"monto_o_limite"`
	Moneda         string       `json:"moneda"`
	Pais           string       `json:"pais"`
	IsVIP          bool         `json:"is_vip"`
	RiskScore      *int         `json:"risk_score"`
	RiskBucket     string       `json:"risk_bucket"`
	DecodeError    string       `json:"decode_error,omitempty"`
	Issues         []FieldIssue `json:"issues,omitempty"`
}

// IssueFor returns the normalisation issue recorded for field, if any.
func (n NormalizedRecord) IssueFor(field string) (FieldIssue, bool) {
	for _, issue := range n.Issues {
		if issue.Field == field {
			return issue, true
		}
	}
	return FieldIssue{}, false
}

// HasIssues reports whether normalisation recorded any problem.
func (n NormalizedRecord) HasIssues() bool {
	return len(n.Issues) > 0 || n.DecodeError != ""
}
