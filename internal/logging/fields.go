package logging

// Standard field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldRunKey     = "run_key"
	FieldRunDir     = "run_dir"
	FieldInput      = "input"
	FieldFormat     = "format"
	FieldStatus     = "status"
	FieldCount      = "count"
	FieldTotal      = "total"
	FieldValid      = "valid"
	FieldInvalid    = "invalid"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldAddress    = "address"
)
