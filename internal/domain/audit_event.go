package domain

import "time"

// Stage identifies the pipeline stage that emitted an audit event.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageNormalize  Stage = "normalize"
	StageValidate   Stage = "validate"
	StageGovernance Stage = "governance"
	StageOutput     Stage = "output"
)

// EventSeverity is the level of an audit event.
type EventSeverity string

const (
	EventInfo  EventSeverity = "INFO"
	EventWarn  EventSeverity = "WARN"
	EventError EventSeverity = "ERROR"
)

// AuditEvent is one line of the decision log. Events are append-only and
// chained: Hash covers PrevHash, Seq and the event body.
type AuditEvent struct {
	Seq       int64          `json:"seq"`
	Timestamp time.Time      `json:"ts_utc"`
	Stage     Stage          `json:"stage"`
	Severity  EventSeverity  `json:"severity"`
	RunID     string         `json:"run_id"`
	RecordID  string         `json:"record_id,omitempty"`
	RuleID    string         `json:"rule_id,omitempty"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	PrevHash  string         `json:"prev_hash"`
	Hash      string         `json:"hash"`
}
