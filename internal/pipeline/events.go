package pipeline

// Audit event names written to decision_log.jsonl.
const (
	EventRunStarted           = "run_started"
	EventInputLoaded          = "input_loaded"
	EventInputInvalid         = "input_invalid"
	EventNormalizationIssue   = "record_normalization_issue"
	EventRuleFailed           = "rule_failed"
	EventRecordAccepted       = "record_accepted"
	EventRecordRejected       = "record_rejected"
	EventQualityGateEvaluated = "quality_gate_evaluated"
	EventArtifactsWritten     = "artifacts_written"
	EventRunCompleted         = "run_completed"
)

// Artifact file names inside a run directory.
const (
	FileNormalized    = "normalized_requests.csv"
	FileRejected      = "rejected_requests.csv"
	FileQualityReport = "data_quality_report.json"
	FileDecisionLog   = "decision_log.jsonl"
)
