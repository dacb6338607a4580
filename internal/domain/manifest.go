package domain

import "time"

// Artifact names used as keys in the manifest.
const (
	ArtifactNormalized    = "normalized_requests"
	ArtifactRejected      = "rejected_requests"
	ArtifactQualityReport = "data_quality_report"
	ArtifactDecisionLog   = "decision_log"
)

// ArtifactDigest certifies one finalised artifact.
type ArtifactDigest struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// PipelineInfo identifies the code that produced a run.
type PipelineInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
}

// RunInfo is the identity and timing section of the manifest.
type RunInfo struct {
	RunID      string    `json:"run_id"`
	RunKey     string    `json:"run_key"`
	RunLabel   string    `json:"run_label"`
	Status     RunStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	Command    string    `json:"command,omitempty"`
}

// InputInfo certifies the input file.
type InputInfo struct {
	Path            string `json:"path"`
	FormatRequested string `json:"format_requested"`
	FormatResolved  string `json:"format_resolved"`
	SHA256          string `json:"sha256"`
	SizeBytes       int64  `json:"size_bytes"`
}

// GateSection attaches the policy verbatim next to its result.
type GateSection struct {
	Policy   QualityGatePolicy `json:"policy"`
	Result   GateResult        `json:"result"`
	Evidence string            `json:"evidence"`
}

// Environment records where the run executed.
type Environment struct {
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// RunManifest is the closing, immutable index of a run.
type RunManifest struct {
	Schema             string                    `json:"schema"`
	Pipeline           PipelineInfo              `json:"pipeline"`
	Run                RunInfo                   `json:"run"`
	Input              InputInfo                 `json:"input"`
	Rules              []RuleInfo                `json:"rules"`
	Metrics            QualityMetrics            `json:"metrics"`
	QualityGate        GateSection               `json:"quality_gate"`
	Artifacts          map[string]string         `json:"artifacts"`
	ArtifactsIntegrity map[string]ArtifactDigest `json:"artifacts_integrity"`
	Environment        Environment               `json:"environment"`
}

// RunSummary is the projection of a manifest kept in the run-history store.
type RunSummary struct {
	RunKey         string    `json:"run_key"`
	RunID          string    `json:"run_id"`
	RunLabel       string    `json:"run_label"`
	Status         RunStatus `json:"status"`
	InputPath      string    `json:"input_path"`
	InputFormat    string    `json:"input_format"`
	InputSHA256    string    `json:"input_sha256"`
	PolicyID       string    `json:"policy_id"`
	Total          int       `json:"total"`
	Valid          int       `json:"valid"`
	Invalid        int       `json:"invalid"`
	RejectionRate  float64   `json:"rejection_rate"`
	ManifestSHA256 string    `json:"manifest_sha256"`
	RunDir         string    `json:"run_dir"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// SummaryFromManifest projects a manifest onto a RunSummary.
func SummaryFromManifest(m RunManifest, runDir, manifestSHA string) RunSummary {
	return RunSummary{
		RunKey:         m.Run.RunKey,
		RunID:          m.Run.RunID,
		RunLabel:       m.Run.RunLabel,
		Status:         m.Run.Status,
		InputPath:      m.Input.Path,
		InputFormat:    m.Input.FormatResolved,
		InputSHA256:    m.Input.SHA256,
		PolicyID:       m.QualityGate.Policy.ID,
		Total:          m.Metrics.Total,
		Valid:          m.Metrics.Valid,
		Invalid:        m.Metrics.Invalid,
		RejectionRate:  m.Metrics.RejectionRate,
		ManifestSHA256: manifestSHA,
		RunDir:         runDir,
		StartedAt:      m.Run.StartedAt,
		FinishedAt:     m.Run.FinishedAt,
	}
}
