// Package pipeline orchestrates one batch run: ingestion, normalisation, rule
// evaluation, quality gating and evidence artifacts.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/rpattn/enrollgate/internal/audit"
	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/ingestion"
	"github.com/rpattn/enrollgate/internal/logging"
	"github.com/rpattn/enrollgate/internal/manifest"
	"github.com/rpattn/enrollgate/internal/quality"
	"github.com/rpattn/enrollgate/internal/repository"
	"github.com/rpattn/enrollgate/internal/rules"
)

// ErrFatalInput marks failures that abort a run before any record is judged.
// Only the decision log exists for such runs.
var ErrFatalInput = errors.New("fatal input error")

// DefaultChunkSize is the number of records evaluated per parallel batch.
const DefaultChunkSize = 256

// Options configures a Runner.
type Options struct {
	Engine       *rules.Engine
	Policy       domain.QualityGatePolicy
	Workers      int
	ChunkSize    int
	ExampleLimit int
	Ingestion    ingestion.Options
	// Repository receives a summary of every completed run. Optional.
	Repository repository.RunRepository
	Clock      func() time.Time
	Logger     *zap.SugaredLogger
}

// Request describes one run.
type Request struct {
	InputPath string
	Format    string
	OutDir    string
	RunLabel  string
	Command   string
}

// Result describes a finished run.
type Result struct {
	Identity       manifest.Identity
	RunDir         string
	Status         domain.RunStatus
	FormatResolved ingestion.Format
	Metrics        domain.QualityMetrics
	Gate           domain.GateResult
	Manifest       domain.RunManifest
	ManifestSHA256 string
	Summary        domain.RunSummary
}

// Runner executes runs. A Runner is safe for concurrent use; each Run works
// in its own directory.
type Runner struct {
	engine       *rules.Engine
	policy       domain.QualityGatePolicy
	workers      int
	chunkSize    int
	exampleLimit int
	ingestOpts   ingestion.Options
	repo         repository.RunRepository
	now          func() time.Time
	log          *zap.SugaredLogger
	builder      *manifest.Builder
}

// NewRunner validates opts and fills defaults.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Engine == nil {
		opts.Engine = rules.NewEngine(rules.DefaultRules(rules.DefaultConfig())...)
	}
	if opts.Policy.ID == "" {
		opts.Policy = quality.DefaultPolicy()
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid quality gate policy")
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ExampleLimit <= 0 {
		opts.ExampleLimit = quality.DefaultExampleLimit
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.ComponentLogger("pipeline")
	}
	return &Runner{
		engine:       opts.Engine,
		policy:       opts.Policy,
		workers:      opts.Workers,
		chunkSize:    opts.ChunkSize,
		exampleLimit: opts.ExampleLimit,
		ingestOpts:   opts.Ingestion,
		repo:         opts.Repository,
		now:          opts.Clock,
		log:          opts.Logger,
		builder:      manifest.NewBuilder(quality.ReportSchema),
	}, nil
}

// Policy returns the gate policy the runner applies.
func (r *Runner) Policy() domain.QualityGatePolicy { return r.policy }

// Catalog returns the rules the runner applies.
func (r *Runner) Catalog() []domain.RuleInfo { return r.engine.Catalog() }

// Run executes one batch. A gate FAILED status is not an error: artifacts are
// complete and the status is reported in Result. Errors matching ErrFatalInput
// mean the input could not be read at all.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	id := manifest.NewIdentity(r.now(), runLabel(req))
	runDir, err := createRunDir(req.OutDir, id.RunKey)
	if err != nil {
		return Result{}, err
	}
	result := Result{Identity: id, RunDir: runDir}
	log := r.log.With(logging.FieldRunID, id.RunID, logging.FieldRunKey, id.RunKey)

	auditLog, err := audit.Open(filepath.Join(runDir, FileDecisionLog), id.RunID, audit.WithClock(r.now))
	if err != nil {
		return result, err
	}
	defer auditLog.Close()

	if _, err := auditLog.Emit(audit.Entry{
		Stage: domain.StageIngest,
		Event: EventRunStarted,
		Details: map[string]any{
			"run_key":          id.RunKey,
			"run_label":        id.RunLabel,
			"input_path":       req.InputPath,
			"format_requested": req.Format,
			"policy_id":        r.policy.ID,
		},
	}); err != nil {
		return result, err
	}
	log.Infow("run started", logging.FieldInput, req.InputPath, logging.FieldRunDir, runDir)

	src, err := r.openInput(req)
	if err != nil {
		return result, r.abort(auditLog, log, err)
	}
	defer src.Close()
	result.FormatResolved = src.format

	if _, err := auditLog.Emit(audit.Entry{
		Stage: domain.StageIngest,
		Event: EventInputLoaded,
		Details: map[string]any{
			"format_resolved": string(src.format),
			"sha256":          src.digest.SHA256,
			"size_bytes":      src.digest.SizeBytes,
		},
	}); err != nil {
		return result, err
	}

	sink, err := newArtifactSink(runDir)
	if err != nil {
		return result, err
	}

	agg, err := r.process(ctx, src.records, auditLog, sink)
	if err != nil {
		_ = sink.discard()
		if errors.Is(err, ErrFatalInput) {
			return result, r.abort(auditLog, log, err)
		}
		return result, err
	}
	if err := sink.Close(); err != nil {
		return result, err
	}

	metrics := agg.Metrics(r.engine.Catalog())
	gate := quality.EvaluateGate(metrics, r.policy)
	report := quality.BuildReport(metrics, gate, r.policy)
	if err := sink.writeReport(report); err != nil {
		return result, err
	}
	result.Metrics = metrics
	result.Gate = gate
	result.Status = gate.Status

	if err := r.emitClosing(auditLog, metrics, gate, sink); err != nil {
		return result, err
	}
	if err := auditLog.Close(); err != nil {
		return result, err
	}

	m, err := r.builder.Build(manifest.Input{
		Identity:        id,
		Status:          gate.Status,
		FinishedAt:      r.now(),
		Command:         req.Command,
		InputPath:       req.InputPath,
		FormatRequested: req.Format,
		FormatResolved:  string(src.format),
		InputDigest:     src.digest,
		Rules:           r.engine.Catalog(),
		Metrics:         metrics,
		Policy:          r.policy,
		Gate:            gate,
		GateEvidence:    FileQualityReport,
		RunDir:          runDir,
		Artifacts:       artifactPaths(),
	})
	if err != nil {
		return result, err
	}
	sha, err := manifest.Write(runDir, m)
	if err != nil {
		return result, err
	}
	result.Manifest = m
	result.ManifestSHA256 = sha
	result.Summary = domain.SummaryFromManifest(m, runDir, sha)

	if r.repo != nil {
		if err := r.repo.Save(ctx, result.Summary); err != nil {
			log.Warnw("failed to record run summary", logging.FieldError, err)
		}
	}

	log.Infow("run finished",
		logging.FieldStatus, gate.Status,
		logging.FieldTotal, metrics.Total,
		logging.FieldValid, metrics.Valid,
		logging.FieldInvalid, metrics.Invalid,
		logging.FieldDurationMS, m.Run.ElapsedMS,
	)
	return result, nil
}

// abort records the fatal input failure and closes the log. The returned
// error matches ErrFatalInput.
func (r *Runner) abort(auditLog *audit.Logger, log *zap.SugaredLogger, cause error) error {
	if _, err := auditLog.Emit(audit.Entry{
		Stage:    domain.StageIngest,
		Severity: domain.EventError,
		Event:    EventInputInvalid,
		Reason:   cause.Error(),
	}); err != nil {
		log.Errorw("failed to record input_invalid", logging.FieldError, err)
	}
	if err := auditLog.Close(); err != nil {
		log.Errorw("failed to close decision log", logging.FieldError, err)
	}
	log.Errorw("run aborted on unreadable input", logging.FieldError, cause)

	if errors.Is(cause, ErrFatalInput) {
		return cause
	}
	return errors.Mark(cause, ErrFatalInput)
}

func (r *Runner) emitClosing(auditLog *audit.Logger, m domain.QualityMetrics, gate domain.GateResult, sink *artifactSink) error {
	severity := domain.EventInfo
	switch gate.Status {
	case domain.RunStatusCompletedWithWarnings:
		severity = domain.EventWarn
	case domain.RunStatusFailed:
		severity = domain.EventError
	}

	entries := []audit.Entry{
		{
			Stage:    domain.StageGovernance,
			Severity: severity,
			Event:    EventQualityGateEvaluated,
			Reason:   gate.Rationale,
			Details: map[string]any{
				"policy_id":  gate.PolicyID,
				"expression": gate.Expression,
				"metric":     gate.Metric,
				"measured":   gate.Measured,
				"threshold":  gate.Threshold,
				"status":     string(gate.Status),
			},
		},
		{
			Stage: domain.StageOutput,
			Event: EventArtifactsWritten,
			Details: map[string]any{
				"artifacts":     []string{FileNormalized, FileRejected, FileQualityReport},
				"normalized":    sink.normalized.Rows(),
				"rejected":      sink.rejected.Rows(),
				"report_schema": quality.ReportSchema,
			},
		},
		{
			Stage: domain.StageOutput,
			Event: EventRunCompleted,
			Details: map[string]any{
				"status":  string(gate.Status),
				"total":   m.Total,
				"valid":   m.Valid,
				"invalid": m.Invalid,
			},
		},
	}
	for _, e := range entries {
		if _, err := auditLog.Emit(e); err != nil {
			return err
		}
	}
	return nil
}

// runLabel defaults a blank label to the input file name without extension.
func runLabel(req Request) string {
	if label := strings.TrimSpace(req.RunLabel); label != "" {
		return label
	}
	base := filepath.Base(req.InputPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func artifactPaths() map[string]string {
	return map[string]string{
		domain.ArtifactNormalized:    FileNormalized,
		domain.ArtifactRejected:      FileRejected,
		domain.ArtifactQualityReport: FileQualityReport,
		domain.ArtifactDecisionLog:   FileDecisionLog,
	}
}

func createRunDir(outDir, runKey string) (string, error) {
	if outDir == "" {
		outDir = "."
	}
	runsDir := filepath.Join(outDir, "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", runsDir)
	}
	runDir := filepath.Join(runsDir, runKey)
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create run directory %s", runDir)
	}
	return runDir, nil
}
