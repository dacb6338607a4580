package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// Manifest identification.
const (
	Schema       = "enrollgate.run_manifest.v1"
	FileName     = "run_manifest.json"
	PipelineName = "enrollgate"
)

// PipelineVersion is overridden at link time.
var PipelineVersion = "0.1.0"

// Input carries everything the builder needs once all other artifacts are final.
type Input struct {
	Identity        Identity
	Status          domain.RunStatus
	FinishedAt      time.Time
	Command         string
	InputPath       string
	FormatRequested string
	FormatResolved  string
	InputDigest     Digest
	Rules           []domain.RuleInfo
	Metrics         domain.QualityMetrics
	Policy          domain.QualityGatePolicy
	Gate            domain.GateResult
	GateEvidence    string
	RunDir          string
	// Artifacts maps artifact name to a path relative to RunDir.
	Artifacts map[string]string
}

// Builder assembles run manifests.
type Builder struct {
	schemaVersion string
}

// NewBuilder creates a builder stamping schemaVersion on the pipeline section.
func NewBuilder(schemaVersion string) *Builder {
	return &Builder{schemaVersion: schemaVersion}
}

// Build hashes every artifact from disk and assembles the manifest. It must be
// called after those artifacts are closed.
func (b *Builder) Build(in Input) (domain.RunManifest, error) {
	names := make([]string, 0, len(in.Artifacts))
	for name := range in.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	integrity := make(map[string]domain.ArtifactDigest, len(names))
	artifacts := make(map[string]string, len(names))
	for _, name := range names {
		rel := filepath.ToSlash(in.Artifacts[name])
		d, err := HashFile(filepath.Join(in.RunDir, filepath.FromSlash(rel)))
		if err != nil {
			return domain.RunManifest{}, errors.Wrapf(err, "hash artifact %s", name)
		}
		artifacts[name] = rel
		integrity[name] = domain.ArtifactDigest{Path: rel, SHA256: d.SHA256, SizeBytes: d.SizeBytes}
	}

	rules := in.Rules
	if rules == nil {
		rules = []domain.RuleInfo{}
	}

	return domain.RunManifest{
		Schema: Schema,
		Pipeline: domain.PipelineInfo{
			Name:          PipelineName,
			Version:       PipelineVersion,
			SchemaVersion: b.schemaVersion,
		},
		Run: domain.RunInfo{
			RunID:      in.Identity.RunID,
			RunKey:     in.Identity.RunKey,
			RunLabel:   in.Identity.RunLabel,
			Status:     in.Status,
			StartedAt:  in.Identity.StartedAt,
			FinishedAt: in.FinishedAt.UTC(),
			ElapsedMS:  in.FinishedAt.Sub(in.Identity.StartedAt).Milliseconds(),
			Command:    in.Command,
		},
		Input: domain.InputInfo{
			Path:            in.InputPath,
			FormatRequested: in.FormatRequested,
			FormatResolved:  in.FormatResolved,
			SHA256:          in.InputDigest.SHA256,
			SizeBytes:       in.InputDigest.SizeBytes,
		},
		Rules:   rules,
		Metrics: in.Metrics,
		QualityGate: domain.GateSection{
			Policy:   in.Policy,
			Result:   in.Gate,
			Evidence: in.GateEvidence,
		},
		Artifacts:          artifacts,
		ArtifactsIntegrity: integrity,
		Environment: domain.Environment{
			GoVersion: runtime.Version(),
			OS:        runtime.GOOS,
			Arch:      runtime.GOARCH,
		},
	}, nil
}

// Write stores m as dir/run_manifest.json and returns the SHA-256 of the bytes
// written. An existing manifest is never overwritten.
func Write(dir string, m domain.RunManifest) (string, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "marshal run manifest")
	}
	data = append(data, '\n')

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "write %s", path)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", errors.Wrapf(err, "sync %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Read loads the manifest in runDir and returns it with the SHA-256 of its bytes.
func Read(runDir string) (domain.RunManifest, string, error) {
	data, err := os.ReadFile(filepath.Join(runDir, FileName))
	if err != nil {
		return domain.RunManifest{}, "", errors.Wrapf(err, "read manifest in %s", runDir)
	}
	var m domain.RunManifest
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return domain.RunManifest{}, "", errors.Wrapf(err, "decode manifest in %s", runDir)
	}
	sum := sha256.Sum256(data)
	return m, hex.EncodeToString(sum[:]), nil
}
