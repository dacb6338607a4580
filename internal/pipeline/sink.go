package pipeline

import (
	"os"
	"path/filepath"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/export"
	"github.com/rpattn/enrollgate/internal/quality"
)

// artifactSink owns the two record lanes and the quality report.
type artifactSink struct {
	runDir     string
	normalized *export.CSVWriter
	rejected   *export.CSVWriter
}

func newArtifactSink(runDir string) (*artifactSink, error) {
	normalized, err := export.NewCSVWriter(filepath.Join(runDir, FileNormalized), export.NormalizedHeader)
	if err != nil {
		return nil, err
	}
	rejected, err := export.NewCSVWriter(filepath.Join(runDir, FileRejected), export.RejectedHeader)
	if err != nil {
		_ = normalized.Close()
		_ = os.Remove(filepath.Join(runDir, FileNormalized))
		return nil, err
	}
	return &artifactSink{runDir: runDir, normalized: normalized, rejected: rejected}, nil
}

func (s *artifactSink) write(rec domain.NormalizedRecord, d domain.RecordDecision) error {
	if d.Accepted() {
		return s.normalized.WriteNormalized(rec)
	}
	return s.rejected.WriteRejected(rec, d)
}

// Close finalises both lanes.
func (s *artifactSink) Close() error {
	nerr := s.normalized.Close()
	rerr := s.rejected.Close()
	if nerr != nil {
		return nerr
	}
	return rerr
}

// discard closes and removes the lanes of an aborted run.
func (s *artifactSink) discard() error {
	_ = s.Close()
	nerr := os.Remove(filepath.Join(s.runDir, FileNormalized))
	rerr := os.Remove(filepath.Join(s.runDir, FileRejected))
	if nerr != nil {
		return nerr
	}
	return rerr
}

func (s *artifactSink) writeReport(report quality.Report) error {
	return export.WriteJSON(filepath.Join(s.runDir, FileQualityReport), report)
}
