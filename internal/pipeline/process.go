package pipeline

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/rpattn/enrollgate/internal/audit"
	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/ingestion"
	"github.com/rpattn/enrollgate/internal/normalize"
	"github.com/rpattn/enrollgate/internal/quality"
)

type evaluated struct {
	record   domain.NormalizedRecord
	decision domain.RecordDecision
}

// process reads records in chunks, evaluates each chunk in parallel into
// indexed slots and reduces the slots in source order.
func (r *Runner) process(ctx context.Context, rr ingestion.RecordReader, auditLog *audit.Logger, sink *artifactSink) (*quality.Aggregator, error) {
	agg := quality.NewAggregator(r.exampleLimit)
	chunk := make([]domain.RawRecord, 0, r.chunkSize)
	slots := make([]evaluated, r.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chunk = chunk[:0]
		eof := false
		for len(chunk) < r.chunkSize {
			rec, err := rr.Read()
			if errors.Is(err, io.EOF) {
				eof = true
				break
			}
			if err != nil {
				return nil, errors.Mark(errors.Wrap(err, "read input"), ErrFatalInput)
			}
			chunk = append(chunk, rec)
		}

		if len(chunk) > 0 {
			if err := r.evaluate(ctx, chunk, slots); err != nil {
				return nil, err
			}
			for i := range chunk {
				if err := r.reduce(slots[i], auditLog, sink, agg); err != nil {
					return nil, err
				}
			}
		}
		if eof {
			return agg, nil
		}
	}
}

func (r *Runner) evaluate(ctx context.Context, chunk []domain.RawRecord, slots []evaluated) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := range chunk {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := normalize.Normalize(chunk[i])
			slots[i] = evaluated{record: rec, decision: r.engine.Evaluate(rec)}
			return nil
		})
	}
	return g.Wait()
}

// reduce emits the record's audit events, feeds the aggregator and writes
// the record to its lane.
func (r *Runner) reduce(ev evaluated, auditLog *audit.Logger, sink *artifactSink, agg *quality.Aggregator) error {
	rec, d := ev.record, ev.decision

	if rec.DecodeError != "" {
		if _, err := auditLog.Emit(audit.Entry{
			Stage:    domain.StageNormalize,
			Severity: domain.EventWarn,
			Event:    EventNormalizationIssue,
			RecordID: rec.RecordID,
			Reason:   rec.DecodeError,
			Details:  map[string]any{"line": rec.Line, "decode_error": true},
		}); err != nil {
			return err
		}
	}
	for _, issue := range rec.Issues {
		if _, err := auditLog.Emit(audit.Entry{
			Stage:    domain.StageNormalize,
			Severity: domain.EventWarn,
			Event:    EventNormalizationIssue,
			RecordID: rec.RecordID,
			Reason:   issue.Reason,
			Details:  map[string]any{"line": rec.Line, "field": issue.Field},
		}); err != nil {
			return err
		}
	}

	for _, f := range d.Failures() {
		if _, err := auditLog.Emit(audit.Entry{
			Stage:    domain.StageValidate,
			Severity: domain.EventWarn,
			Event:    EventRuleFailed,
			RecordID: d.RecordID,
			RuleID:   f.RuleID,
			Reason:   f.Reason,
			Details:  map[string]any{"line": d.Line},
		}); err != nil {
			return err
		}
	}

	entry := audit.Entry{
		Stage:    domain.StageValidate,
		Event:    EventRecordAccepted,
		RecordID: d.RecordID,
		Details:  map[string]any{"line": d.Line},
	}
	if !d.Accepted() {
		entry.Severity = domain.EventWarn
		entry.Event = EventRecordRejected
		entry.Details["failed_rules"] = d.FailedRuleIDs()
	}
	if _, err := auditLog.Emit(entry); err != nil {
		return err
	}

	agg.Add(d)
	return sink.write(rec, d)
}
