// Package audit writes the append-only, hash-chained decision log.
package audit

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("audit log is closed")

// Entry is the caller-supplied part of an audit event. Sequence, timestamp,
// run id and hashes are assigned by the Logger.
type Entry struct {
	Stage    domain.Stage
	Severity domain.EventSeverity
	Event    string
	RecordID string
	RuleID   string
	Reason   string
	Details  map[string]any
}

// Option configures a Logger.
type Option func(*Logger)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// Logger appends events to decision_log.jsonl. Every Emit is durable on
// return. Emit is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	path     string
	runID    string
	now      func() time.Time
	seq      int64
	lastTS   time.Time
	lastHash string
	closed   bool
}

// Open creates the log at path. The file must not already exist.
func Open(path, runID string, opts ...Option) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create audit log %s", path)
	}
	l := &Logger{file: file, path: path, runID: runID, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Path returns the log file path.
func (l *Logger) Path() string { return l.path }

// Emit appends one event and fsyncs before returning.
func (l *Logger) Emit(e Entry) (domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return domain.AuditEvent{}, ErrClosed
	}

	ts := l.now().UTC()
	if ts.Before(l.lastTS) {
		ts = l.lastTS
	}

	event := domain.AuditEvent{
		Seq:       l.seq + 1,
		Timestamp: ts,
		Stage:     e.Stage,
		Severity:  e.Severity,
		RunID:     l.runID,
		RecordID:  e.RecordID,
		RuleID:    e.RuleID,
		Event:     e.Event,
		Reason:    e.Reason,
		Details:   e.Details,
		PrevHash:  l.lastHash,
	}
	if event.Severity == "" {
		event.Severity = domain.EventInfo
	}

	body, err := canonicalBody(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Hash = chainHash(event.PrevHash, event.Seq, body)

	line, err := json.Marshal(event)
	if err != nil {
		return domain.AuditEvent{}, errors.Wrap(err, "marshal audit event")
	}
	line = append(line, '\n')
	// A partial write or unsynced line may be on disk, so the chain cannot
	// safely continue from this logger.
	if _, err := l.file.Write(line); err != nil {
		l.abandon()
		return domain.AuditEvent{}, errors.Mark(errors.Wrapf(err, "append audit event %d", event.Seq), ErrClosed)
	}
	if err := l.file.Sync(); err != nil {
		l.abandon()
		return domain.AuditEvent{}, errors.Mark(errors.Wrapf(err, "sync audit log after event %d", event.Seq), ErrClosed)
	}

	l.seq = event.Seq
	l.lastTS = ts
	l.lastHash = event.Hash
	return event, nil
}

// abandon closes the logger after a failed append. Caller holds l.mu.
func (l *Logger) abandon() {
	l.closed = true
	_ = l.file.Close()
}

// LastHash returns the hash of the most recent event.
func (l *Logger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Count returns the number of events written.
func (l *Logger) Count() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Close flushes and closes the file. Calling Close twice is a no-op.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return errors.Wrap(err, "sync audit log")
	}
	return errors.Wrap(l.file.Close(), "close audit log")
}
