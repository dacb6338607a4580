package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// VerifyReport summarises a chain walk. OK is false when any check failed.
type VerifyReport struct {
	OK       bool     `json:"ok"`
	Events   int64    `json:"events"`
	RunID    string   `json:"run_id,omitempty"`
	LastHash string   `json:"last_hash,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

func (r *VerifyReport) fail(format string, args ...any) {
	r.OK = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Verify re-walks the hash chain and checks sequence numbers and timestamp
// ordering. The returned error is reserved for read failures.
func Verify(r io.Reader) (VerifyReport, error) {
	report := VerifyReport{OK: true}

	var (
		expectedSeq  int64
		expectedPrev string
		lastTS       time.Time
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		expectedSeq++

		var event domain.AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			report.fail("line %d: decode event: %v", expectedSeq, err)
			continue
		}
		if event.Seq != expectedSeq {
			report.fail("seq mismatch: got %d, want %d", event.Seq, expectedSeq)
		}
		if event.PrevHash != expectedPrev {
			report.fail("prev_hash mismatch at seq %d", event.Seq)
		}
		if event.Timestamp.Before(lastTS) {
			report.fail("timestamp moves backwards at seq %d", event.Seq)
		}
		if report.RunID == "" {
			report.RunID = event.RunID
		} else if event.RunID != report.RunID {
			report.fail("run_id changes at seq %d", event.Seq)
		}

		body, err := decodeObject(line)
		if err != nil {
			report.fail("seq %d: %v", event.Seq, err)
			continue
		}
		delete(body, hashField)
		canonical, err := stableJSON(body)
		if err != nil {
			report.fail("seq %d: %v", event.Seq, err)
			continue
		}
		if computed := chainHash(event.PrevHash, event.Seq, canonical); computed != event.Hash {
			report.fail("hash mismatch at seq %d", event.Seq)
		}

		expectedPrev = event.Hash
		lastTS = event.Timestamp
		report.Events++
		report.LastHash = event.Hash
	}
	if err := scanner.Err(); err != nil {
		return report, errors.Wrap(err, "read audit log")
	}
	return report, nil
}

// VerifyFile verifies the log at path.
func VerifyFile(path string) (VerifyReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return VerifyReport{}, errors.Wrapf(err, "open audit log %s", path)
	}
	defer file.Close()
	return Verify(file)
}

// ReadEvents decodes every event in the log at path.
func ReadEvents(path string) ([]domain.AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open audit log %s", path)
	}
	defer file.Close()

	var events []domain.AuditEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var event domain.AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, errors.Wrapf(err, "decode audit event %d", len(events)+1)
		}
		events = append(events, event)
	}
	return events, errors.Wrap(scanner.Err(), "read audit log")
}
