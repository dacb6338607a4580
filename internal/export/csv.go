// Package export writes the run's CSV and JSON artifacts.
package export

import (
	"bufio"
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// NormalizedHeader is the column order of normalized_requests.csv.
var NormalizedHeader = []string{
	domain.FieldIDSolicitud,
	domain.FieldFechaSolicitud,
	domain.FieldTipoProducto,
	domain.FieldIDCliente,
	domain.FieldMontoOLimite,
	domain.FieldMoneda,
	domain.FieldPais,
	domain.FieldIsVIP,
	domain.FieldRiskScore,
	"risk_bucket",
}

// RejectedHeader is the column order of rejected_requests.csv.
var RejectedHeader = append(append([]string{}, NormalizedHeader...), "source_line", "reject_rule_ids", "reject_reasons")

// CSVWriter streams rows to a new file through a 1 MiB buffer.
type CSVWriter struct {
	file     *os.File
	buffered *bufio.Writer
	counter  *countingWriter
	csv      *csv.Writer
	rows     int
	closed   bool
}

// NewCSVWriter creates path exclusively and writes header immediately, so an
// empty lane still yields a well-formed file.
func NewCSVWriter(path string, header []string) (*CSVWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	buffered := bufio.NewWriterSize(file, 1<<20)
	counter := &countingWriter{writer: buffered}
	w := &CSVWriter{file: file, buffered: buffered, counter: counter, csv: csv.NewWriter(counter)}
	if err := w.csv.Write(header); err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "write header")
	}
	return w, nil
}

// WriteNormalized appends an accepted record.
func (w *CSVWriter) WriteNormalized(rec domain.NormalizedRecord) error {
	return w.write(NormalizedRow(rec))
}

// WriteRejected appends a rejected record with its failing rules.
func (w *CSVWriter) WriteRejected(rec domain.NormalizedRecord, d domain.RecordDecision) error {
	return w.write(RejectedRow(rec, d))
}

func (w *CSVWriter) write(row []string) error {
	if err := w.csv.Write(row); err != nil {
		return errors.Wrapf(err, "write row %d", w.rows+1)
	}
	w.rows++
	return nil
}

// Rows returns the number of data rows written.
func (w *CSVWriter) Rows() int { return w.rows }

// Bytes returns the number of bytes handed to the buffer so far.
func (w *CSVWriter) Bytes() int64 { return w.counter.count }

// Close flushes, fsyncs and closes the file.
func (w *CSVWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "flush csv")
	}
	if err := w.buffered.Flush(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "flush buffered csv")
	}
	if err := w.file.Sync(); err != nil {
		_ = w.file.Close()
		return errors.Wrap(err, "sync csv")
	}
	return errors.Wrap(w.file.Close(), "close csv")
}

// NormalizedRow renders rec in NormalizedHeader order.
func NormalizedRow(rec domain.NormalizedRecord) []string {
	return []string{
		rec.IDSolicitud,
		rec.FechaSolicitud,
		rec.TipoProducto,
		rec.IDCliente,
		formatAmount(rec.MontoOLimite),
		rec.Moneda,
		rec.Pais,
		strconv.FormatBool(rec.IsVIP),
		formatInt(rec.RiskScore),
		rec.RiskBucket,
	}
}

// RejectedRow renders rec and its failures in RejectedHeader order.
func RejectedRow(rec domain.NormalizedRecord, d domain.RecordDecision) []string {
	return append(NormalizedRow(rec),
		strconv.Itoa(rec.Line),
		strings.Join(d.FailedRuleIDs(), "|"),
		strings.Join(d.Reasons(), " | "),
	)
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
