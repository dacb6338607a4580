package ingestion

import (
	"bufio"
	"bytes"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ExpectedColumns is the logical input contract every tabular source must carry.
var ExpectedColumns = []string{
	domain.FieldIDSolicitud,
	domain.FieldFechaSolicitud,
	domain.FieldTipoProducto,
	domain.FieldIDCliente,
	domain.FieldMontoOLimite,
	domain.FieldMoneda,
	domain.FieldPais,
	domain.FieldIsVIP,
	domain.FieldRiskScore,
}

// RecordReader yields raw records lazily and in source order.
// Read returns io.EOF once the source is exhausted; any other error is a
// fatal I/O failure, never a record-level problem.
type RecordReader interface {
	Read() (domain.RawRecord, error)
	Close() error
}

// Options tunes the adapters.
type Options struct {
	// Delimiter for delimited text; 0 sniffs it from the header line.
	Delimiter rune
	// ExpectedColumns overrides the default column contract.
	ExpectedColumns []string
	// Layout overrides the fixed-width layout.
	Layout []FixedWidthColumn
}

func (o Options) expectedColumns() []string {
	if len(o.ExpectedColumns) > 0 {
		return o.ExpectedColumns
	}
	return ExpectedColumns
}

func (o Options) layout() []FixedWidthColumn {
	if len(o.Layout) > 0 {
		return o.Layout
	}
	return FixedWidthLayout
}

// Open returns the adapter for format reading from r. format must already be
// resolved; FormatAuto is rejected.
func Open(r io.Reader, format Format, opts Options) (RecordReader, error) {
	switch format {
	case FormatCSV:
		return newCSVReader(stripBOM(r), ',', opts)
	case FormatDelimited:
		return newDelimitedReader(stripBOM(r), opts)
	case FormatJSON:
		return newJSONReader(stripBOM(r))
	case FormatFixedWidth:
		return newFixedWidthReader(stripBOM(r), opts.layout()), nil
	case FormatXLSX:
		return newXLSXReader(r, opts)
	default:
		return nil, &InputFormatError{Format: string(format), Reason: "format must be resolved before opening"}
	}
}

// ReadAll drains a reader. Intended for tests and small inputs.
func ReadAll(rr RecordReader) ([]domain.RawRecord, error) {
	var out []domain.RawRecord
	for {
		rec, err := rr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

func stripBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = br.Discard(len(byteOrderMark))
	}
	return br
}
