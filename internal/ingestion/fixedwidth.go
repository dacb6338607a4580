package ingestion

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// FixedWidthColumn is a half-open byte range [Start, End) within a line.
type FixedWidthColumn struct {
	Name  string
	Start int
	End   int
}

// FixedWidthLayout is the legacy positional layout. It is part of the external
// contract and must stay byte-exact.
var FixedWidthLayout = []FixedWidthColumn{
	{Name: domain.FieldIDSolicitud, Start: 0, End: 12},
	{Name: domain.FieldFechaSolicitud, Start: 12, End: 22},
	{Name: domain.FieldTipoProducto, Start: 22, End: 34},
	{Name: domain.FieldIDCliente, Start: 34, End: 46},
	{Name: domain.FieldMontoOLimite, Start: 46, End: 58},
	{Name: domain.FieldMoneda, Start: 58, End: 61},
	{Name: domain.FieldPais, Start: 61, End: 63},
	{Name: domain.FieldIsVIP, Start: 63, End: 68},
	{Name: domain.FieldRiskScore, Start: 68, End: 71},
}

// LineWidth returns the largest end offset in layout.
func LineWidth(layout []FixedWidthColumn) int {
	width := 0
	for _, c := range layout {
		if c.End > width {
			width = c.End
		}
	}
	return width
}

type fixedWidthReader struct {
	scanner *bufio.Scanner
	layout  []FixedWidthColumn
	line    int
}

func newFixedWidthReader(r io.Reader, layout []FixedWidthColumn) *fixedWidthReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &fixedWidthReader{scanner: scanner, layout: layout}
}

func (f *fixedWidthReader) Read() (domain.RawRecord, error) {
	for f.scanner.Scan() {
		f.line++
		text := strings.TrimRight(f.scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		return domain.NewRawRecord(f.line, SliceFixedWidth(text, f.layout), ""), nil
	}
	if err := f.scanner.Err(); err != nil {
		return domain.RawRecord{}, errors.Wrapf(err, "read fixed-width line %d", f.line+1)
	}
	return domain.RawRecord{}, io.EOF
}

func (f *fixedWidthReader) Close() error { return nil }

// SliceFixedWidth applies layout verbatim to line. Ranges past the end of a
// short line yield empty strings.
func SliceFixedWidth(line string, layout []FixedWidthColumn) []domain.Field {
	fields := make([]domain.Field, len(layout))
	for i, col := range layout {
		fields[i] = domain.Field{Name: col.Name, Value: sliceBytes(line, col.Start, col.End)}
	}
	return fields
}

func sliceBytes(s string, start, end int) string {
	if start >= len(s) {
		return ""
	}
	if end > len(s) {
		end = len(s)
	}
	return s[start:end]
}
