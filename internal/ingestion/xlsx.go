package ingestion

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/xuri/excelize/v2"

	"github.com/rpattn/enrollgate/internal/domain"
)

// xlsxReader streams rows from the first sheet of a workbook.
type xlsxReader struct {
	file     *excelize.File
	rows     *excelize.Rows
	expected []string
	mapper   *columnMapper
	row      int
	done     bool
}

func newXLSXReader(r io.Reader, opts Options) (*xlsxReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &InputFormatError{Reason: fmt.Sprintf("failed to open xlsx: %v", err)}
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		_ = f.Close()
		return nil, &InputFormatError{Reason: "excel file has no sheets"}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		_ = f.Close()
		return nil, &InputFormatError{Reason: fmt.Sprintf("failed to read rows from xlsx: %v", err)}
	}

	return &xlsxReader{file: f, rows: rows, expected: opts.expectedColumns()}, nil
}

func (x *xlsxReader) Read() (domain.RawRecord, error) {
	for !x.done {
		if !x.rows.Next() {
			x.done = true
			if err := x.rows.Error(); err != nil {
				return domain.RawRecord{}, errors.Wrap(err, "iterate xlsx rows")
			}
			break
		}
		x.row++

		cols, err := x.rows.Columns()
		if err != nil {
			if x.mapper == nil {
				return domain.RawRecord{}, &InputFormatError{Reason: fmt.Sprintf("unreadable header row: %v", err)}
			}
			return domain.NewRawRecord(x.row, nil, fmt.Sprintf("malformed row: %v", err)), nil
		}
		if isBlankRow(cols) {
			continue
		}

		if x.mapper == nil {
			m := newColumnMapper(cols, x.expected)
			x.mapper = &m
			continue
		}
		// Spreadsheet rows drop trailing empty cells; that is not a field-count error.
		cols = padRow(cols, len(x.mapper.headers))
		return x.mapper.record(x.row, cols), nil
	}
	return domain.RawRecord{}, io.EOF
}

func (x *xlsxReader) Close() error {
	var rowsErr error
	if x.rows != nil {
		rowsErr = x.rows.Close()
	}
	if err := x.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
