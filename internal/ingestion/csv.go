package ingestion

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// SupportedDelimiters lists the separators accepted for delimited text.
var SupportedDelimiters = []rune{'|', ';', ',', '\t'}

// csvReader adapts encoding/csv to RecordReader. The first non-blank row is the
// header; malformed lines become decode-error records and reading continues.
type csvReader struct {
	r        *csv.Reader
	expected []string
	mapper   *columnMapper
	done     bool
}

func newCSVReader(r io.Reader, comma rune, opts Options) (*csvReader, error) {
	if !IsSupportedDelimiter(comma) {
		return nil, &InputFormatError{Reason: fmt.Sprintf("unsupported delimiter %q", comma)}
	}
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = comma != '\t'

	return &csvReader{r: cr, expected: opts.expectedColumns()}, nil
}

// newDelimitedReader sniffs the delimiter from the header line when none was declared.
func newDelimitedReader(r io.Reader, opts Options) (*csvReader, error) {
	if opts.Delimiter != 0 {
		return newCSVReader(r, opts.Delimiter, opts)
	}

	br := bufio.NewReader(r)
	var consumed strings.Builder
	header := ""
	for {
		line, err := br.ReadString('\n')
		consumed.WriteString(line)
		if strings.TrimSpace(line) != "" {
			header = line
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, "read delimited header")
		}
	}

	source := io.MultiReader(strings.NewReader(consumed.String()), br)
	return newCSVReader(source, sniffDelimiter(header), opts)
}

func (c *csvReader) Read() (domain.RawRecord, error) {
	for {
		if c.done {
			return domain.RawRecord{}, io.EOF
		}

		row, err := c.r.Read()
		if errors.Is(err, io.EOF) {
			c.done = true
			return domain.RawRecord{}, io.EOF
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			if c.mapper == nil {
				return domain.RawRecord{}, &InputFormatError{
					Reason: fmt.Sprintf("unreadable header row: %v", parseErr),
				}
			}
			return domain.NewRawRecord(parseErr.StartLine, nil, malformedReason(parseErr)), nil
		}
		if err != nil {
			return domain.RawRecord{}, errors.Wrap(err, "read delimited input")
		}

		if isBlankRow(row) {
			continue
		}
		line, _ := c.r.FieldPos(0)

		if c.mapper == nil {
			m := newColumnMapper(row, c.expected)
			c.mapper = &m
			continue
		}
		return c.mapper.record(line, row), nil
	}
}

func (c *csvReader) Close() error { return nil }

// malformedReason names every source line a parse error swallowed. An
// unterminated quote consumes the following lines into one record.
func malformedReason(parseErr *csv.ParseError) string {
	if parseErr.Line > parseErr.StartLine {
		return fmt.Sprintf("malformed record spanning lines %d-%d (%d source lines consumed): %v",
			parseErr.StartLine, parseErr.Line, parseErr.Line-parseErr.StartLine+1, parseErr.Err)
	}
	return fmt.Sprintf("malformed line: %v", parseErr.Err)
}

func sniffDelimiter(header string) rune {
	best := SupportedDelimiters[0]
	bestCount := 0
	for _, d := range SupportedDelimiters {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// IsSupportedDelimiter reports whether r may separate delimited fields.
func IsSupportedDelimiter(r rune) bool {
	for _, d := range SupportedDelimiters {
		if d == r {
			return true
		}
	}
	return false
}
