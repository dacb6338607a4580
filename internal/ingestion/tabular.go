package ingestion

import (
	"fmt"
	"strings"

	"github.com/rpattn/enrollgate/internal/domain"
)

// columnMapper turns positional rows into named raw records using a header row.
type columnMapper struct {
	headers []string
	missing []string
}

func newColumnMapper(rawHeader []string, expected []string) columnMapper {
	headers := sanitizeHeaders(rawHeader)

	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range expected {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	return columnMapper{headers: headers, missing: missing}
}

func (m columnMapper) record(line int, row []string) domain.RawRecord {
	var problems []string
	if len(m.missing) > 0 {
		problems = append(problems, fmt.Sprintf("missing expected columns: %s", strings.Join(m.missing, ", ")))
	}
	if len(row) != len(m.headers) {
		problems = append(problems, fmt.Sprintf("expected %d fields, got %d", len(m.headers), len(row)))
	}

	row = padRow(row, len(m.headers))
	fields := make([]domain.Field, len(m.headers))
	for i, h := range m.headers {
		fields[i] = domain.Field{Name: h, Value: row[i]}
	}
	return domain.NewRawRecord(line, fields, strings.Join(problems, "; "))
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.ReplaceAll(name, " ", "_")
		name = strings.ReplaceAll(name, ".", "_")
		name = strings.ReplaceAll(name, "-", "_")
		name = strings.Trim(name, "_")
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
