package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEmptyLaneStillHasHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rejected_requests.csv")
	w, err := NewCSVWriter(path, RejectedHeader)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 1)
	assert.Equal(t, RejectedHeader, rows[0])
	assert.Equal(t, "reject_reasons", rows[0][len(rows[0])-1])
}

func TestRowsFormatValues(t *testing.T) {
	amount := 1500.5
	score := 12
	rec := domain.NormalizedRecord{
		RecordID: "REQ-1", Line: 7, IDSolicitud: "REQ-1", FechaSolicitud: "2026-02-10",
		TipoProducto: "cuenta", IDCliente: "CLI-1", MontoOLimite: &amount,
		Moneda: "GBP", Pais: "AR", IsVIP: true, RiskScore: &score, RiskBucket: domain.RiskBucketLow,
	}
	d := domain.NewRecordDecision("REQ-1", 7, []domain.RuleOutcome{
		domain.Fail("CURRENCY_ALLOWED", "moneda 'GBP' not allowed"),
		domain.Pass("AMOUNT_RANGE"),
		domain.Fail("FIELD_FORMAT", "bad, really"),
	})

	path := filepath.Join(t.TempDir(), "rejected_requests.csv")
	w, err := NewCSVWriter(path, RejectedHeader)
	require.NoError(t, err)
	require.NoError(t, w.WriteRejected(rec, d))
	assert.Equal(t, 1, w.Rows())
	require.NoError(t, w.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"REQ-1", "2026-02-10", "cuenta", "CLI-1", "1500.5", "GBP", "AR", "true", "12", "LOW",
		"7", "CURRENCY_ALLOWED|FIELD_FORMAT", "moneda 'GBP' not allowed | bad, really",
	}, rows[1])
}

func TestNormalizedRowLeavesMissingNumbersEmpty(t *testing.T) {
	row := NormalizedRow(domain.NormalizedRecord{RiskBucket: domain.RiskBucketUnknown})
	assert.Equal(t, "", row[4])
	assert.Equal(t, "false", row[7])
	assert.Equal(t, "", row[8])
	assert.Equal(t, domain.RiskBucketUnknown, row[9])
}

func TestWriteJSONRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteJSON(path, map[string]int{"total": 1}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"total\": 1\n}\n", string(data))
	assert.Error(t, WriteJSON(path, map[string]int{"total": 2}))
}
