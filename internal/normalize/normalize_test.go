package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
)

func raw(line int, kv ...string) domain.RawRecord {
	fields := make([]domain.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, domain.Field{Name: kv[i], Value: kv[i+1]})
	}
	return domain.NewRawRecord(line, fields, "")
}

func TestNormalizeCanonicalisesFields(t *testing.T) {
	n := Normalize(raw(2,
		domain.FieldIDSolicitud, "  REQ-1 ",
		domain.FieldFechaSolicitud, "2026-02-10",
		domain.FieldTipoProducto, " Tarjeta ",
		domain.FieldIDCliente, "CLI-1",
		domain.FieldMontoOLimite, " 1500.50 ",
		domain.FieldMoneda, "usd",
		domain.FieldPais, "ar ",
		domain.FieldIsVIP, "Sí",
		domain.FieldRiskScore, "66",
	))

	assert.Equal(t, "REQ-1", n.RecordID)
	assert.Equal(t, "REQ-1", n.IDSolicitud)
	assert.Equal(t, "2026-02-10", n.FechaSolicitud)
	assert.Equal(t, "tarjeta", n.TipoProducto)
	assert.Equal(t, "USD", n.Moneda)
	assert.Equal(t, "AR", n.Pais)
	require.NotNil(t, n.MontoOLimite)
	assert.Equal(t, 1500.5, *n.MontoOLimite)
	assert.True(t, n.IsVIP)
	require.NotNil(t, n.RiskScore)
	assert.Equal(t, 66, *n.RiskScore)
	assert.Equal(t, domain.RiskBucketMedium, n.RiskBucket)
	assert.Empty(t, n.Issues)
	assert.False(t, n.HasIssues())
}

func TestNormalizeRecordsIssuesInsteadOfFailing(t *testing.T) {
	n := Normalize(raw(7,
		domain.FieldFechaSolicitud, "10/02/2026",
		domain.FieldMontoOLimite, "1.000,00",
		domain.FieldIsVIP, "maybe",
		domain.FieldRiskScore, "high",
	))

	assert.Equal(t, "line:7", n.RecordID)
	assert.Empty(t, n.FechaSolicitud)
	assert.Nil(t, n.MontoOLimite)
	assert.False(t, n.IsVIP)
	assert.Nil(t, n.RiskScore)
	assert.Equal(t, domain.RiskBucketUnknown, n.RiskBucket)

	for _, field := range []string{
		domain.FieldFechaSolicitud, domain.FieldMontoOLimite, domain.FieldIsVIP, domain.FieldRiskScore,
	} {
		_, ok := n.IssueFor(field)
		assert.True(t, ok, field)
	}
	issue, _ := n.IssueFor(domain.FieldFechaSolicitud)
	assert.Contains(t, issue.Reason, "10/02/2026")
}

func TestNormalizeEmptyOptionalFieldsAreNotIssues(t *testing.T) {
	n := Normalize(raw(3, domain.FieldIDSolicitud, "REQ-3", domain.FieldMontoOLimite, "  "))

	assert.Nil(t, n.MontoOLimite)
	assert.False(t, n.IsVIP)
	assert.Equal(t, domain.RiskBucketUnknown, n.RiskBucket)
	assert.Empty(t, n.Issues)
}

func TestNormalizeRejectsImpossibleDate(t *testing.T) {
	n := Normalize(raw(4, domain.FieldFechaSolicitud, "2026-02-30"))
	assert.Empty(t, n.FechaSolicitud)
	_, ok := n.IssueFor(domain.FieldFechaSolicitud)
	assert.True(t, ok)
}

func TestNormalizeCarriesDecodeError(t *testing.T) {
	n := Normalize(domain.NewRawRecord(9, nil, "expected 9 fields, got 3"))
	assert.Equal(t, "expected 9 fields, got 3", n.DecodeError)
	assert.True(t, n.HasIssues())
}

func TestNormalizeIsDeterministic(t *testing.T) {
	r := raw(2, domain.FieldIDSolicitud, "REQ-1", domain.FieldMontoOLimite, "abc", domain.FieldRiskScore, "10")
	assert.Equal(t, Normalize(r), Normalize(r))
}

func TestRiskBucketBoundaries(t *testing.T) {
	cases := map[int]string{
		0:   domain.RiskBucketLow,
		33:  domain.RiskBucketLow,
		34:  domain.RiskBucketMedium,
		66:  domain.RiskBucketMedium,
		67:  domain.RiskBucketHigh,
		100: domain.RiskBucketHigh,
	}
	for score, want := range cases {
		if got := RiskBucket(score); got != want {
			t.Fatalf("RiskBucket(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes", "Y", "si", "SÍ"} {
		v, ok := ParseBool(s)
		assert.True(t, ok, s)
		assert.True(t, v, s)
	}
	for _, s := range []string{"false", "0", "No", "n"} {
		v, ok := ParseBool(s)
		assert.True(t, ok, s)
		assert.False(t, v, s)
	}
	_, ok := ParseBool("verdadero")
	assert.False(t, ok)
}
