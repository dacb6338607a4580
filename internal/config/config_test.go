package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enrollgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsProduceDefaultPolicy(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	p, err := cfg.QualityPolicy()
	require.NoError(t, err)
	assert.Equal(t, "quality_gate.v1", p.ID)
	assert.Equal(t, domain.MetricRejectionRate, p.Metric)
	assert.Equal(t, 0.05, p.Threshold)
	assert.Nil(t, p.DegradedLimit)
	assert.Equal(t, 256, cfg.Pipeline.ChunkSize)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
pipeline:
  out_dir: /tmp/enroll
  workers: 2
ingestion:
  delimiter: ";"
rules:
  allowed_currencies: [ARS, USD]
  amount_max: 500000
policy:
  id: quality_gate.lenient
  expression: "rejection_rate <= 0.40"
  degraded_limit: 0.6
database:
  enabled: true
  host: db.internal
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/enroll", cfg.Pipeline.OutDir)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
	assert.Equal(t, 256, cfg.Pipeline.ChunkSize)
	assert.Equal(t, []string{"ARS", "USD"}, cfg.Rules.AllowedCurrencies)
	assert.Equal(t, 500000.0, cfg.Rules.AmountMax)
	assert.Equal(t, 1.0, cfg.Rules.AmountMin)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)

	d, err := cfg.Delimiter()
	require.NoError(t, err)
	assert.Equal(t, ';', d)

	p, err := cfg.QualityPolicy()
	require.NoError(t, err)
	assert.Equal(t, 0.4, p.Threshold)
	require.NotNil(t, p.DegradedLimit)
	assert.Equal(t, 0.6, *p.DegradedLimit)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "policy:\n  expression: \"rejection_rate <= 0.40\"\n")
	t.Setenv("ENROLLGATE_POLICY_EXPRESSION", "invalid_rate < 0.2")
	t.Setenv("ENROLLGATE_PIPELINE_CHUNK_SIZE", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "invalid_rate < 0.2", cfg.Policy.Expression)
	assert.Equal(t, 16, cfg.Pipeline.ChunkSize)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Pipeline.OutDir)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	_, err := Load(writeConfig(t, "policy:\n  expression: \"latency <= 3\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "ingestion:\n  delimiter: \":\"\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "pipeline:\n  chunk_size: 0\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTabDelimiterAliases(t *testing.T) {
	cfg := Default()
	for _, alias := range []string{"tab", "TAB", `\t`, "\t"} {
		cfg.Ingestion.Delimiter = alias
		d, err := cfg.Delimiter()
		require.NoError(t, err, alias)
		assert.Equal(t, '\t', d, alias)
	}
}
