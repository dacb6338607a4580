package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/pipeline"
)

const requestsCSV = "id_solicitud,fecha_solicitud,tipo_producto,id_cliente,monto_o_limite,moneda,pais,is_vip,risk_score\n" +
	"REQ-1,2026-02-10,cuenta,CLI-1,1000,ARS,AR,false,20\n" +
	"REQ-2,2026-02-10,cuenta,CLI-2,1000,ARS,AR,false,40\n" +
	"REQ-3,2026-02-10,tarjeta,CLI-3,2000,GBP,AR,true,70\n"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.csv")
	require.NoError(t, os.WriteFile(path, []byte(requestsCSV), 0o644))
	return path
}

func runDirFrom(t *testing.T, output string) string {
	t.Helper()
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "run_dir:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "run_dir:"))
		}
	}
	t.Fatalf("no run_dir in output:\n%s", output)
	return ""
}

func TestRunCommandCompletesWithWarnings(t *testing.T) {
	out := t.TempDir()
	output, err := execute(t, "run", "--input", writeCSV(t), "--out", out, "--run-label", "cli")
	require.NoError(t, err)
	assert.Equal(t, ExitOK, exitCode(err))

	assert.Contains(t, output, "status:   COMPLETED_WITH_WARNINGS")
	assert.Contains(t, output, "total=3 valid=2 invalid=1")
	runDir := runDirFrom(t, output)
	assert.True(t, strings.HasPrefix(runDir, filepath.Join(out, "runs")))

	verifyOut, err := execute(t, "verify", runDir)
	require.NoError(t, err)
	assert.Contains(t, verifyOut, "verified")
}

func TestRunCommandGateFailureExitCode(t *testing.T) {
	t.Setenv("ENROLLGATE_POLICY_DEGRADED_LIMIT", "0.10")

	_, err := execute(t, "run", "--input", writeCSV(t), "--out", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitGateFailed, exitCode(err))
}

func TestRunCommandFatalInputExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.json")
	require.NoError(t, os.WriteFile(path, []byte(`"not an array"`), 0o644))

	output, err := execute(t, "run", "--input", path, "--out", t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrFatalInput))
	assert.Equal(t, ExitFatalInput, exitCode(err))
	assert.Contains(t, output, "decision log:")
}

func TestRunCommandRequiresInput(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
	assert.Equal(t, ExitError, exitCode(err))
}

func TestVerifyDetectsTampering(t *testing.T) {
	output, err := execute(t, "run", "--input", writeCSV(t), "--out", t.TempDir())
	require.NoError(t, err)
	runDir := runDirFrom(t, output)

	rejected := filepath.Join(runDir, pipeline.FileRejected)
	data, err := os.ReadFile(rejected)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(rejected, append(data, []byte("forged\n")...), 0o644))

	verifyOut, err := execute(t, "verify", runDir)
	require.Error(t, err)
	assert.Equal(t, ExitError, exitCode(err))
	assert.Contains(t, verifyOut, "1 mismatched")
}

func TestMigrateListDoesNotConnect(t *testing.T) {
	output, err := execute(t, "migrate", "--list")
	require.NoError(t, err)
	assert.Contains(t, output, "000001_create_runs.up.sql")
}

func TestVersionJSON(t *testing.T) {
	output, err := execute(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, output, `"manifest_schema": "enrollgate.run_manifest.v1"`)
}

func TestInvalidConfigFails(t *testing.T) {
	t.Setenv("ENROLLGATE_POLICY_EXPRESSION", "rejection_rate ~ 0.05")
	_, err := execute(t, "version")
	require.Error(t, err)
	assert.Equal(t, ExitError, exitCode(err))
}
