package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
)

var runKeyPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{6}Z__[A-Za-z0-9_-]+__[0-9a-f]{8}$`)

func TestNewIdentity(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 5, 7, 0, time.FixedZone("ART", -3*3600))
	id := NewIdentity(now, "febrero batch/2")

	assert.True(t, runKeyPattern.MatchString(id.RunKey), id.RunKey)
	assert.Contains(t, id.RunKey, "2026-02-10_120507Z__febrero_batch_2__")
	assert.Equal(t, "febrero_batch_2", id.RunLabel)
	assert.Len(t, id.RunID, 36)
	assert.Equal(t, time.UTC, id.StartedAt.Location())

	other := NewIdentity(now, "febrero batch/2")
	assert.NotEqual(t, id.RunKey, other.RunKey)
	assert.NotEqual(t, id.RunID, other.RunID)
}

func TestSanitizeLabel(t *testing.T) {
	cases := map[string]string{
		"":           DefaultLabel,
		"   ":        DefaultLabel,
		"../../etc":  "etc",
		"ok-label_1": "ok-label_1",
		"año 2026":   "a_o_2026",
	}
	for in, want := range cases {
		if got := SanitizeLabel(in); got != want {
			t.Fatalf("SanitizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	content := []byte("id_solicitud\nREQ-1\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	d, err := HashFile(path)
	require.NoError(t, err)
	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), d.SHA256)
	assert.Equal(t, int64(len(content)), d.SizeBytes)
}

func TestHashFileChangesWithOneByte(t *testing.T) {
	dir := t.TempDir()
	content := []byte("id_solicitud,moneda\nREQ-1,ARS\n")
	original := filepath.Join(dir, "a.csv")
	require.NoError(t, os.WriteFile(original, content, 0o644))

	mutated := append([]byte(nil), content...)
	mutated[len(mutated)-2] = 'Z'
	changed := filepath.Join(dir, "b.csv")
	require.NoError(t, os.WriteFile(changed, mutated, 0o644))

	a, err := HashFile(original)
	require.NoError(t, err)
	b, err := HashFile(changed)
	require.NoError(t, err)
	if a.SHA256 == b.SHA256 {
		t.Fatalf("one-byte change kept hash %s", a.SHA256)
	}
	assert.Equal(t, a.SizeBytes, b.SizeBytes)
}

func writeArtifacts(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{
		domain.ArtifactNormalized:    "normalized_requests.csv",
		domain.ArtifactQualityReport: "data_quality_report.json",
	}
	for _, rel := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(rel+" content\n"), 0o644))
	}
	return files
}

func TestBuildWriteVerify(t *testing.T) {
	dir := t.TempDir()
	artifacts := writeArtifacts(t, dir)
	id := NewIdentity(time.Now(), "test")

	m, err := NewBuilder("v1").Build(Input{
		Identity:       id,
		Status:         domain.RunStatusCompleted,
		FinishedAt:     id.StartedAt.Add(1500 * time.Millisecond),
		InputPath:      "in.csv",
		FormatResolved: "csv",
		RunDir:         dir,
		Artifacts:      artifacts,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), m.Run.ElapsedMS)
	assert.Equal(t, Schema, m.Schema)
	require.Contains(t, m.ArtifactsIntegrity, domain.ArtifactNormalized)
	assert.NotContains(t, m.ArtifactsIntegrity, "run_manifest")

	sha, err := Write(dir, m)
	require.NoError(t, err)
	assert.Len(t, sha, 64)

	_, err = Write(dir, m)
	assert.Error(t, err, "manifest must not be overwritten")

	result, err := Verify(dir)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Checked)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "normalized_requests.csv"), []byte("tampered\n"), 0o644))
	result, err = Verify(dir)
	require.NoError(t, err)
	assert.False(t, result.OK())
	require.Len(t, result.Mismatches, 1)
	assert.Contains(t, result.Mismatches[0], domain.ArtifactNormalized)
}

func TestBuildFailsOnMissingArtifact(t *testing.T) {
	_, err := NewBuilder("v1").Build(Input{
		Identity:  NewIdentity(time.Now(), ""),
		RunDir:    t.TempDir(),
		Artifacts: map[string]string{domain.ArtifactRejected: "rejected_requests.csv"},
	})
	assert.Error(t, err)
}
