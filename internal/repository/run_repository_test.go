package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/manifest"
)

func writeRun(t *testing.T, outDir string, started time.Time, label string) domain.RunManifest {
	t.Helper()
	id := manifest.NewIdentity(started, label)
	runDir := filepath.Join(outDir, "runs", id.RunKey)
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "decision_log.jsonl"), []byte("{}\n"), 0o644))

	m, err := manifest.NewBuilder("v1").Build(manifest.Input{
		Identity:   id,
		Status:     domain.RunStatusCompleted,
		FinishedAt: started.Add(time.Second),
		InputPath:  "in.csv",
		Metrics:    domain.QualityMetrics{Total: 3, Valid: 2, Invalid: 1, RejectionRate: 0.3333},
		RunDir:     runDir,
		Artifacts:  map[string]string{domain.ArtifactDecisionLog: "decision_log.jsonl"},
	})
	require.NoError(t, err)
	_, err = manifest.Write(runDir, m)
	require.NoError(t, err)
	return m
}

func TestFilesystemRepositoryReadsManifests(t *testing.T) {
	out := t.TempDir()
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	older := writeRun(t, out, base, "older")
	newer := writeRun(t, out, base.Add(time.Hour), "newer")
	// A run aborted on fatal input has no manifest and must be skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(out, "runs", "2026-02-10_130000Z__broken__deadbeef"), 0o755))

	repo := NewFilesystemRunRepository(out)
	ctx := context.Background()

	runs, total, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.Run.RunKey, runs[0].RunKey)
	assert.Equal(t, older.Run.RunKey, runs[1].RunKey)
	assert.Equal(t, 3, runs[0].Total)
	assert.Len(t, runs[0].ManifestSHA256, 64)

	page, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, page, 1)
	assert.Equal(t, older.Run.RunKey, page[0].RunKey)

	got, err := repo.GetByKey(ctx, older.Run.RunKey)
	require.NoError(t, err)
	assert.Equal(t, older.Run.RunID, got.RunID)

	many, err := repo.GetByKeys(ctx, []string{newer.Run.RunKey, "missing", older.Run.RunKey})
	require.NoError(t, err)
	require.Len(t, many, 2)
	assert.Equal(t, newer.Run.RunKey, many[0].RunKey)
}

func TestFilesystemRepositoryNotFound(t *testing.T) {
	repo := NewFilesystemRunRepository(t.TempDir())

	_, err := repo.GetByKey(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = repo.GetByKey(context.Background(), "../etc")
	assert.True(t, errors.Is(err, ErrRunNotFound))

	runs, total, err := repo.List(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, runs)
}

func TestFilesystemRepositorySaveCaches(t *testing.T) {
	repo := NewFilesystemRunRepository(t.TempDir())
	require.NoError(t, repo.Save(context.Background(), domain.RunSummary{RunKey: "k", RunID: "id"}))

	got, err := repo.GetByKey(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "id", got.RunID)

	assert.Error(t, repo.Save(context.Background(), domain.RunSummary{}))
}

func TestNormalizePage(t *testing.T) {
	cases := []struct{ limit, offset, wantLimit, wantOffset int }{
		{0, 0, DefaultListLimit, 0},
		{10, -3, 10, 0},
		{MaxListLimit + 1, 5, MaxListLimit, 5},
	}
	for _, tc := range cases {
		l, o := normalizePage(tc.limit, tc.offset)
		if l != tc.wantLimit || o != tc.wantOffset {
			t.Fatalf("normalizePage(%d, %d) = (%d, %d), want (%d, %d)", tc.limit, tc.offset, l, o, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestPostgresRepositoryRequiresPool(t *testing.T) {
	repo := NewPostgresRunRepository(nil)
	assert.Error(t, repo.Save(context.Background(), domain.RunSummary{RunKey: "k"}))
	_, err := repo.GetByKey(context.Background(), "k")
	assert.Error(t, err)
	_, _, err = repo.List(context.Background(), 1, 0)
	assert.Error(t, err)
}
