package repository

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/manifest"
)

// FilesystemRunRepository reads summaries straight from run manifests under
// <outDir>/runs. The manifest is the source of truth, so Save only validates.
type FilesystemRunRepository struct {
	runsDir string

	mu    sync.RWMutex
	cache map[string]domain.RunSummary
}

// NewFilesystemRunRepository serves runs written under outDir.
func NewFilesystemRunRepository(outDir string) *FilesystemRunRepository {
	return &FilesystemRunRepository{
		runsDir: filepath.Join(outDir, "runs"),
		cache:   make(map[string]domain.RunSummary),
	}
}

func (r *FilesystemRunRepository) Save(_ context.Context, s domain.RunSummary) error {
	if s.RunKey == "" {
		return errors.New("run summary has no run key")
	}
	r.mu.Lock()
	r.cache[s.RunKey] = s
	r.mu.Unlock()
	return nil
}

func (r *FilesystemRunRepository) GetByKey(ctx context.Context, runKey string) (domain.RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return domain.RunSummary{}, err
	}
	r.mu.RLock()
	s, ok := r.cache[runKey]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	if runKey == "" || runKey != filepath.Base(runKey) {
		return domain.RunSummary{}, errors.Mark(errors.Newf("run %q not found", runKey), ErrRunNotFound)
	}
	s, err := r.load(filepath.Join(r.runsDir, runKey))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.RunSummary{}, errors.Mark(errors.Newf("run %s not found", runKey), ErrRunNotFound)
		}
		return domain.RunSummary{}, err
	}
	return s, nil
}

func (r *FilesystemRunRepository) GetByKeys(ctx context.Context, runKeys []string) ([]domain.RunSummary, error) {
	out := make([]domain.RunSummary, 0, len(runKeys))
	for _, key := range runKeys {
		s, err := r.GetByKey(ctx, key)
		if err != nil {
			if errors.Is(err, ErrRunNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *FilesystemRunRepository) List(ctx context.Context, limit, offset int) ([]domain.RunSummary, int, error) {
	limit, offset = normalizePage(limit, offset)

	entries, err := os.ReadDir(r.runsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.RunSummary{}, 0, nil
		}
		return nil, 0, errors.Wrapf(err, "list %s", r.runsDir)
	}

	var all []domain.RunSummary
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if !e.IsDir() {
			continue
		}
		s, err := r.load(filepath.Join(r.runsDir, e.Name()))
		if err != nil {
			// Fatal-input runs have no manifest and are not listed.
			continue
		}
		all = append(all, s)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].StartedAt.After(all[j].StartedAt)
		}
		return all[i].RunKey > all[j].RunKey
	})

	total := len(all)
	if offset >= total {
		return []domain.RunSummary{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *FilesystemRunRepository) load(runDir string) (domain.RunSummary, error) {
	m, sha, err := manifest.Read(runDir)
	if err != nil {
		return domain.RunSummary{}, err
	}
	s := domain.SummaryFromManifest(m, runDir, sha)
	r.mu.Lock()
	r.cache[s.RunKey] = s
	r.mu.Unlock()
	return s, nil
}
