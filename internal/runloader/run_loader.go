// Package runloader batches run-summary lookups within a request.
package runloader

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/repository"
)

// DefaultWait is how long the loader collects keys before one batch call.
const DefaultWait = 5 * time.Millisecond

type RunLoader struct {
	Loader *dataloader.Loader
}

func NewRunLoader(repo repository.RunRepository) *RunLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		runKeys := keys.Keys()

		summaries, err := repo.GetByKeys(ctx, runKeys)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byKey := make(map[string]domain.RunSummary, len(summaries))
		for _, s := range summaries {
			byKey[s.RunKey] = s
		}

		// Results must line up with keys.
		results := make([]*dataloader.Result, len(keys))
		for i, key := range runKeys {
			if s, ok := byKey[key]; ok {
				results[i] = &dataloader.Result{Data: s}
			} else {
				results[i] = &dataloader.Result{Error: errors.Mark(errors.Newf("run %s not found", key), repository.ErrRunNotFound)}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(DefaultWait))

	return &RunLoader{Loader: loader}
}

// Load returns one run. Unknown keys yield an error matching
// repository.ErrRunNotFound.
func (l *RunLoader) Load(ctx context.Context, runKey string) (domain.RunSummary, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(runKey))()
	if err != nil {
		return domain.RunSummary{}, err
	}
	return asSummary(data)
}

// LoadMany queues every key before waiting so they share one batch. The
// returned slices are index-aligned with runKeys.
func (l *RunLoader) LoadMany(ctx context.Context, runKeys []string) ([]domain.RunSummary, []error) {
	thunks := make([]dataloader.Thunk, len(runKeys))
	for i, key := range runKeys {
		thunks[i] = l.Loader.Load(ctx, dataloader.StringKey(key))
	}

	summaries := make([]domain.RunSummary, len(runKeys))
	errs := make([]error, len(runKeys))
	for i, thunk := range thunks {
		data, err := thunk()
		if err != nil {
			errs[i] = err
			continue
		}
		summaries[i], errs[i] = asSummary(data)
	}
	return summaries, errs
}

func asSummary(data interface{}) (domain.RunSummary, error) {
	s, ok := data.(domain.RunSummary)
	if !ok {
		return domain.RunSummary{}, errors.Newf("unexpected loader result %T", data)
	}
	return s, nil
}
