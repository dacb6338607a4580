// Package repository persists run summaries for the run-history API.
package repository

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/domain"
)

// ErrRunNotFound is returned when no run matches the requested key.
var ErrRunNotFound = errors.New("run not found")

// Page size bounds for List.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// RunRepository stores and retrieves run summaries.
type RunRepository interface {
	Save(ctx context.Context, summary domain.RunSummary) error
	GetByKey(ctx context.Context, runKey string) (domain.RunSummary, error)
	// GetByKeys returns the runs found; missing keys are simply absent.
	GetByKeys(ctx context.Context, runKeys []string) ([]domain.RunSummary, error)
	// List returns a page ordered newest first, plus the total count.
	List(ctx context.Context, limit, offset int) ([]domain.RunSummary, int, error)
}

// normalizePage clamps limit and offset into their valid ranges.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
