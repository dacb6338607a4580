package repository

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/enrollgate/internal/domain"
)

const runColumns = `run_key, run_id, run_label, status, input_path, input_format, input_sha256,
	policy_id, total, valid, invalid, rejection_rate, manifest_sha256, run_dir, started_at, finished_at`

type postgresRunRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRunRepository wires a repository backed by pgxpool.
func NewPostgresRunRepository(pool *pgxpool.Pool) RunRepository {
	return &postgresRunRepository{pool: pool}
}

func (r *postgresRunRepository) Save(ctx context.Context, s domain.RunSummary) error {
	if r.pool == nil {
		return errors.New("run repository not initialized")
	}

	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO runs (`+runColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (run_key) DO UPDATE SET
		   status = EXCLUDED.status,
		   manifest_sha256 = EXCLUDED.manifest_sha256,
		   finished_at = EXCLUDED.finished_at`,
		s.RunKey,
		s.RunID,
		s.RunLabel,
		string(s.Status),
		s.InputPath,
		s.InputFormat,
		s.InputSHA256,
		s.PolicyID,
		s.Total,
		s.Valid,
		s.Invalid,
		s.RejectionRate,
		s.ManifestSHA256,
		s.RunDir,
		s.StartedAt,
		s.FinishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save run %s", s.RunKey)
	}
	return nil
}

func (r *postgresRunRepository) GetByKey(ctx context.Context, runKey string) (domain.RunSummary, error) {
	if r.pool == nil {
		return domain.RunSummary{}, errors.New("run repository not initialized")
	}

	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE run_key = $1`, runKey)
	summary, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunSummary{}, errors.Mark(errors.Newf("run %s not found", runKey), ErrRunNotFound)
		}
		return domain.RunSummary{}, errors.Wrapf(err, "failed to get run %s", runKey)
	}
	return summary, nil
}

func (r *postgresRunRepository) GetByKeys(ctx context.Context, runKeys []string) ([]domain.RunSummary, error) {
	if r.pool == nil {
		return nil, errors.New("run repository not initialized")
	}
	if len(runKeys) == 0 {
		return []domain.RunSummary{}, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM runs WHERE run_key = ANY($1)`, runKeys)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get runs")
	}
	defer rows.Close()

	return collectRuns(rows)
}

func (r *postgresRunRepository) List(ctx context.Context, limit, offset int) ([]domain.RunSummary, int, error) {
	if r.pool == nil {
		return nil, 0, errors.New("run repository not initialized")
	}
	limit, offset = normalizePage(limit, offset)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count runs")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+runColumns+` FROM runs
		 ORDER BY started_at DESC, run_key DESC
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	runs, err := collectRuns(rows)
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

func collectRuns(rows pgx.Rows) ([]domain.RunSummary, error) {
	runs := []domain.RunSummary{}
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate runs")
	}
	return runs, nil
}

func scanRun(row pgx.Row) (domain.RunSummary, error) {
	var (
		s      domain.RunSummary
		status string
	)
	err := row.Scan(
		&s.RunKey,
		&s.RunID,
		&s.RunLabel,
		&status,
		&s.InputPath,
		&s.InputFormat,
		&s.InputSHA256,
		&s.PolicyID,
		&s.Total,
		&s.Valid,
		&s.Invalid,
		&s.RejectionRate,
		&s.ManifestSHA256,
		&s.RunDir,
		&s.StartedAt,
		&s.FinishedAt,
	)
	if err != nil {
		return domain.RunSummary{}, err
	}
	s.Status = domain.RunStatus(status)
	s.StartedAt = s.StartedAt.UTC()
	s.FinishedAt = s.FinishedAt.UTC()
	return s, nil
}
