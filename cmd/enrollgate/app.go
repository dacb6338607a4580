package main

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/rpattn/enrollgate/internal/config"
	"github.com/rpattn/enrollgate/internal/db"
	"github.com/rpattn/enrollgate/internal/ingestion"
	"github.com/rpattn/enrollgate/internal/pipeline"
	"github.com/rpattn/enrollgate/internal/repository"
	"github.com/rpattn/enrollgate/internal/rules"
)

func buildRunner(cfg config.Config, repo repository.RunRepository) (*pipeline.Runner, error) {
	policy, err := cfg.QualityPolicy()
	if err != nil {
		return nil, err
	}
	delimiter, err := cfg.Delimiter()
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.Options{
		Engine:       rules.NewEngine(rules.DefaultRules(cfg.Rules)...),
		Policy:       policy,
		Workers:      cfg.Pipeline.Workers,
		ChunkSize:    cfg.Pipeline.ChunkSize,
		ExampleLimit: cfg.Pipeline.ExampleLimit,
		Ingestion:    ingestion.Options{Delimiter: delimiter},
		Repository:   repo,
	})
}

// openRepository returns the Postgres store when the database is enabled,
// otherwise the manifest-backed store under the output directory.
func openRepository(ctx context.Context, cfg config.Config) (repository.RunRepository, func(), error) {
	if !cfg.Database.Enabled {
		return repository.NewFilesystemRunRepository(cfg.Pipeline.OutDir), func() {}, nil
	}

	conn, err := db.NewConnection(ctx, cfg.Database.Config)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to run-history database")
	}
	if err := db.RunMigrations(conn.Pool); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return repository.NewPostgresRunRepository(conn.Pool), conn.Close, nil
}
