// Package config loads enrollgate settings from defaults, an optional YAML
// file and ENROLLGATE_* environment variables.
package config

import (
	"runtime"

	"github.com/rpattn/enrollgate/internal/db"
	"github.com/rpattn/enrollgate/internal/quality"
	"github.com/rpattn/enrollgate/internal/rules"
)

// Config is the full application configuration.
type Config struct {
	Log       LogConfig
	Pipeline  PipelineConfig
	Ingestion IngestionConfig
	Rules     rules.Config
	Policy    PolicyConfig
	Database  DatabaseConfig
	Server    ServerConfig
}

// LogConfig controls operator logging.
type LogConfig struct {
	Level string
	JSON  bool
}

// PipelineConfig controls run execution.
type PipelineConfig struct {
	OutDir       string
	Workers      int
	ChunkSize    int
	ExampleLimit int
}

// IngestionConfig controls format adapters. An empty delimiter means sniff.
type IngestionConfig struct {
	Delimiter string
}

// PolicyConfig describes the quality gate.
type PolicyConfig struct {
	ID                string
	Expression        string
	DegradedLimit     *float64
	MinAcceptanceRate *float64
}

// DatabaseConfig enables the Postgres run-history store.
type DatabaseConfig struct {
	Enabled bool
	db.Config
}

// ServerConfig controls the HTTP run API.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	UploadDir      string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Pipeline: PipelineConfig{
			OutDir:       "out",
			Workers:      runtime.GOMAXPROCS(0),
			ChunkSize:    256,
			ExampleLimit: quality.DefaultExampleLimit,
		},
		Rules: rules.DefaultConfig(),
		Policy: PolicyConfig{
			ID:         quality.DefaultPolicyID,
			Expression: quality.DefaultPolicyExpression,
		},
		Database: DatabaseConfig{Config: db.DefaultConfig()},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			UploadDir:      "uploads",
		},
	}
}
