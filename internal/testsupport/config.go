package testsupport

import (
	"path/filepath"
	"testing"

	"clipstream/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Endpoint = "127.0.0.1:0"
	cfg.Storage.AccessKey = "test"
	cfg.Storage.SecretKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxAttempts overrides the retry limit on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.MaxAttempts = attempts
	}
}

// WithEmbeddingDim overrides the embedding dimensionality on the test config.
func WithEmbeddingDim(dim int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Analysis.EmbeddingDim = dim
	}
}
