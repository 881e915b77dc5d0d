package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"clipstream/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Workflow.Workers != 4 {
		t.Fatalf("expected default workers, got %d", cfg.Workflow.Workers)
	}
	if cfg.Analysis.DistanceMetric != "euclidean" {
		t.Fatalf("expected default metric, got %q", cfg.Analysis.DistanceMetric)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[workflow]
workers = 2
max_attempts = 5

[analysis]
distance_metric = "Cosine"
embedding_dim = 64

[logging]
format = "json"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved == "" {
		t.Fatal("expected config file to be found")
	}
	if cfg.Workflow.Workers != 2 || cfg.Workflow.MaxAttempts != 5 {
		t.Fatalf("overrides not applied: %+v", cfg.Workflow)
	}
	if cfg.Analysis.DistanceMetric != "cosine" {
		t.Fatalf("metric not normalized: %q", cfg.Analysis.DistanceMetric)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging format %q", cfg.Logging.Format)
	}
}

func TestValidateRejectsBadMetric(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.DistanceMetric = "manhattan"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported metric")
	}
}

func TestValidateRejectsHeartbeatMisconfig(t *testing.T) {
	cfg := config.Default()
	cfg.Workflow.HeartbeatInterval = 60
	cfg.Workflow.HeartbeatTimeout = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when timeout <= interval")
	}
}

func TestValidateRejectsDuplicateRenditions(t *testing.T) {
	cfg := config.Default()
	cfg.Transcode.Renditions = append(cfg.Transcode.Renditions, cfg.Transcode.Renditions[0])
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for duplicate rendition name")
	}
}
