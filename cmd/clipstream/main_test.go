package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/queue"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "clipstream.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
staging_dir = %q
log_dir = %q
`, filepath.Join(base, "data"), filepath.Join(base, "staging"), filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedQueue(t *testing.T, configPath string) *config.Config {
	t.Helper()
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, _, err := store.Enqueue(ctx, "vid-cli", "Overtime Thriller", "raw-uploads/vid-cli"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return cfg
}

func TestQueueListShowsEnqueuedVideo(t *testing.T) {
	configPath := writeTestConfig(t)
	seedQueue(t, configPath)

	out, err := runCommand(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list failed: %v", err)
	}
	if !strings.Contains(out, "vid-cli") || !strings.Contains(out, "pending") {
		t.Fatalf("expected queue listing, got:\n%s", out)
	}
}

func TestQueueCancelPendingVideo(t *testing.T) {
	configPath := writeTestConfig(t)
	cfg := seedQueue(t, configPath)

	out, err := runCommand(t, "--config", configPath, "queue", "cancel", "vid-cli")
	if err != nil {
		t.Fatalf("queue cancel failed: %v", err)
	}
	if !strings.Contains(out, "cancelled") {
		t.Fatalf("expected cancellation confirmation, got:\n%s", out)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	video, err := store.GetByID(context.Background(), "vid-cli")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if video.Status != queue.StatusCancelled {
		t.Fatalf("expected cancelled status, got %s", video.Status)
	}
}

func TestQueueRetryWithoutFailures(t *testing.T) {
	configPath := writeTestConfig(t)
	seedQueue(t, configPath)

	out, err := runCommand(t, "--config", configPath, "queue", "retry")
	if err != nil {
		t.Fatalf("queue retry failed: %v", err)
	}
	if !strings.Contains(out, "Requeued 0") {
		t.Fatalf("expected zero requeues, got:\n%s", out)
	}
}

func TestStatusReportsStoppedDaemon(t *testing.T) {
	configPath := writeTestConfig(t)
	seedQueue(t, configPath)

	out, err := runCommand(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "Daemon: stopped") {
		t.Fatalf("expected stopped daemon, got:\n%s", out)
	}
	if !strings.Contains(out, "pending") {
		t.Fatalf("expected queue counts, got:\n%s", out)
	}
}

func TestRelationsListsRecordedEdges(t *testing.T) {
	configPath := writeTestConfig(t)
	cfg := seedQueue(t, configPath)

	embeddings, err := embedding.Open(cfg)
	if err != nil {
		t.Fatalf("open embedding store: %v", err)
	}
	if err := embeddings.RecordDuplicate(context.Background(), "vid-cli", "vid-original"); err != nil {
		t.Fatalf("record duplicate: %v", err)
	}
	embeddings.Close()

	out, err := runCommand(t, "--config", configPath, "relations", "vid-cli")
	if err != nil {
		t.Fatalf("relations failed: %v", err)
	}
	if !strings.Contains(out, "duplicate") || !strings.Contains(out, "vid-original") {
		t.Fatalf("expected duplicate edge, got:\n%s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCommand(t, "--config", configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate failed: %v", err)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("expected validation confirmation, got:\n%s", out)
	}
}
