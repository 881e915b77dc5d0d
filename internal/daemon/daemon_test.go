package daemon_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/daemon"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/testsupport"
	"clipstream/internal/workflow"
)

type blockingConsumer struct {
	started atomic.Bool
}

func (c *blockingConsumer) Run(ctx context.Context) error {
	c.started.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func daemonConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.Workers = 1
	cfg.Workflow.QueuePollInterval = 1
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	return cfg
}

func newDaemon(t *testing.T, cfg *config.Config, consumer daemon.Consumer) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, workflow.Handlers{}, nil, logging.NewNop())
	d, err := daemon.New(cfg, store, nil, mgr, consumer, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, store
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := daemonConfig(t)
	first, _ := newDaemon(t, cfg, nil)
	second, _ := newDaemon(t, cfg, nil)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	t.Cleanup(first.Stop)

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail lock acquisition")
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("expected second instance to start after lock release: %v", err)
	}
	second.Stop()
}

func TestDaemonRunsConsumerAndReportsStatus(t *testing.T) {
	cfg := daemonConfig(t)
	consumer := &blockingConsumer{}
	d, _ := newDaemon(t, cfg, consumer)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	deadline := time.After(5 * time.Second)
	for !consumer.started.Load() {
		select {
		case <-deadline:
			t.Fatal("expected consumer to start")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected running status")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow manager to report running")
	}
	if status.QueueDBPath != cfg.QueueDatabasePath() {
		t.Fatalf("unexpected queue db path %q", status.QueueDBPath)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped status")
	}
}
