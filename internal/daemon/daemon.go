package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/workflow"
)

// Consumer is the ingest surface the daemon supervises.
type Consumer interface {
	Run(ctx context.Context) error
}

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *queue.Store
	embeddings *embedding.Store
	workflow   *workflow.Manager
	consumer   Consumer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	QueueDBPath  string
	LockFilePath string
}

// New constructs a daemon over already-initialized dependencies. The
// embedding store and consumer may be nil when a deployment runs without
// analysis or broker ingest.
func New(cfg *config.Config, store *queue.Store, embeddings *embedding.Store, wf *workflow.Manager, consumer Consumer, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "clipstreamd.lock")
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      store,
		embeddings: embeddings,
		workflow:   wf,
		consumer:   consumer,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the workflow manager and the
// upload event consumer.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another clipstream daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if d.consumer != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("ingest consumer stopped", logging.Error(err))
			}
		}()
	}

	d.running.Store(true)
	d.logger.Info("clipstream daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop drains background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("clipstream daemon stopped")
}

// Close stops the daemon and releases store handles.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.embeddings != nil {
		if err := d.embeddings.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		QueueDBPath:  d.cfg.QueueDatabasePath(),
		LockFilePath: d.lockPath,
	}
}
