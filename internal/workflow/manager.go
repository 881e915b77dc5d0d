package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/queue"
)

const (
	defaultWorkers            = 2
	defaultPollInterval       = 2 * time.Second
	defaultErrorRetryInterval = 5 * time.Second
	defaultHeartbeatInterval  = 15 * time.Second
	defaultMaxAttempts        = 3
	defaultRetryBase          = 5 * time.Second
	defaultRetryCap           = 10 * time.Minute
)

// Manager drives videos through the pipeline stages.
type Manager struct {
	cfg      *config.Config
	store    *queue.Store
	notifier notifications.Service
	logger   *slog.Logger

	stages        []pipelineStage
	stageByStart  map[queue.Status]pipelineStage
	startStatuses []queue.Status

	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	maxAttempts        int
	retryBase          time.Duration
	retryCap           time.Duration
	heartbeat          *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager constructs a workflow manager over the given stage handlers.
func NewManager(cfg *config.Config, store *queue.Store, handlers Handlers, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, handlers, notifications.NewService(cfg), logger)
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier.
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, handlers Handlers, notifier notifications.Service, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	stages := buildStages(handlers)
	byStart := make(map[queue.Status]pipelineStage, len(stages))
	startStatuses := make([]queue.Status, 0, len(stages))
	for _, st := range stages {
		byStart[st.start] = st
		startStatuses = append(startStatuses, st.start)
	}

	m := &Manager{
		cfg:           cfg,
		store:         store,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "workflow-manager"),
		stages:        stages,
		stageByStart:  byStart,
		startStatuses: startStatuses,

		workers:            cfg.Workflow.Workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		maxAttempts:        cfg.Workflow.MaxAttempts,
		retryBase:          time.Duration(cfg.Workflow.RetryBaseSeconds) * time.Second,
		retryCap:           time.Duration(cfg.Workflow.RetryCapSeconds) * time.Second,
	}
	if m.workers <= 0 {
		m.workers = defaultWorkers
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.errorRetryInterval <= 0 {
		m.errorRetryInterval = defaultErrorRetryInterval
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = defaultMaxAttempts
	}
	if m.retryBase <= 0 {
		m.retryBase = defaultRetryBase
	}
	if m.retryCap <= 0 {
		m.retryCap = defaultRetryCap
	}

	hbInterval := time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second
	if hbInterval <= 0 {
		hbInterval = defaultHeartbeatInterval
	}
	hbTimeout := time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second
	m.heartbeat = NewHeartbeatMonitor(store, m.logger, hbInterval, hbTimeout)
	return m
}

// Start launches the worker pool and the stale-lease reclaim loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "clipstream"
	}

	for i := 0; i < m.workers; i++ {
		owner := fmt.Sprintf("%s-%d-worker-%d", hostname, os.Getpid(), i)
		m.wg.Add(1)
		go m.runWorker(runCtx, owner)
	}
	m.wg.Add(1)
	go m.runReclaimLoop(runCtx)

	m.logger.Info("workflow manager started", logging.Int("workers", m.workers))
	return nil
}

// Stop signals shutdown and waits for in-flight stages to settle. Stages
// interrupted mid-execution release their lease back to the stage start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow manager stopped")
}

// Running reports whether the manager has active workers.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) runReclaimLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.heartbeat.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.heartbeat.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("stale lease reclaim failed", logging.Error(err))
			}
		}
	}
}
