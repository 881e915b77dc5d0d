package workflow

import (
	"context"

	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/stage"
)

// StatusSummary captures a point-in-time view of the manager for the
// operator surface.
type StatusSummary struct {
	Running     bool
	QueueStats  queue.Stats
	StageHealth map[string]stage.Health
}

// Status reports manager state, queue counts, and per-stage health.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	stats, err := m.store.QueueStats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	health := make(map[string]stage.Health, len(m.stages))
	for _, st := range m.stages {
		if st.handler == nil {
			health[st.name] = stage.Unhealthy(st.name, "handler not configured")
			continue
		}
		health[st.name] = st.handler.HealthCheck(ctx)
	}

	return StatusSummary{Running: running, QueueStats: stats, StageHealth: health}
}
