package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/queue"
)

// HeartbeatMonitor refreshes per-video lease heartbeats and reclaims videos
// whose worker stopped heartbeating.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a monitor. A timeout of zero disables
// reclamation.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval, timeout: timeout}
}

// ReclaimStale returns videos with expired heartbeats to their stage start.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale videos", logging.Int64("count", reclaimed))
	}
	return nil
}

// Loop refreshes the heartbeat for a claimed video until the context is
// cancelled.
func (h *HeartbeatMonitor) Loop(ctx context.Context, wg *sync.WaitGroup, videoID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, videoID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				h.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldVideoID, videoID),
					logging.Error(err))
			}
		}
	}
}
