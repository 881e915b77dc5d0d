package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/stage"
)

func (m *Manager) runWorker(ctx context.Context, owner string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String("worker", owner))

	for {
		if ctx.Err() != nil {
			return
		}
		video, err := m.store.NextReady(ctx, m.startStatuses...)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("queue poll failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if video == nil {
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
			continue
		}

		st, ok := m.stageByStart[video.Status]
		if !ok {
			logger.Warn("no stage configured for status", logging.String("status", string(video.Status)))
			if !sleepCtx(ctx, m.pollInterval) {
				return
			}
			continue
		}

		claimed, err := m.store.Claim(ctx, video.ID, st.start, st.processing, owner)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("claim failed", logging.Error(err))
			if !sleepCtx(ctx, m.errorRetryInterval) {
				return
			}
			continue
		}
		if !claimed {
			// Another worker won the lease or the video moved on.
			continue
		}
		video.Status = st.processing
		video.LeaseOwner = owner
		video.ErrorMessage = ""
		video.ErrorKind = ""
		video.NotBefore = nil

		m.processVideo(ctx, st, video)
	}
}

func (m *Manager) processVideo(ctx context.Context, st pipelineStage, video *queue.Video) {
	stageCtx := services.WithVideoID(ctx, video.ID)
	stageCtx = services.WithStage(stageCtx, st.name)
	stageCtx = services.WithRequestID(stageCtx, uuid.NewString())
	logger := logging.WithContext(stageCtx, m.logger)

	stageStart := time.Now()
	logger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("title", strings.TrimSpace(video.Title)),
		logging.Int("attempt", video.Attempts+1),
	)

	if st.handler == nil {
		m.handleStageFailure(stageCtx, logger, st, video, services.Wrap(services.ErrConfiguration, st.name, "dispatch", "stage handler unavailable", nil))
		return
	}

	if err := st.handler.Prepare(stageCtx, video); err != nil {
		m.handleStageFailure(stageCtx, logger, st, video, err)
		return
	}
	if err := m.store.Update(stageCtx, video); err != nil {
		logger.Error("failed to persist stage preparation", logging.Error(err))
		m.releaseOnShutdown(st, video)
		return
	}

	execErr := m.executeWithHeartbeat(stageCtx, st, video)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) && ctx.Err() != nil {
			logger.Debug("stage interrupted by shutdown")
			m.releaseOnShutdown(st, video)
			return
		}
		m.handleStageFailure(stageCtx, logger, st, video, execErr)
		return
	}

	m.advance(stageCtx, logger, st, video, stageStart)
}

// advance settles a successful stage run: cancellation wins over any other
// outcome, a duplicate verdict short-circuits the pipeline, otherwise the
// video moves to the stage's done status with its attempt count reset.
func (m *Manager) advance(ctx context.Context, logger *slog.Logger, st pipelineStage, video *queue.Video, stageStart time.Time) {
	if fresh, err := m.store.GetByID(ctx, video.ID); err != nil {
		logger.Warn("cancellation check failed", logging.Error(err))
	} else if fresh != nil && fresh.CancelRequested {
		video.CancelRequested = true
		video.Status = queue.StatusCancelled
		video.LeaseOwner = ""
		video.LastHeartbeat = nil
		video.NotBefore = nil
		if err := m.store.Update(ctx, video); err != nil {
			logger.Error("failed to persist cancellation", logging.Error(err))
			return
		}
		logger.Info("video cancelled", logging.String(logging.FieldEventType, "stage_cancelled"))
		m.cleanupStaging(logger, video.ID)
		return
	}

	if video.Status == queue.StatusDuplicate {
		video.Attempts = 0
		video.LeaseOwner = ""
		video.LastHeartbeat = nil
		video.NotBefore = nil
		if err := m.store.Update(ctx, video); err != nil {
			logger.Error("failed to persist duplicate verdict", logging.Error(err))
			return
		}
		logger.Info(
			"duplicate detected",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("fingerprint", video.Fingerprint),
		)
		m.publish(ctx, logger, notifications.EventDuplicateDetected, notifications.Payload{
			"video_id": video.ID,
			"title":    video.Title,
		})
		m.cleanupStaging(logger, video.ID)
		return
	}

	video.Status = st.done
	video.Attempts = 0
	video.LeaseOwner = ""
	video.LastHeartbeat = nil
	video.NotBefore = nil
	if err := m.store.Update(ctx, video); err != nil {
		logger.Error("failed to persist stage result", logging.Error(err))
		return
	}
	logger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(video.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)

	if video.Status == queue.StatusCompleted {
		m.publish(ctx, logger, notifications.EventProcessingCompleted, notifications.Payload{
			"video_id": video.ID,
			"title":    video.Title,
		})
		m.cleanupStaging(logger, video.ID)
	}
}

// cleanupStaging drops a video's staging tree once no further stage will run.
func (m *Manager) cleanupStaging(logger *slog.Logger, videoID string) {
	if err := stage.CleanupWorkdir(m.cfg.Paths.StagingDir, videoID); err != nil {
		logger.Warn("staging cleanup failed", logging.Error(err))
	}
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, st pipelineStage, video *queue.Video) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.Loop(hbCtx, &hbWG, video.ID)

	execErr := st.handler.Execute(ctx, video)
	hbCancel()
	hbWG.Wait()
	return execErr
}

// releaseOnShutdown returns an in-flight lease to the stage start so the
// video is retried cleanly after restart. Uses a fresh context because the
// run context is already cancelled.
func (m *Manager) releaseOnShutdown(st pipelineStage, video *queue.Video) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.ReleaseLease(releaseCtx, video.ID, st.processing); err != nil {
		m.logger.Warn("lease release failed", logging.String(logging.FieldVideoID, video.ID), logging.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logger.Warn("notification failed", logging.String("event", string(event)), logging.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
