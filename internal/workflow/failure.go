package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/notifications"
	"clipstream/internal/queue"
	"clipstream/internal/services"
)

// handleStageFailure routes a stage error to one of two outcomes: a retryable
// error requeues the video at the stage start behind a backoff gate, anything
// else (or an exhausted attempt budget) marks the video failed.
func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, st pipelineStage, video *queue.Video, stageErr error) {
	kind := services.Classification(stageErr)
	message := strings.TrimSpace(stageErr.Error())
	retryable := services.IsRetryable(stageErr)

	video.Attempts++
	if retryable && video.Attempts < m.maxAttempts {
		delay := m.backoffDelay(video.Attempts)
		notBefore := time.Now().UTC().Add(delay)
		video.Status = st.start
		video.NotBefore = &notBefore
		video.ErrorMessage = message
		video.ErrorKind = kind
		video.LeaseOwner = ""
		video.LastHeartbeat = nil
		if err := m.store.Update(ctx, video); err != nil {
			logger.Error("failed to persist retry state", logging.Error(err))
			return
		}
		logger.Warn(
			"stage failed, will retry",
			logging.String(logging.FieldEventType, "stage_retry"),
			logging.String("error_kind", kind),
			logging.Int("attempt", video.Attempts),
			logging.Duration("retry_in", delay),
			logging.Error(stageErr),
		)
		return
	}

	video.SetFailed(st.start, kind, message)
	if err := m.store.Update(ctx, video); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
		return
	}
	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_kind", kind),
		logging.Int("attempts", video.Attempts),
		logging.Error(stageErr),
	)
	m.publish(ctx, logger, notifications.EventProcessingFailed, notifications.Payload{
		"video_id": video.ID,
		"title":    video.Title,
		"error":    message,
	})
	m.cleanupStaging(logger, video.ID)
}

// backoffDelay computes the retry delay for the given attempt count: the base
// doubled per prior attempt, capped.
func (m *Manager) backoffDelay(attempts int) time.Duration {
	delay := m.retryBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= m.retryCap {
			return m.retryCap
		}
	}
	if delay > m.retryCap {
		return m.retryCap
	}
	return delay
}
