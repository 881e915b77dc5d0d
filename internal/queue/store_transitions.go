package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Claim acquires the per-video lease and moves the video from a stage-start
// status into its processing status. Acquisition fails fast: when another
// worker holds the video, the status has moved on, or cancellation was
// requested, Claim returns false without blocking.
func (s *Store) Claim(ctx context.Context, id string, from, processing Status, owner string) (bool, error) {
	if owner == "" {
		return false, errors.New("lease owner is required")
	}
	if _, ok := StageStart(processing); !ok {
		return false, fmt.Errorf("status %q is not a processing status", processing)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET status = ?, lease_owner = ?, last_heartbeat = ?, error_message = NULL,
             error_kind = NULL, not_before = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND cancel_requested = 0`,
		processing,
		owner,
		now,
		now,
		id,
		from,
	)
	if err != nil {
		return false, fmt.Errorf("claim video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return affected == 1, nil
}

// ReleaseLease returns a claimed video to its stage-start status without
// recording a failure. Used on shutdown so in-flight work is retried cleanly.
func (s *Store) ReleaseLease(ctx context.Context, id string, processing Status) error {
	start, ok := StageStart(processing)
	if !ok {
		return fmt.Errorf("status %q is not a processing status", processing)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET status = ?, lease_owner = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		start,
		now,
		id,
		processing,
	)
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes the lease heartbeat for an in-flight video.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStale returns videos stuck in processing statuses to the start of
// their current stage when their lease heartbeat expired (worker crash or
// unclean shutdown). Attempt counts are preserved.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET status = CASE status
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             WHEN ? THEN ?
             ELSE status
         END,
             lease_owner = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status IN (?, ?, ?, ?)
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusDuplicateChecking, StatusPending,
		StatusTranscoding, StatusDuplicateChecked,
		StatusTranscribing, StatusTranscoded,
		StatusAnalyzing, StatusTranscribed,
		now,
		StatusDuplicateChecking,
		StatusTranscoding,
		StatusTranscribing,
		StatusAnalyzing,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale videos: %w", err)
	}
	return res.RowsAffected()
}

// RequestCancel flags a video for cancellation. Videos waiting at a stage
// boundary are cancelled immediately; in-flight videos are cancelled by the
// orchestrator before it would enqueue the next stage. Terminal videos are
// left untouched.
func (s *Store) RequestCancel(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET cancel_requested = 1,
             status = CASE WHEN status IN (?, ?, ?, ?) THEN ? ELSE status END,
             updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?, ?)`,
		StatusPending, StatusDuplicateChecked, StatusTranscoded, StatusTranscribed,
		StatusCancelled,
		now,
		id,
		StatusCompleted, StatusDuplicate, StatusFailed, StatusCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RetryFailed moves failed videos back to the start of the stage they failed
// in, resetting attempt counts. With no ids, all failed videos are requeued.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	baseSet := `status = COALESCE(NULLIF(resume_status, ''), ?), attempts = 0, not_before = NULL,
             error_message = NULL, error_kind = NULL, resume_status = NULL,
             cancel_requested = 0, updated_at = ?`

	if len(ids) == 0 {
		res, err := s.db.ExecContext(
			ctx,
			`UPDATE videos SET `+baseSet+` WHERE status = ?`,
			StatusPending,
			now,
			StatusFailed,
		)
		if err != nil {
			return 0, fmt.Errorf("retry failed videos: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := []any{StatusPending, now, StatusFailed}
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE videos SET `+baseSet+` WHERE status = ? AND id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("retry selected videos: %w", err)
	}
	return res.RowsAffected()
}
