package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enqueue registers an uploaded video for processing. Delivery of the same
// upload-completion event twice is a no-op: the existing record is returned
// untouched and created is false.
func (s *Store) Enqueue(ctx context.Context, id, title, sourceKey string) (*Video, bool, error) {
	if strings.TrimSpace(id) == "" {
		return nil, false, errors.New("video id is required")
	}
	if strings.TrimSpace(sourceKey) == "" {
		return nil, false, errors.New("source key is required")
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO videos (id, title, source_key, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(title),
		sourceKey,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert video: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	video, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if video == nil {
		return nil, false, fmt.Errorf("video %s missing after enqueue", id)
	}
	return video, inserted > 0, nil
}

// GetByID fetches a video by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// FindByFingerprint returns the earliest-created video with the given
// fingerprint, ties broken by smallest id. Only videos that own a fingerprint
// as canonical originals are considered; duplicates never become originals.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Video, error) {
	if fingerprint == "" {
		return nil, errors.New("fingerprint is required")
	}
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos
         WHERE fingerprint = ? AND status != ?
         ORDER BY created_at, id LIMIT 1`,
		fingerprint,
		StatusDuplicate,
	)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return video, nil
}

// Update persists changes to an existing video record.
func (s *Store) Update(ctx context.Context, video *Video) error {
	if video == nil {
		return errors.New("video is nil")
	}
	video.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE videos
         SET title = ?, source_key = ?, status = ?, duration_seconds = ?, fingerprint = ?,
             attempts = ?, not_before = ?, manifest_key = ?, thumbnail_key = ?, transcript_key = ?,
             error_message = ?, error_kind = ?, resume_status = ?, cancel_requested = ?,
             lease_owner = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(video.Title),
		video.SourceKey,
		video.Status,
		video.DurationSeconds,
		nullableString(video.Fingerprint),
		video.Attempts,
		nullableTime(video.NotBefore),
		nullableString(video.ManifestKey),
		nullableString(video.ThumbnailKey),
		nullableString(video.TranscriptKey),
		nullableString(video.ErrorMessage),
		nullableString(video.ErrorKind),
		nullableString(string(video.ResumeStatus)),
		boolToInt(video.CancelRequested),
		nullableString(video.LeaseOwner),
		nullableTime(video.LastHeartbeat),
		video.UpdatedAt.Format(time.RFC3339Nano),
		video.ID,
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	return nil
}

// List returns videos filtered by status set (or all videos when no status is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Video, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + videoColumns + ` FROM videos`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, rows.Err()
}

// NextReady returns the oldest video in one of the given start statuses whose
// backoff gate has passed and which has not been cancelled. Returns nil when
// nothing is ready.
func (s *Store) NextReady(ctx context.Context, statuses ...Status) (*Video, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, 0, len(statuses)+1)
	for _, status := range statuses {
		args = append(args, status)
	}
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))

	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+videoColumns+` FROM videos
         WHERE status IN (`+placeholders+`)
           AND cancel_requested = 0
           AND (not_before IS NULL OR not_before <= ?)
         ORDER BY created_at, id LIMIT 1`,
		args...,
	)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next ready video: %w", err)
	}
	return video, nil
}

// QueueStats aggregates per-state counts for the operator surface.
func (s *Store) QueueStats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM videos GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return Stats{}, err
		}
		stats.Total += count
		status := Status(statusStr)
		switch {
		case status == StatusCompleted:
			stats.Completed += count
		case status == StatusDuplicate:
			stats.Duplicate += count
		case status == StatusFailed:
			stats.Failed += count
		case status == StatusCancelled:
			stats.Cancelled += count
		case IsProcessingStatus(status):
			stats.Processing += count
		default:
			stats.Pending += count
		}
	}
	return stats, rows.Err()
}
