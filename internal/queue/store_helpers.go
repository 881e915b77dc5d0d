package queue

import (
	"database/sql"
	"errors"
	"time"
)

const videoColumns = "id, title, source_key, status, duration_seconds, fingerprint, attempts, not_before, manifest_key, thumbnail_key, transcript_key, error_message, error_kind, resume_status, cancel_requested, lease_owner, last_heartbeat, created_at, updated_at"

func scanVideo(scanner interface{ Scan(dest ...any) error }) (*Video, error) {
	var (
		id            string
		title         sql.NullString
		sourceKey     string
		statusStr     string
		duration      sql.NullFloat64
		fingerprint   sql.NullString
		attempts      sql.NullInt64
		notBeforeRaw  sql.NullString
		manifestKey   sql.NullString
		thumbnailKey  sql.NullString
		transcriptKey sql.NullString
		errorMessage  sql.NullString
		errorKind     sql.NullString
		resumeStatus  sql.NullString
		cancelFlag    sql.NullInt64
		leaseOwner    sql.NullString
		heartbeatRaw  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourceKey,
		&statusStr,
		&duration,
		&fingerprint,
		&attempts,
		&notBeforeRaw,
		&manifestKey,
		&thumbnailKey,
		&transcriptKey,
		&errorMessage,
		&errorKind,
		&resumeStatus,
		&cancelFlag,
		&leaseOwner,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:              id,
		Title:           title.String,
		SourceKey:       sourceKey,
		Status:          Status(statusStr),
		DurationSeconds: duration.Float64,
		Fingerprint:     fingerprint.String,
		Attempts:        int(attempts.Int64),
		ManifestKey:     manifestKey.String,
		ThumbnailKey:    thumbnailKey.String,
		TranscriptKey:   transcriptKey.String,
		ErrorMessage:    errorMessage.String,
		ErrorKind:       errorKind.String,
		ResumeStatus:    Status(resumeStatus.String),
		CancelRequested: cancelFlag.Int64 != 0,
		LeaseOwner:      leaseOwner.String,
	}

	if t, err := parseTimeString(notBeforeRaw.String); err == nil {
		video.NotBefore = &t
	}
	if t, err := parseTimeString(heartbeatRaw.String); err == nil {
		video.LastHeartbeat = &t
	}
	if t, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = t
	}
	return video, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
