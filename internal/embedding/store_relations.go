package embedding

import (
	"context"
	"fmt"
	"time"
)

// RecordDuplicate writes the single duplicate edge pointing from a new
// video to its canonical original. Writing a second duplicate edge for the
// same video replaces the first.
func (s *Store) RecordDuplicate(ctx context.Context, duplicateID, originalID string) error {
	if duplicateID == originalID {
		return fmt.Errorf("video %s cannot be a duplicate of itself", duplicateID)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO relations (video_a, video_b, kind, score, created_at)
         VALUES (?, ?, 'duplicate', 0, ?)
         ON CONFLICT(video_a) WHERE kind = 'duplicate'
         DO UPDATE SET video_b = excluded.video_b, created_at = excluded.created_at`,
		duplicateID, originalID, now,
	)
	if err != nil {
		return fmt.Errorf("record duplicate edge: %w", err)
	}
	return nil
}

// ReplaceAnalysisRelations replaces every similar, pov, and trimmed-from
// edge touching the given video with the provided set, atomically.
// Re-analyzing a video therefore never leaves stale edges behind.
func (s *Store) ReplaceAnalysisRelations(ctx context.Context, videoID string, relations []Relation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin relations tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`DELETE FROM relations WHERE kind != ? AND (video_a = ? OR video_b = ?)`,
		KindDuplicate, videoID, videoID,
	); err != nil {
		return fmt.Errorf("clear analysis edges: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, relation := range relations {
		if relation.Kind == KindDuplicate {
			return fmt.Errorf("duplicate edges are written by RecordDuplicate")
		}
		a, b := normalizeEndpoints(relation.Kind, relation.VideoA, relation.VideoB)
		var offset any
		if relation.OffsetWindows != nil {
			offset = *relation.OffsetWindows
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO relations (video_a, video_b, kind, score, offset_windows, created_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(video_a, video_b, kind) DO UPDATE SET
                 score = excluded.score, offset_windows = excluded.offset_windows`,
			a, b, relation.Kind, relation.Score, offset, now,
		); err != nil {
			return fmt.Errorf("insert %s edge: %w", relation.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit relations: %w", err)
	}
	return nil
}

// RelationsFor returns every edge touching the given video, most recent
// first. Undirected edges are returned regardless of stored endpoint order.
func (s *Store) RelationsFor(ctx context.Context, videoID string) ([]Relation, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT video_a, video_b, kind, score, offset_windows, created_at
         FROM relations
         WHERE video_a = ? OR video_b = ?
         ORDER BY created_at DESC, kind`,
		videoID, videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("load relations: %w", err)
	}
	defer rows.Close()

	var relations []Relation
	for rows.Next() {
		var (
			relation  Relation
			offset    *int
			createdAt string
		)
		if err := rows.Scan(&relation.VideoA, &relation.VideoB, &relation.Kind, &relation.Score, &offset, &createdAt); err != nil {
			return nil, err
		}
		relation.OffsetWindows = offset
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		relation.CreatedAt = ts
		relations = append(relations, relation)
	}
	return relations, rows.Err()
}
