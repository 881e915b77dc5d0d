package embedding

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"clipstream/internal/config"
)

// Store persists embedding vectors and relationship edges in a dedicated
// SQLite database, separate from the processing queue.
type Store struct {
	db   *sql.DB
	dim  int
	path string
}

// Open initializes or connects to the embedding database.
func Open(cfg *config.Config) (*Store, error) {
	if cfg.Analysis.EmbeddingDim <= 0 {
		return nil, errors.New("embedding dimension must be positive")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.EmbeddingDatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open embedding db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, dim: cfg.Analysis.EmbeddingDim, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Dim returns the configured embedding dimensionality.
func (s *Store) Dim() int {
	return s.dim
}

// SaveVectors stores a video's whole-clip embedding and its ordered
// per-window embeddings in one transaction. Re-running the analyze stage
// for the same video replaces previous vectors wholesale.
func (s *Store) SaveVectors(ctx context.Context, videoID string, clip []float32, segments [][]float32) error {
	if len(clip) != s.dim {
		return fmt.Errorf("clip vector has dim %d, store expects %d", len(clip), s.dim)
	}
	for i, segment := range segments {
		if len(segment) != s.dim {
			return fmt.Errorf("segment %d has dim %d, store expects %d", i, len(segment), s.dim)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin vectors tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO clip_embeddings (video_id, dim, vector, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(video_id) DO UPDATE SET dim = excluded.dim, vector = excluded.vector`,
		videoID, s.dim, encodeVector(clip), now,
	); err != nil {
		return fmt.Errorf("save clip vector: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM segment_embeddings WHERE video_id = ?`, videoID); err != nil {
		return fmt.Errorf("clear segment vectors: %w", err)
	}
	for i, segment := range segments {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO segment_embeddings (video_id, position, vector) VALUES (?, ?, ?)`,
			videoID, i, encodeVector(segment),
		); err != nil {
			return fmt.Errorf("save segment vector %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vectors: %w", err)
	}
	return nil
}

// ClipVector returns a video's whole-clip embedding, or nil when absent.
func (s *Store) ClipVector(ctx context.Context, videoID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(
		ctx,
		`SELECT vector FROM clip_embeddings WHERE video_id = ?`,
		videoID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load clip vector: %w", err)
	}
	return decodeVector(blob, s.dim)
}

// SegmentVectors returns a video's per-window embeddings in temporal order.
func (s *Store) SegmentVectors(ctx context.Context, videoID string) ([][]float32, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT vector FROM segment_embeddings WHERE video_id = ? ORDER BY position`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("load segment vectors: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		vector, err := decodeVector(blob, s.dim)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vector)
	}
	return vectors, rows.Err()
}

// AllClipVectors streams every stored whole-clip embedding in insertion
// order, for rebuilding the in-memory similarity index on startup.
func (s *Store) AllClipVectors(ctx context.Context) ([]ClipVector, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT video_id, vector, created_at FROM clip_embeddings ORDER BY created_at, video_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load clip vectors: %w", err)
	}
	defer rows.Close()

	var vectors []ClipVector
	for rows.Next() {
		var (
			id        string
			blob      []byte
			createdAt string
		)
		if err := rows.Scan(&id, &blob, &createdAt); err != nil {
			return nil, err
		}
		vector, err := decodeVector(blob, s.dim)
		if err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		vectors = append(vectors, ClipVector{VideoID: id, Vector: vector, CreatedAt: ts})
	}
	return vectors, rows.Err()
}
