package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"clipstream/internal/analysis"
	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/fingerprint"
	"clipstream/internal/ingest"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/similarity"
	"clipstream/internal/storage"
	"clipstream/internal/transcode"
	"clipstream/internal/transcribe"
	"clipstream/internal/workflow"
)

// Build wires the full daemon: stores, object storage, the warm-started
// similarity index, the stage handlers, the workflow manager, and the ingest
// consumer.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	embeddings, err := embedding.Open(cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open embedding store: %w", err)
	}

	objects, err := storage.New(ctx, cfg)
	if err != nil {
		embeddings.Close()
		store.Close()
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	index, err := warmIndex(ctx, cfg, embeddings, logger)
	if err != nil {
		embeddings.Close()
		store.Close()
		return nil, err
	}

	analyzer, err := analysis.NewAnalyzer(cfg, embeddings, index, objects, logger)
	if err != nil {
		embeddings.Close()
		store.Close()
		return nil, fmt.Errorf("build analyzer: %w", err)
	}

	handlers := workflow.Handlers{
		DuplicateCheck: fingerprint.NewChecker(cfg, store, embeddings, objects, logger),
		Transcode:      transcode.NewTranscoder(cfg, objects, logger),
		Transcribe:     transcribe.NewTranscriber(cfg, objects, logger),
		Analyze:        analyzer,
	}
	manager := workflow.NewManager(cfg, store, handlers, logger)
	consumer := ingest.NewConsumer(cfg, store, logger)

	return New(cfg, store, embeddings, manager, consumer, logger)
}

// warmIndex rebuilds the in-memory similarity index from persisted clip
// vectors so nearest-neighbor shortlists survive restarts.
func warmIndex(ctx context.Context, cfg *config.Config, embeddings *embedding.Store, logger *slog.Logger) (*similarity.LinearIndex, error) {
	metric, err := similarity.MetricFor(cfg.Analysis.DistanceMetric)
	if err != nil {
		return nil, fmt.Errorf("resolve distance metric: %w", err)
	}
	index := similarity.NewLinearIndex(cfg.Analysis.EmbeddingDim, metric)

	vectors, err := embeddings.AllClipVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load clip vectors: %w", err)
	}
	for _, cv := range vectors {
		if err := index.Insert(cv.VideoID, cv.Vector, cv.CreatedAt); err != nil {
			return nil, fmt.Errorf("index clip vector for %s: %w", cv.VideoID, err)
		}
	}
	if logger != nil && len(vectors) > 0 {
		logger.Info("similarity index warmed", logging.Int("vectors", len(vectors)))
	}
	return index, nil
}
