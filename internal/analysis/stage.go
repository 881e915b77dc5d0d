package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipstream/internal/alignment"
	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/similarity"
	"clipstream/internal/stage"
	"clipstream/internal/storage"
)

const presignExpiry = time.Hour

// Analyzer is the analyze stage handler.
type Analyzer struct {
	cfg        *config.Config
	embeddings *embedding.Store
	index      similarity.Index
	objects    storage.ObjectStore
	embedder   Embedder
	distance   similarity.DistanceFunc
	logger     *slog.Logger
}

// NewAnalyzer constructs the analyze handler using the configured embedder
// endpoint.
func NewAnalyzer(cfg *config.Config, embeddings *embedding.Store, index similarity.Index, objects storage.ObjectStore, logger *slog.Logger) (*Analyzer, error) {
	embedder := NewHTTPEmbedder(cfg.Analysis.EmbedderURL, time.Duration(cfg.Analysis.EmbedderTimeout)*time.Second)
	return NewAnalyzerWithDependencies(cfg, embeddings, index, objects, embedder, logger)
}

// NewAnalyzerWithDependencies allows injecting collaborators (used in tests).
func NewAnalyzerWithDependencies(cfg *config.Config, embeddings *embedding.Store, index similarity.Index, objects storage.ObjectStore, embedder Embedder, logger *slog.Logger) (*Analyzer, error) {
	distance, err := similarity.MetricFor(cfg.Analysis.DistanceMetric)
	if err != nil {
		return nil, err
	}
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "analyze"))
	}
	return &Analyzer{
		cfg:        cfg,
		embeddings: embeddings,
		index:      index,
		objects:    objects,
		embedder:   embedder,
		distance:   distance,
		logger:     stageLogger,
	}, nil
}

func (a *Analyzer) Prepare(ctx context.Context, video *queue.Video) error {
	if strings.TrimSpace(video.SourceKey) == "" {
		return services.Wrap(
			services.ErrValidation, "analyze", "validate inputs",
			"Video has no source object", nil)
	}
	video.ErrorMessage = ""
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, video *queue.Video) error {
	logger := logging.WithContext(ctx, a.logger)

	sourceURL, err := a.objects.PresignedGetURL(ctx, video.SourceKey, presignExpiry)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "presign source",
			"Unable to presign the source object", err)
	}

	result, err := a.embedder.Embed(ctx, sourceURL, a.cfg.Analysis.WindowSeconds)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "analyze", "embed video",
			"Embedding service call failed", err)
	}

	dim := a.cfg.Analysis.EmbeddingDim
	if len(result.Clip) != dim {
		return services.Wrap(
			services.ErrContent, "analyze", "validate embedding",
			"Embedding dimensionality does not match the configured model", nil)
	}
	for _, segment := range result.Segments {
		if len(segment) != dim {
			return services.Wrap(
				services.ErrContent, "analyze", "validate embedding",
				"Segment embedding dimensionality does not match the configured model", nil)
		}
	}

	if err := a.embeddings.SaveVectors(ctx, video.ID, result.Clip, result.Segments); err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "persist vectors",
			"Unable to persist embedding vectors", err)
	}

	if err := a.exportArtifact(ctx, video.ID, result); err != nil {
		return err
	}

	relations, err := a.deriveRelations(ctx, video, result)
	if err != nil {
		return err
	}
	if err := a.embeddings.ReplaceAnalysisRelations(ctx, video.ID, relations); err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "persist relations",
			"Unable to persist relationship edges", err)
	}

	// The video becomes queryable only after its vectors and edges are
	// durable, so a concurrent query never references missing rows.
	if err := a.index.Insert(video.ID, result.Clip, video.CreatedAt); err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "index clip vector",
			"Unable to index the clip embedding", err)
	}

	logger.Info("analysis complete",
		logging.Int("segments", len(result.Segments)),
		logging.Int("relations", len(relations)))
	return nil
}

// exportArtifact publishes the embedding document to object storage so other
// services can read a video's vectors without touching the embedding
// database.
func (a *Analyzer) exportArtifact(ctx context.Context, videoID string, result Embedding) error {
	workdir, err := stage.Workdir(a.cfg.Paths.StagingDir, videoID, "analyze")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	payload, err := json.Marshal(result)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "export embedding",
			"Unable to encode the embedding document", err)
	}
	artifactPath := filepath.Join(workdir, "embedding.json")
	if err := os.WriteFile(artifactPath, payload, 0o644); err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "export embedding",
			"Unable to write the embedding document", err)
	}
	if err := a.objects.UploadFile(ctx, storage.EmbeddingKey(videoID), artifactPath, "application/json"); err != nil {
		return services.Wrap(
			services.ErrTransient, "analyze", "export embedding",
			"Unable to upload the embedding document", err)
	}
	return nil
}

// deriveRelations shortlists nearest neighbors and classifies each one.
// Whole-clip distance alone decides similar; the alignment engine decides
// trimmed-from and pov, which take precedence for the same neighbor.
func (a *Analyzer) deriveRelations(ctx context.Context, video *queue.Video, result Embedding) ([]embedding.Relation, error) {
	logger := logging.WithContext(ctx, a.logger)
	thresholds := alignment.Thresholds{
		TrimmedMaxCost:       a.cfg.Analysis.TrimmedMaxCost,
		PovMaxCost:           a.cfg.Analysis.POVMaxCost,
		PovDurationTolerance: a.cfg.Analysis.POVDurationTolerance,
		PovMaxDeviation:      a.cfg.Analysis.POVMaxDeviation,
	}

	neighbors := a.index.Nearest(result.Clip, a.cfg.Analysis.ShortlistSize)
	var relations []embedding.Relation
	for _, neighbor := range neighbors {
		if neighbor.VideoID == video.ID {
			continue
		}

		referenceSegments, err := a.embeddings.SegmentVectors(ctx, neighbor.VideoID)
		if err != nil {
			return nil, services.Wrap(
				services.ErrTransient, "analyze", "load neighbor vectors",
				"Unable to load a shortlisted neighbor's segments", err)
		}

		if len(referenceSegments) > 0 {
			relation, matched, err := relateNeighbor(video.ID, neighbor.VideoID, result.Segments, referenceSegments, a.distance, thresholds)
			if err == nil && matched {
				relations = append(relations, relation)
				continue
			}
			if err != nil {
				logger.Warn("alignment failed",
					logging.String("neighbor_id", neighbor.VideoID),
					logging.Error(err))
			}
		}

		if neighbor.Distance <= a.cfg.Analysis.SimilarMaxDistance {
			relations = append(relations, embedding.Relation{
				VideoA: video.ID,
				VideoB: neighbor.VideoID,
				Kind:   embedding.KindSimilar,
				Score:  neighbor.Distance,
			})
		}
	}
	return relations, nil
}

// relateNeighbor classifies the analyzed video against one neighbor.
// Trimmed-from is directional and only detected with the clip as the
// candidate, so both orientations are tried: the analyzed video may be the
// clip, or it may be the full source arriving after its clips. Re-running
// analyze on a source therefore re-derives the clip→source edges that
// ReplaceAnalysisRelations clears.
func relateNeighbor(videoID, neighborID string, segments, referenceSegments [][]float32, distance similarity.DistanceFunc, th alignment.Thresholds) (embedding.Relation, bool, error) {
	verdict, matched, err := alignment.Relate(segments, referenceSegments, distance, th)
	if err != nil {
		return embedding.Relation{}, false, err
	}
	if matched {
		relation := embedding.Relation{
			VideoA: videoID,
			VideoB: neighborID,
			Kind:   verdict.Kind,
			Score:  verdict.Cost,
		}
		if verdict.Kind == alignment.KindTrimmedFrom {
			offset := verdict.OffsetB
			relation.OffsetWindows = &offset
		}
		return relation, true, nil
	}

	if len(referenceSegments) < len(segments) {
		verdict, matched, err = alignment.Relate(referenceSegments, segments, distance, th)
		if err != nil {
			return embedding.Relation{}, false, err
		}
		if matched && verdict.Kind == alignment.KindTrimmedFrom {
			offset := verdict.OffsetB
			return embedding.Relation{
				VideoA:        neighborID,
				VideoB:        videoID,
				Kind:          verdict.Kind,
				Score:         verdict.Cost,
				OffsetWindows: &offset,
			}, true, nil
		}
	}
	return embedding.Relation{}, false, nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(a.cfg.Analysis.EmbedderURL) == "" {
		return stage.Unhealthy("analyze", "embedder_url not configured")
	}
	return stage.Healthy("analyze")
}
