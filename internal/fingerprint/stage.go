package fingerprint

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/embedding"
	"clipstream/internal/logging"
	"clipstream/internal/media/ffprobe"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/stage"
	"clipstream/internal/storage"
)

const presignExpiry = 15 * time.Minute

// Prober measures a video's duration without downloading it.
type Prober interface {
	Duration(ctx context.Context, url string) (float64, error)
}

// FFprobeProber probes duration with the configured ffprobe binary over a
// presigned URL.
type FFprobeProber struct {
	Binary string
}

// Duration implements Prober.
func (p FFprobeProber) Duration(ctx context.Context, url string) (float64, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, url)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// Checker is the duplicate-check stage handler. It computes the content
// signature, compares it against every stored fingerprint, and either
// terminates the video as a duplicate or lets it advance.
type Checker struct {
	store      *queue.Store
	embeddings *embedding.Store
	objects    storage.ObjectStore
	prober     Prober
	logger     *slog.Logger
}

// NewChecker constructs the duplicate-check handler using default dependencies.
func NewChecker(cfg *config.Config, store *queue.Store, embeddings *embedding.Store, objects storage.ObjectStore, logger *slog.Logger) *Checker {
	return NewCheckerWithDependencies(store, embeddings, objects, FFprobeProber{Binary: cfg.Transcode.FFprobeBinary}, logger)
}

// NewCheckerWithDependencies allows injecting collaborators (used in tests).
func NewCheckerWithDependencies(store *queue.Store, embeddings *embedding.Store, objects storage.ObjectStore, prober Prober, logger *slog.Logger) *Checker {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "duplicate-check"))
	}
	return &Checker{store: store, embeddings: embeddings, objects: objects, prober: prober, logger: stageLogger}
}

func (c *Checker) Prepare(ctx context.Context, video *queue.Video) error {
	if strings.TrimSpace(video.SourceKey) == "" {
		return services.Wrap(
			services.ErrValidation, "duplicate-check", "validate inputs",
			"Video has no source object; the upload event was malformed", nil)
	}
	video.ErrorMessage = ""
	return nil
}

func (c *Checker) Execute(ctx context.Context, video *queue.Video) error {
	logger := logging.WithContext(ctx, c.logger)

	signature, err := Compute(ctx, c.objects, video.SourceKey)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "duplicate-check", "compute signature",
			"Unable to read the uploaded object; storage may be unavailable", err)
	}

	duration, err := c.probeDuration(ctx, video.SourceKey)
	if err != nil {
		return services.Wrap(
			services.ErrExternalTool, "duplicate-check", "probe duration",
			"ffprobe could not measure the upload duration", err)
	}

	video.Fingerprint = signature
	video.DurationSeconds = duration

	original, err := c.store.FindByFingerprint(ctx, signature)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "duplicate-check", "lookup fingerprint",
			"Fingerprint lookup failed", err)
	}
	if original != nil && original.ID != video.ID {
		// The edge is written before the manager persists the duplicate
		// status. If that later write fails the stage re-runs and
		// RecordDuplicate upserts the same edge, so the order is safe.
		if err := c.embeddings.RecordDuplicate(ctx, video.ID, original.ID); err != nil {
			return services.Wrap(
				services.ErrTransient, "duplicate-check", "record duplicate edge",
				"Unable to persist the duplicate relationship", err)
		}
		video.Status = queue.StatusDuplicate
		logger.Info("duplicate detected",
			logging.String("original_id", original.ID),
			logging.String("fingerprint", signature[:12]))
		return nil
	}

	logger.Info("fingerprint recorded",
		logging.String("fingerprint", signature[:12]),
		logging.Float64("duration_seconds", duration))
	return nil
}

func (c *Checker) HealthCheck(ctx context.Context) stage.Health {
	if c.objects == nil {
		return stage.Unhealthy("duplicate-check", "object storage not configured")
	}
	return stage.Healthy("duplicate-check")
}

func (c *Checker) probeDuration(ctx context.Context, key string) (float64, error) {
	url, err := c.objects.PresignedGetURL(ctx, key, presignExpiry)
	if err != nil {
		return 0, err
	}
	return c.prober.Duration(ctx, url)
}
