package transcode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"clipstream/internal/config"
	"clipstream/internal/logging"
	"clipstream/internal/queue"
	"clipstream/internal/services"
	"clipstream/internal/stage"
	"clipstream/internal/storage"
)

// Transcoder is the transcode stage handler.
type Transcoder struct {
	cfg     *config.Config
	objects storage.ObjectStore
	runner  Runner
	logger  *slog.Logger
}

// NewTranscoder constructs the transcode handler using the real ffmpeg runner.
func NewTranscoder(cfg *config.Config, objects storage.ObjectStore, logger *slog.Logger) *Transcoder {
	return NewTranscoderWithDependencies(cfg, objects, ExecRunner{}, logger)
}

// NewTranscoderWithDependencies allows injecting collaborators (used in tests).
func NewTranscoderWithDependencies(cfg *config.Config, objects storage.ObjectStore, runner Runner, logger *slog.Logger) *Transcoder {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "transcode"))
	}
	return &Transcoder{cfg: cfg, objects: objects, runner: runner, logger: stageLogger}
}

func (t *Transcoder) Prepare(ctx context.Context, video *queue.Video) error {
	if strings.TrimSpace(video.SourceKey) == "" {
		return services.Wrap(
			services.ErrValidation, "transcode", "validate inputs",
			"Video has no source object", nil)
	}
	if len(t.cfg.Transcode.Renditions) == 0 {
		return services.Wrap(
			services.ErrConfiguration, "transcode", "validate renditions",
			"No renditions configured; add at least one [[transcode.renditions]] entry", nil)
	}
	video.ErrorMessage = ""
	return nil
}

func (t *Transcoder) Execute(ctx context.Context, video *queue.Video) error {
	logger := logging.WithContext(ctx, t.logger)
	manifestKey := storage.MasterManifestKey(video.ID)
	thumbnailKey := storage.ThumbnailKey(video.ID)

	// Re-delivered jobs skip the render when the outputs already exist.
	exists, err := t.objects.Exists(ctx, manifestKey)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "transcode", "check outputs",
			"Unable to check for existing renditions", err)
	}
	if exists {
		video.ManifestKey = manifestKey
		video.ThumbnailKey = thumbnailKey
		logger.Info("renditions already present, skipping render")
		return nil
	}

	workdir, err := stage.Workdir(t.cfg.Paths.StagingDir, video.ID, "transcode")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	input := filepath.Join(workdir, "source")
	if err := t.objects.Download(ctx, video.SourceKey, input); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcode", "download source",
			"Unable to download the raw upload", err)
	}

	outputDir := filepath.Join(workdir, "output")
	renderCtx := ctx
	if t.cfg.Transcode.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.Transcode.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	for _, rendition := range t.cfg.Transcode.Renditions {
		renditionDir := filepath.Join(outputDir, rendition.Name)
		if err := os.MkdirAll(renditionDir, 0o755); err != nil {
			return services.Wrap(
				services.ErrConfiguration, "transcode", "create output directory",
				"Unable to create the rendition output directory", err)
		}
		args := renditionArgs(input, renditionDir, rendition, t.cfg.Transcode.SegmentSeconds)
		if err := t.runner.Run(renderCtx, t.cfg.Transcode.FFmpegBinary, args); err != nil {
			if renderCtx.Err() != nil {
				return services.Wrap(
					services.ErrTimeout, "transcode", "render "+rendition.Name,
					"ffmpeg exceeded the transcode timeout", err)
			}
			return services.Wrap(
				services.ErrExternalTool, "transcode", "render "+rendition.Name,
				"ffmpeg failed to render the rendition", err)
		}
		logger.Info("rendition complete", logging.String("rendition", rendition.Name))
	}

	if err := writeMasterPlaylist(outputDir, t.cfg.Transcode.Renditions); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcode", "write master playlist",
			"Unable to write the master playlist", err)
	}

	thumbnail := filepath.Join(workdir, "thumbnail.jpg")
	if err := t.runner.Run(renderCtx, t.cfg.Transcode.FFmpegBinary, thumbnailArgs(input, thumbnail)); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "transcode", "extract thumbnail",
			"ffmpeg failed to extract the poster frame", err)
	}

	if err := t.objects.UploadDirectory(ctx, storage.ProcessedPrefix(video.ID), outputDir); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcode", "upload renditions",
			"Unable to upload the rendition tree", err)
	}
	if err := t.objects.UploadFile(ctx, thumbnailKey, thumbnail, "image/jpeg"); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcode", "upload thumbnail",
			"Unable to upload the poster frame", err)
	}

	video.ManifestKey = manifestKey
	video.ThumbnailKey = thumbnailKey
	logger.Info("transcode complete",
		logging.Int("renditions", len(t.cfg.Transcode.Renditions)),
		logging.String("manifest_key", manifestKey))
	return nil
}

func (t *Transcoder) HealthCheck(ctx context.Context) stage.Health {
	if !stage.BinaryReady(t.cfg.Transcode.FFmpegBinary) {
		return stage.Unhealthy("transcode", "ffmpeg binary not found")
	}
	return stage.Healthy("transcode")
}
