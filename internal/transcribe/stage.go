package transcribe

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
	"clipstream/internal/transcode"
)

// Transcriber is the transcribe stage handler.
type Transcriber struct {
	cfg     *config.Config
	objects storage.ObjectStore
	runner  transcode.Runner
	logger  *slog.Logger
}

// NewTranscriber constructs the transcribe handler using the real tool runner.
func NewTranscriber(cfg *config.Config, objects storage.ObjectStore, logger *slog.Logger) *Transcriber {
	return NewTranscriberWithDependencies(cfg, objects, transcode.ExecRunner{}, logger)
}

// NewTranscriberWithDependencies allows injecting collaborators (used in tests).
func NewTranscriberWithDependencies(cfg *config.Config, objects storage.ObjectStore, runner transcode.Runner, logger *slog.Logger) *Transcriber {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "transcribe"))
	}
	return &Transcriber{cfg: cfg, objects: objects, runner: runner, logger: stageLogger}
}

func (t *Transcriber) Prepare(ctx context.Context, video *queue.Video) error {
	if strings.TrimSpace(video.SourceKey) == "" {
		return services.Wrap(
			services.ErrValidation, "transcribe", "validate inputs",
			"Video has no source object", nil)
	}
	if strings.TrimSpace(t.cfg.Transcribe.Binary) == "" {
		return services.Wrap(
			services.ErrConfiguration, "transcribe", "validate tool",
			"No speech-to-text binary configured", nil)
	}
	video.ErrorMessage = ""
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, video *queue.Video) error {
	logger := logging.WithContext(ctx, t.logger)
	transcriptKey := storage.TranscriptKey(video.ID)

	exists, err := t.objects.Exists(ctx, transcriptKey)
	if err != nil {
		return services.Wrap(
			services.ErrTransient, "transcribe", "check outputs",
			"Unable to check for an existing transcript", err)
	}
	if exists {
		video.TranscriptKey = transcriptKey
		logger.Info("transcript already present, skipping")
		return nil
	}

	workdir, err := stage.Workdir(t.cfg.Paths.StagingDir, video.ID, "transcribe")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workdir)

	input := filepath.Join(workdir, "source")
	if err := t.objects.Download(ctx, video.SourceKey, input); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcribe", "download source",
			"Unable to download the raw upload", err)
	}

	output := filepath.Join(workdir, "transcript.json")
	runCtx := ctx
	if t.cfg.Transcribe.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(t.cfg.Transcribe.TimeoutSeconds)*time.Second)
		defer cancel()
	}
	if err := t.runner.Run(runCtx, t.cfg.Transcribe.Binary, t.toolArgs(input, output)); err != nil {
		if runCtx.Err() != nil {
			return services.Wrap(
				services.ErrTimeout, "transcribe", "run speech-to-text",
				"Transcription exceeded its timeout", err)
		}
		return services.Wrap(
			services.ErrExternalTool, "transcribe", "run speech-to-text",
			"Speech-to-text tool failed", err)
	}
	if _, err := os.Stat(output); err != nil {
		return services.Wrap(
			services.ErrExternalTool, "transcribe", "collect transcript",
			"Speech-to-text tool produced no transcript", err)
	}

	if err := t.objects.UploadFile(ctx, transcriptKey, output, "application/json"); err != nil {
		return services.Wrap(
			services.ErrTransient, "transcribe", "upload transcript",
			"Unable to upload the transcript", err)
	}

	video.TranscriptKey = transcriptKey
	logger.Info("transcription complete", logging.String("transcript_key", transcriptKey))
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if !stage.BinaryReady(t.cfg.Transcribe.Binary) {
		return stage.Unhealthy("transcribe", "speech-to-text binary not found")
	}
	return stage.Healthy("transcribe")
}

func (t *Transcriber) toolArgs(input, output string) []string {
	args := []string{input, "--output", output, "--output_format", "json"}
	if model := strings.TrimSpace(t.cfg.Transcribe.Model); model != "" {
		args = append(args, "--model", model)
	}
	if language := strings.TrimSpace(t.cfg.Transcribe.Language); language != "" {
		args = append(args, "--language", language)
	}
	return args
}
