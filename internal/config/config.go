package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	StagingDir string `toml:"staging_dir"`
	LogDir     string `toml:"log_dir"`
}

// Storage contains configuration for the object storage collaborator.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseTLS    bool   `toml:"use_tls"`
	Region    string `toml:"region"`
}

// Ingest contains configuration for the upload-completion event consumer.
type Ingest struct {
	URL      string `toml:"url"`
	Exchange string `toml:"exchange"`
	Queue    string `toml:"queue"`
	Prefetch int    `toml:"prefetch"`
}

// Workflow contains configuration for the orchestrator worker pool and retries.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
	MaxAttempts        int `toml:"max_attempts"`
	RetryBaseSeconds   int `toml:"retry_base_seconds"`
	RetryCapSeconds    int `toml:"retry_cap_seconds"`
}

// Analysis contains configuration for embeddings, similarity, and alignment.
type Analysis struct {
	EmbedderURL     string  `toml:"embedder_url"`
	EmbedderTimeout int     `toml:"embedder_timeout"`
	EmbeddingDim    int     `toml:"embedding_dim"`
	WindowSeconds   float64 `toml:"window_seconds"`
	DistanceMetric  string  `toml:"distance_metric"`
	// SimilarMaxDistance is the whole-clip embedding distance below which two
	// videos are related as similar without temporal alignment.
	SimilarMaxDistance float64 `toml:"similar_max_distance"`
	// TrimmedMaxCost is the maximum normalized DTW cost for a trimmed-from verdict.
	TrimmedMaxCost float64 `toml:"trimmed_max_cost"`
	// POVMaxCost is the maximum normalized DTW cost for a pov verdict.
	POVMaxCost float64 `toml:"pov_max_cost"`
	// POVDurationTolerance bounds |m-n|/max(m,n) for pov candidates.
	POVDurationTolerance float64 `toml:"pov_duration_tolerance"`
	// POVMaxDeviation bounds the mean off-diagonal deviation ratio of the path.
	POVMaxDeviation float64 `toml:"pov_max_deviation"`
	// ShortlistSize is the number of nearest neighbors fed to the alignment engine.
	ShortlistSize int `toml:"shortlist_size"`
}

// Rendition describes one transcoded output quality.
type Rendition struct {
	Name         string `toml:"name"`
	Width        int    `toml:"width"`
	Height       int    `toml:"height"`
	VideoBitrate string `toml:"video_bitrate"`
	AudioBitrate string `toml:"audio_bitrate"`
}

// Transcode contains configuration for the transcode stage executor.
type Transcode struct {
	FFmpegBinary   string      `toml:"ffmpeg_binary"`
	FFprobeBinary  string      `toml:"ffprobe_binary"`
	SegmentSeconds int         `toml:"segment_seconds"`
	TimeoutSeconds int         `toml:"timeout_seconds"`
	Renditions     []Rendition `toml:"renditions"`
}

// Transcribe contains configuration for the speech-to-text stage executor.
type Transcribe struct {
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completion     bool   `toml:"completion"`
	Duplicate      bool   `toml:"duplicate"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the clipstream daemon.
//
// Configuration sections by subsystem:
//   - Paths: data, staging, and log directories
//   - Storage: object storage (raw uploads, renditions, transcripts)
//   - Ingest: AMQP upload-completion event consumption
//   - Workflow: worker pool sizing, polling, heartbeats, retry policy
//   - Analysis: embedding model endpoint and similarity/alignment thresholds
//   - Transcode: ffmpeg rendition ladder
//   - Transcribe: speech-to-text tool settings
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Ingest        Ingest        `toml:"ingest"`
	Workflow      Workflow      `toml:"workflow"`
	Analysis      Analysis      `toml:"analysis"`
	Transcode     Transcode     `toml:"transcode"`
	Transcribe    Transcribe    `toml:"transcribe"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/clipstream/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("clipstream.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the SQLite path backing the processing queue.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "pipeline.db")
}

// EmbeddingDatabasePath returns the SQLite path backing embedding vectors
// and relationship edges.
func (c *Config) EmbeddingDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "embeddings.db")
}

// WriteSample writes the embedded sample configuration to the given path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", trimmed, err)
	}
	return abs, nil
}
