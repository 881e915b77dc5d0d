package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.Storage.Endpoint) == "" {
		return errors.New("storage.endpoint must be set")
	}
	if strings.TrimSpace(c.Storage.Bucket) == "" {
		return errors.New("storage.bucket must be set")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if strings.TrimSpace(c.Ingest.URL) == "" {
		return errors.New("ingest.url must be set")
	}
	if strings.TrimSpace(c.Ingest.Queue) == "" {
		return errors.New("ingest.queue must be set")
	}
	if c.Ingest.Prefetch < 0 {
		return errors.New("ingest.prefetch must not be negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must exceed workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	switch c.Analysis.DistanceMetric {
	case "euclidean", "cosine":
	default:
		return fmt.Errorf("analysis.distance_metric: unsupported value %q", c.Analysis.DistanceMetric)
	}
	if c.Analysis.EmbeddingDim <= 0 {
		return errors.New("analysis.embedding_dim must be positive")
	}
	for name, value := range map[string]float64{
		"analysis.similar_max_distance":   c.Analysis.SimilarMaxDistance,
		"analysis.trimmed_max_cost":       c.Analysis.TrimmedMaxCost,
		"analysis.pov_max_cost":           c.Analysis.POVMaxCost,
		"analysis.pov_duration_tolerance": c.Analysis.POVDurationTolerance,
		"analysis.pov_max_deviation":      c.Analysis.POVMaxDeviation,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if len(c.Transcode.Renditions) == 0 {
		return errors.New("transcode.renditions must list at least one rendition")
	}
	seen := make(map[string]struct{}, len(c.Transcode.Renditions))
	for _, r := range c.Transcode.Renditions {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return errors.New("transcode.renditions entries must have a name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("transcode.renditions contains duplicate name %q", name)
		}
		seen[name] = struct{}{}
		if r.Width <= 0 || r.Height <= 0 {
			return fmt.Errorf("transcode.renditions %q must have positive dimensions", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
