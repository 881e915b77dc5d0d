package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeAnalysis()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.MaxAttempts <= 0 {
		c.Workflow.MaxAttempts = defaultMaxAttempts
	}
	if c.Workflow.RetryBaseSeconds <= 0 {
		c.Workflow.RetryBaseSeconds = defaultRetryBaseSeconds
	}
	if c.Workflow.RetryCapSeconds < c.Workflow.RetryBaseSeconds {
		c.Workflow.RetryCapSeconds = defaultRetryCapSeconds
	}
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.DistanceMetric = strings.ToLower(strings.TrimSpace(c.Analysis.DistanceMetric))
	if c.Analysis.DistanceMetric == "" {
		c.Analysis.DistanceMetric = defaultDistanceMetric
	}
	if c.Analysis.WindowSeconds <= 0 {
		c.Analysis.WindowSeconds = defaultWindowSeconds
	}
	if c.Analysis.ShortlistSize <= 0 {
		c.Analysis.ShortlistSize = defaultShortlistSize
	}
	if c.Analysis.EmbedderTimeout <= 0 {
		c.Analysis.EmbedderTimeout = defaultEmbedderTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
