package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvPipelineMaxConcurrent       = "CONCORD_PIPELINE_MAX_CONCURRENT"
	EnvPipelineChunkSize           = "CONCORD_PIPELINE_CHUNK_SIZE"
	EnvPipelineChunkPause          = "CONCORD_PIPELINE_CHUNK_PAUSE"
	EnvPipelineConfidenceThreshold = "CONCORD_PIPELINE_CONFIDENCE_THRESHOLD"
	EnvPipelineConflictRetries     = "CONCORD_PIPELINE_CONFLICT_RETRIES"
)

// PipelineConfig holds reconciliation pipeline tuning parameters.
type PipelineConfig struct {
	MaxConcurrent       int     `toml:"max_concurrent"`
	ChunkSize           int     `toml:"chunk_size"`
	ChunkPause          string  `toml:"chunk_pause"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	ConflictRetries     int     `toml:"conflict_retries"`
}

// ChunkPauseDuration returns ChunkPause as a time.Duration.
func (c *PipelineConfig) ChunkPauseDuration() time.Duration {
	d, _ := time.ParseDuration(c.ChunkPause)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	if overlay.MaxConcurrent != 0 {
		c.MaxConcurrent = overlay.MaxConcurrent
	}
	if overlay.ChunkSize != 0 {
		c.ChunkSize = overlay.ChunkSize
	}
	if overlay.ChunkPause != "" {
		c.ChunkPause = overlay.ChunkPause
	}
	if overlay.ConfidenceThreshold != 0 {
		c.ConfidenceThreshold = overlay.ConfidenceThreshold
	}
	if overlay.ConflictRetries != 0 {
		c.ConflictRetries = overlay.ConflictRetries
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 25
	}
	if c.ChunkPause == "" {
		c.ChunkPause = "2s"
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = 0.80
	}
	if c.ConflictRetries == 0 {
		c.ConflictRetries = 3
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineMaxConcurrent); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrent = n
		}
	}
	if v := os.Getenv(EnvPipelineChunkSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ChunkSize = n
		}
	}
	if v := os.Getenv(EnvPipelineChunkPause); v != "" {
		c.ChunkPause = v
	}
	if v := os.Getenv(EnvPipelineConfidenceThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv(EnvPipelineConflictRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ConflictRetries = n
		}
	}
}

func (c *PipelineConfig) validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("invalid max_concurrent: %d", c.MaxConcurrent)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("invalid chunk_size: %d", c.ChunkSize)
	}
	if _, err := time.ParseDuration(c.ChunkPause); err != nil {
		return fmt.Errorf("invalid chunk_pause: %w", err)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("invalid confidence_threshold: %f", c.ConfidenceThreshold)
	}
	if c.ConflictRetries < 1 {
		return fmt.Errorf("invalid conflict_retries: %d", c.ConflictRetries)
	}
	return nil
}
