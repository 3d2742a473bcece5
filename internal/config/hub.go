package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvHubFlushInterval     = "CONCORD_HUB_FLUSH_INTERVAL"
	EnvHubMaxBatch          = "CONCORD_HUB_MAX_BATCH"
	EnvHubSendBuffer        = "CONCORD_HUB_SEND_BUFFER"
	EnvHubHeartbeatInterval = "CONCORD_HUB_HEARTBEAT_INTERVAL"
	EnvHubPongTimeout       = "CONCORD_HUB_PONG_TIMEOUT"
)

// HubConfig holds event hub batching and liveness parameters.
type HubConfig struct {
	FlushInterval     string `toml:"flush_interval"`
	MaxBatch          int    `toml:"max_batch"`
	SendBuffer        int    `toml:"send_buffer"`
	HeartbeatInterval string `toml:"heartbeat_interval"`
	PongTimeout       string `toml:"pong_timeout"`
}

// FlushIntervalDuration returns FlushInterval as a time.Duration.
func (c *HubConfig) FlushIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.FlushInterval)
	return d
}

// HeartbeatIntervalDuration returns HeartbeatInterval as a time.Duration.
func (c *HubConfig) HeartbeatIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.HeartbeatInterval)
	return d
}

// PongTimeoutDuration returns PongTimeout as a time.Duration.
func (c *HubConfig) PongTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PongTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *HubConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *HubConfig) Merge(overlay *HubConfig) {
	if overlay.FlushInterval != "" {
		c.FlushInterval = overlay.FlushInterval
	}
	if overlay.MaxBatch != 0 {
		c.MaxBatch = overlay.MaxBatch
	}
	if overlay.SendBuffer != 0 {
		c.SendBuffer = overlay.SendBuffer
	}
	if overlay.HeartbeatInterval != "" {
		c.HeartbeatInterval = overlay.HeartbeatInterval
	}
	if overlay.PongTimeout != "" {
		c.PongTimeout = overlay.PongTimeout
	}
}

func (c *HubConfig) loadDefaults() {
	if c.FlushInterval == "" {
		c.FlushInterval = "500ms"
	}
	if c.MaxBatch == 0 {
		c.MaxBatch = 50
	}
	if c.SendBuffer == 0 {
		c.SendBuffer = 64
	}
	if c.HeartbeatInterval == "" {
		c.HeartbeatInterval = "30s"
	}
	if c.PongTimeout == "" {
		c.PongTimeout = "60s"
	}
}

func (c *HubConfig) loadEnv() {
	if v := os.Getenv(EnvHubFlushInterval); v != "" {
		c.FlushInterval = v
	}
	if v := os.Getenv(EnvHubMaxBatch); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxBatch = n
		}
	}
	if v := os.Getenv(EnvHubSendBuffer); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SendBuffer = n
		}
	}
	if v := os.Getenv(EnvHubHeartbeatInterval); v != "" {
		c.HeartbeatInterval = v
	}
	if v := os.Getenv(EnvHubPongTimeout); v != "" {
		c.PongTimeout = v
	}
}

func (c *HubConfig) validate() error {
	if _, err := time.ParseDuration(c.FlushInterval); err != nil {
		return fmt.Errorf("invalid flush_interval: %w", err)
	}
	if c.MaxBatch < 1 {
		return fmt.Errorf("invalid max_batch: %d", c.MaxBatch)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("invalid send_buffer: %d", c.SendBuffer)
	}
	if _, err := time.ParseDuration(c.HeartbeatInterval); err != nil {
		return fmt.Errorf("invalid heartbeat_interval: %w", err)
	}
	if _, err := time.ParseDuration(c.PongTimeout); err != nil {
		return fmt.Errorf("invalid pong_timeout: %w", err)
	}
	return nil
}
