package config

import (
	"fmt"
	"net/url"
	"os"
	"time"
)

const (
	EnvOracleBaseURL = "CONCORD_ORACLE_BASE_URL"
	EnvOracleTimeout = "CONCORD_ORACLE_TIMEOUT"
)

// OracleConfig holds the classification oracle endpoint parameters.
type OracleConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *OracleConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *OracleConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *OracleConfig) Merge(overlay *OracleConfig) {
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *OracleConfig) loadDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:9090"
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *OracleConfig) loadEnv() {
	if v := os.Getenv(EnvOracleBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvOracleTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *OracleConfig) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base_url: %s", c.BaseURL)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
