package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client defines the contract for requesting a second opinion from the oracle.
type Client interface {
	Classify(ctx context.Context, req Request) (*Response, error)
}

// Config holds the oracle endpoint parameters. Timeout bounds the full call
// so a slow oracle cannot wedge a limiter slot indefinitely.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

type client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// New creates an HTTP oracle client.
func New(cfg Config, logger *slog.Logger) Client {
	return &client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		logger:  logger.With("system", "oracle"),
	}
}

func (c *client) Classify(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode oracle request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/classify",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("build oracle request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMalformed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	var result Response
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	c.logger.Debug(
		"oracle verdict",
		"trait", req.TraitLabel,
		"present", result.Present,
		"confidence", float64(result.Confidence),
		"duration", time.Since(start),
	)

	return &result, nil
}
