// Package llm holds HTTP adapters for the LLM service: a summarizer backed by
// /context/compress and a cross-encoder reranker backed by /rerank.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
)

// Config points the adapters at the LLM service
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type client struct {
	base   string
	apiKey string
	httpw  *circuitbreaker.HTTPWrapper
	logger *zap.Logger
}

func newClient(cfg Config, breaker string, logger *zap.Logger) *client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://llm-service:8000"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey: cfg.APIKey,
		httpw:  circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: cfg.Timeout}, breaker, "llm-service", logger),
		logger: logger,
	}
}

// post sends body as JSON to path and decodes a 2xx answer into out. operation labels metrics.
func (c *client) post(ctx context.Context, operation, path string, body, out interface{}) error {
	start := time.Now()
	url := c.base + path
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)

	err := func() error {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		tracing.InjectTraceparent(ctx, req)

		resp, err := c.httpw.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%s status %d: %s", operation, resp.StatusCode, strings.TrimSpace(string(msg)))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}()

	tracing.EndSpan(span, err)
	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Warn("LLM service call failed", zap.String("operation", operation), zap.Error(err))
	}
	metrics.RecordLLMMetrics(operation, status, time.Since(start).Seconds())
	return err
}

// IsCircuitBreakerOpen reports whether the adapter's breaker is open
func (c *client) IsCircuitBreakerOpen() bool {
	return c.httpw.IsCircuitBreakerOpen()
}
