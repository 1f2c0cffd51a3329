package websearch

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
	"golang.org/x/time/rate"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/circuitbreaker"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
)

// httpProvider holds what every HTTP backed provider shares: a breaker-wrapped client, an
// optional rate limiter and metrics under the provider's name.
type httpProvider struct {
	name    string
	baseURL string
	apiKey  string
	httpw   *circuitbreaker.HTTPWrapper
	limiter *rate.Limiter
	logger  *zap.Logger
}

func newHTTPProvider(cfg ProviderConfig, defaultName, defaultURL string, logger *zap.Logger) httpProvider {
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := httpProvider{
		name:    cfg.Name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpw:   circuitbreaker.NewHTTPWrapper(&http.Client{Timeout: cfg.Timeout}, "websearch-"+cfg.Name, "websearch", logger),
		logger:  logger.With(zap.String("provider", cfg.Name)),
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}

func (p *httpProvider) Name() string { return p.name }

func (p *httpProvider) breakerOpen() bool { return p.httpw.IsCircuitBreakerOpen() }

// call runs one request and decodes a 2xx JSON answer into out
func (p *httpProvider) call(ctx context.Context, req *http.Request, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.RecordWebSearchMetrics(p.name, status, time.Since(start).Seconds())
	}()

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s rate limit: %w", p.name, err)
		}
	}
	ctx, span := tracing.StartHTTPSpan(ctx, req.Method, req.URL.Redacted())
	defer func() { tracing.EndSpan(span, err) }()
	req = req.WithContext(ctx)
	tracing.InjectTraceparent(ctx, req)

	resp, err := p.httpw.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s status %d: %s", p.name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode: %w", p.name, err)
	}
	return nil
}

func jsonRequest(ctx context.Context, url string, body interface{}) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// positionScore ranks results without a provider score: 1st = 0.95, 2nd = 0.90, floor 0.1
func positionScore(position int) float64 {
	s := 1.0 - float64(position)*0.05
	if s < 0.1 {
		s = 0.1
	}
	return s
}

func finish(name string, start time.Time, results []Result) *Response {
	for i := range results {
		results[i].Score = models.Clamp01(results[i].Score)
		results[i].Snippet = CleanSnippet(results[i].Snippet)
	}
	if results == nil {
		results = []Result{}
	}
	return &Response{Results: results, Provider: name, LatencyMs: time.Since(start).Milliseconds()}
}

// IsCircuitBreakerOpen reports whether the provider's breaker is open
func (p *httpProvider) IsCircuitBreakerOpen() bool { return p.breakerOpen() }
