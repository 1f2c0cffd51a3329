package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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

// ErrNotConfigured is returned by a nil or URL-less service
var ErrNotConfigured = errors.New("embedding service not configured")

// Service provides embedding generation with two cache tiers: an in-process LRU and an
// optional shared cache (Redis).
type Service struct {
	cfg    Config
	http   *circuitbreaker.HTTPWrapper
	cache  EmbeddingCache
	lru    *LocalLRU
	logger *zap.Logger
}

// NewService builds the HTTP embedder. cache may be nil.
func NewService(cfg Config, cache EmbeddingCache, logger *zap.Logger) *Service {
	c := cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{Timeout: c.Timeout}
	return &Service{
		cfg:    c,
		http:   circuitbreaker.NewHTTPWrapper(client, "embeddings", "embedding-service", logger),
		cache:  cache,
		lru:    NewLocalLRU(c.MaxLRU),
		logger: logger,
	}
}

// Config returns the effective configuration
func (s *Service) Config() Config {
	if s == nil {
		return Config{}.withDefaults()
	}
	return s.cfg
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Dimensions int         `json:"dimensions"`
	ModelUsed  string      `json:"model_used"`
}

// EmbedText returns the vector for a single text
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	out, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts in order. Cached vectors are served locally, duplicates are sent
// once, and the rest go out in requests of at most BatchSize texts.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s == nil || s.cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	m := s.cfg.Model
	results := make([][]float32, len(texts))
	pending := make(map[string][]int)
	var uncached []string

	for i, text := range texts {
		key := MakeKey(m, text)
		if v, ok := s.lru.Get(ctx, key); ok {
			results[i] = v
			metrics.RecordEmbeddingMetrics(m, "lru_hit", 0)
			continue
		}
		if s.cache != nil {
			if v, ok := s.cache.Get(ctx, key); ok {
				results[i] = v
				s.lru.Set(ctx, key, v, s.cfg.LRUTTL)
				metrics.RecordEmbeddingMetrics(m, "cache_hit", 0)
				continue
			}
		}
		if _, seen := pending[text]; !seen {
			uncached = append(uncached, text)
		}
		pending[text] = append(pending[text], i)
	}

	for start := 0; start < len(uncached); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(uncached) {
			end = len(uncached)
		}
		batch := uncached[start:end]
		vecs, err := s.request(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, text := range batch {
			key := MakeKey(m, text)
			s.lru.Set(ctx, key, vecs[j], s.cfg.LRUTTL)
			if s.cache != nil {
				s.cache.Set(ctx, key, vecs[j], s.cfg.CacheTTL)
			}
			for _, idx := range pending[text] {
				results[idx] = vecs[j]
			}
		}
	}
	return results, nil
}

func (s *Service) request(ctx context.Context, texts []string) ([][]float32, error) {
	m := s.cfg.Model
	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/embeddings/"
	start := time.Now()

	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	defer span.End()

	buf, err := json.Marshal(embedRequest{Texts: texts, Model: m})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, req)

	fail := func(err error) ([][]float32, error) {
		metrics.RecordEmbeddingMetrics(m, "error", time.Since(start).Seconds())
		s.logger.Warn("embedding request failed", zap.Int("texts", len(texts)), zap.Error(err))
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fail(fmt.Errorf("embedding request: %w", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fail(fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fail(fmt.Errorf("decode embedding response: %w", err))
	}
	if len(er.Embeddings) != len(texts) {
		return fail(fmt.Errorf("embedding service returned %d embeddings for %d texts", len(er.Embeddings), len(texts)))
	}

	out := make([][]float32, len(er.Embeddings))
	for i, embedding := range er.Embeddings {
		vec := make([]float32, len(embedding))
		for j, f := range embedding {
			vec[j] = float32(f)
		}
		out[i] = vec
	}
	metrics.RecordEmbeddingMetrics(m, "ok", time.Since(start).Seconds())
	return out, nil
}

// IsCircuitBreakerOpen reports whether the embedding service breaker is open
func (s *Service) IsCircuitBreakerOpen() bool {
	return s != nil && s.http.IsCircuitBreakerOpen()
}
