package vectordb

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
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
)

// ErrCollectionNotFound is returned when Qdrant answers 404 for a collection
var ErrCollectionNotFound = errors.New("vectordb: collection not found")

// Client is a minimal Qdrant HTTP client implementing models.VectorIndex
type Client struct {
	cfg   Config
	base  string
	httpw *circuitbreaker.HTTPWrapper
	log   *zap.Logger
}

var _ models.VectorIndex = (*Client)(nil)

// NewClient creates a Qdrant client for cfg
func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	base := c.Host
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
	httpClient := &http.Client{Timeout: c.Timeout}
	return &Client{
		cfg:   c,
		base:  strings.TrimRight(base, "/"),
		httpw: circuitbreaker.NewHTTPWrapper(httpClient, "qdrant", "vectordb", logger),
		log:   logger,
	}
}

// Config returns the effective configuration
func (c *Client) Config() Config { return c.cfg }

type qdrantQueryRequest struct {
	Query          []float32              `json:"query"`
	Limit          int                    `json:"limit"`
	ScoreThreshold *float64               `json:"score_threshold,omitempty"`
	WithPayload    bool                   `json:"with_payload"`
	Filter         map[string]interface{} `json:"filter,omitempty"`
}

// qdrantQueryResponse for the /points/query endpoint which has nested structure
type qdrantQueryResponse struct {
	Result struct {
		Points []qdrantPoint `json:"points"`
	} `json:"result"`
	Status string `json:"status"`
}

type qdrantSearchResponse struct {
	Result []qdrantPoint `json:"result"`
	Status string        `json:"status"`
}

// do sends a JSON request and returns the open response; callers close the body
func (c *Client) do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}
	tracing.InjectTraceparent(ctx, req)
	return c.httpw.Do(req)
}

func statusError(op string, resp *http.Response) error {
	if resp.StatusCode == http.StatusNotFound {
		return ErrCollectionNotFound
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("qdrant %s status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(msg)))
}

// Query returns the topK nearest points in collection, best first. Scores are similarities in
// [0,1] whatever distance the collection uses.
func (c *Client) Query(ctx context.Context, collection string, embedding []float32, topK int, filter models.IndexFilter) ([]models.IndexMatch, error) {
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	start := time.Now()
	url := fmt.Sprintf("%s/collections/%s/points/query", c.base, collection)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)

	points, err := c.query(ctx, collection, embedding, topK, buildFilter(filter))
	tracing.EndSpan(span, err)
	if err != nil {
		metrics.RecordVectorSearchMetrics(collection, "error", time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordVectorSearchMetrics(collection, "ok", time.Since(start).Seconds())
	return toMatches(c.cfg.Distance, points), nil
}

// query prefers /points/query and falls back to the legacy /points/search
func (c *Client) query(ctx context.Context, collection string, vec []float32, limit int, filter map[string]interface{}) ([]qdrantPoint, error) {
	var thr *float64
	if c.cfg.Threshold > 0 && c.cfg.Distance != DistanceEuclidean {
		t := c.cfg.Threshold
		thr = &t
	}
	body := qdrantQueryRequest{Query: vec, Limit: limit, ScoreThreshold: thr, WithPayload: true, Filter: filter}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/query", c.base, collection), body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		var qr qdrantQueryResponse
		if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
			return nil, fmt.Errorf("decode qdrant query: %w", err)
		}
		return qr.Result.Points, nil
	}

	// older servers lack /points/query and answer 404 for the route itself
	c.log.Debug("qdrant /points/query failed, trying /points/search",
		zap.String("collection", collection), zap.Int("status", resp.StatusCode))
	legacy := map[string]interface{}{"vector": vec, "limit": limit, "with_payload": true}
	if thr != nil {
		legacy["score_threshold"] = *thr
	}
	if filter != nil {
		legacy["filter"] = filter
	}
	resp2, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/collections/%s/points/search", c.base, collection), legacy)
	if err != nil {
		return nil, fmt.Errorf("qdrant query/search failed: %w", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		return nil, statusError("search", resp2)
	}
	var sr qdrantSearchResponse
	if err := json.NewDecoder(resp2.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode qdrant search: %w", err)
	}
	return sr.Result, nil
}

// Upsert inserts or replaces points. Item ids are mapped to stable UUIDs and kept in the
// payload so Query can return them.
func (c *Client) Upsert(ctx context.Context, collection string, items []models.IndexItem) error {
	if len(items) == 0 {
		return nil
	}
	points := make([]upsertPoint, 0, len(items))
	for _, it := range items {
		payload := make(map[string]interface{}, len(it.Metadata)+1)
		for k, v := range it.Metadata {
			payload[k] = v
		}
		payload[PayloadIDKey] = it.ID
		points = append(points, upsertPoint{ID: PointID(it.ID), Vector: it.Embedding, Payload: payload})
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.base, collection)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPut, url)
	err := c.write(ctx, http.MethodPut, url, "upsert", map[string]interface{}{"points": points})
	tracing.EndSpan(span, err)
	if err != nil {
		return err
	}
	c.log.Debug("qdrant upsert", zap.String("collection", collection), zap.Int("points", len(points)))
	return nil
}

// Delete removes points by item id
func (c *Client) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = PointID(id)
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.base, collection)
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, url)
	err := c.write(ctx, http.MethodPost, url, "delete", map[string]interface{}{"points": pointIDs})
	tracing.EndSpan(span, err)
	return err
}

// EnsureCollection creates collection with the given vector size when it does not exist
func (c *Client) EnsureCollection(ctx context.Context, collection string, dim int) error {
	if _, err := c.CollectionInfo(ctx, collection); err == nil {
		return nil
	} else if !errors.Is(err, ErrCollectionNotFound) {
		return err
	}
	body := map[string]interface{}{
		"vectors": map[string]interface{}{"size": dim, "distance": string(c.cfg.Distance)},
	}
	if err := c.write(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", c.base, collection), "create collection", body); err != nil {
		return err
	}
	c.log.Info("Created qdrant collection", zap.String("collection", collection), zap.Int("dimension", dim))
	return nil
}

func (c *Client) write(ctx context.Context, method, url, op string, body interface{}) error {
	resp, err := c.do(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("qdrant %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(op, resp)
	}
	var st qdrantStatus
	_ = json.NewDecoder(resp.Body).Decode(&st)
	return nil
}

// IsCircuitBreakerOpen reports whether the Qdrant breaker is open
func (c *Client) IsCircuitBreakerOpen() bool {
	return c.httpw.IsCircuitBreakerOpen()
}
