package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// Reranker scores passages with the service's cross-encoder
type Reranker struct {
	c     *client
	model string
}

var _ models.Reranker = (*Reranker)(nil)

// NewReranker creates the HTTP reranker; model may be empty for the service default
func NewReranker(cfg Config, model string, logger *zap.Logger) *Reranker {
	return &Reranker{c: newClient(cfg, "llm-rerank", logger), model: model}
}

type rerankRequest struct {
	Query    string   `json:"query"`
	Passages []string `json:"passages"`
	Model    string   `json:"model,omitempty"`
}

type rerankResponse struct {
	Results []models.RerankResult `json:"results"`
}

// Rerank returns one result per passage in input order with scores clamped to [0,1]. A
// response that does not cover every passage exactly once is an error.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []string) ([]models.RerankResult, error) {
	if len(passages) == 0 {
		return []models.RerankResult{}, nil
	}
	var resp rerankResponse
	if err := r.c.post(ctx, "rerank", "/rerank", rerankRequest{Query: query, Passages: passages, Model: r.model}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) != len(passages) {
		return nil, fmt.Errorf("rerank returned %d results for %d passages", len(resp.Results), len(passages))
	}
	out := make([]models.RerankResult, len(passages))
	filled := make([]bool, len(passages))
	for _, res := range resp.Results {
		if res.Index < 0 || res.Index >= len(passages) || filled[res.Index] {
			return nil, fmt.Errorf("rerank returned invalid index %d", res.Index)
		}
		filled[res.Index] = true
		out[res.Index] = models.RerankResult{Index: res.Index, Score: models.Clamp01(res.Score)}
	}
	return out, nil
}

// IsCircuitBreakerOpen reports whether the rerank breaker is open
func (r *Reranker) IsCircuitBreakerOpen() bool { return r.c.IsCircuitBreakerOpen() }
