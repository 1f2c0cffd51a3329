package models

import "context"

// IndexItem is a single point written to a vector index collection
type IndexItem struct {
	ID        string
	Embedding []float32
	Metadata  map[string]interface{}
}

// IndexMatch is a nearest-neighbour hit. Score is a similarity in roughly [0,1].
type IndexMatch struct {
	ID       string
	Score    float64
	Metadata map[string]interface{}
}

// IndexFilter narrows a query to exact payload matches
type IndexFilter map[string]interface{}

// VectorIndex is the nearest-neighbour store used for retrieval and ingestion
type VectorIndex interface {
	Upsert(ctx context.Context, collection string, items []IndexItem) error
	Query(ctx context.Context, collection string, embedding []float32, topK int, filter IndexFilter) ([]IndexMatch, error)
	Delete(ctx context.Context, collection string, ids []string) error
}

// Embedder turns text into vectors. Implementations must be deterministic per model.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RerankResult scores the passage at Index
type RerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Reranker is a cross-encoder returning one result per passage with score in [0,1]
type Reranker interface {
	Rerank(ctx context.Context, query string, passages []string) ([]RerankResult, error)
}

// Summarizer condenses text; maxTokens is a soft hint
type Summarizer interface {
	Summarize(ctx context.Context, text string, maxTokens int) (string, error)
}

// NeutralRerankScore is what NoopReranker assigns to every passage
const NeutralRerankScore = 0.5

// NoopReranker is used when no cross-encoder is configured
type NoopReranker struct{}

// Rerank returns a neutral score for each passage
func (NoopReranker) Rerank(_ context.Context, _ string, passages []string) ([]RerankResult, error) {
	out := make([]RerankResult, len(passages))
	for i := range passages {
		out[i] = RerankResult{Index: i, Score: NeutralRerankScore}
	}
	return out, nil
}
