package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/config"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

func TestHashEmbedder_DeterministicAndNormalised(t *testing.T) {
	h := HashEmbedder{Dims: 64}
	ctx := context.Background()

	a, err := h.EmbedText(ctx, "JWT token validation middleware")
	require.NoError(t, err)
	b, _ := h.EmbedText(ctx, "JWT token validation middleware")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)

	near, _ := h.EmbedText(ctx, "validation of the JWT token")
	far, _ := h.EmbedText(ctx, "quarterly revenue forecast spreadsheet")
	assert.Greater(t, cosine(a, near), cosine(a, far))

	empty, _ := h.EmbedText(ctx, "the and for")
	assert.Equal(t, make([]float32, 64), empty)

	batch, err := h.EmbedBatch(ctx, []string{"x", "JWT token validation middleware"})
	require.NoError(t, err)
	assert.Equal(t, a, batch[1])
}

func TestMemoryIndex_QueryFilterDelete(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "c", []models.IndexItem{
		{ID: "a", Embedding: []float32{1, 0}, Metadata: map[string]interface{}{"project_id": "p1", "content": "alpha"}},
		{ID: "b", Embedding: []float32{0.7, 0.7}, Metadata: map[string]interface{}{"project_id": "p1"}},
		{ID: "c", Embedding: []float32{1, 0}, Metadata: map[string]interface{}{"project_id": "p2"}},
		{ID: "d", Embedding: []float32{-1, 0}, Metadata: map[string]interface{}{"project_id": "p1"}},
	}))
	assert.Equal(t, 4, idx.Len("c"))

	got, err := idx.Query(ctx, "c", []float32{1, 0}, 10, models.IndexFilter{"project_id": "p1"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].ID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Equal(t, "alpha", got[0].Metadata["content"])
	assert.Equal(t, "b", got[1].ID)
	assert.Equal(t, 0.0, got[2].Score)

	got, _ = idx.Query(ctx, "c", []float32{1, 0}, 1, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	require.NoError(t, idx.Delete(ctx, "c", []string{"a", "zzz"}))
	got, _ = idx.Query(ctx, "c", []float32{1, 0}, 10, models.IndexFilter{"project_id": "p1"})
	assert.Equal(t, "b", got[0].ID)

	got, err = idx.Query(ctx, "missing", []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Error(t, idx.Upsert(ctx, "c", []models.IndexItem{{}}))
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Providers = config.ProviderSelection{Embedder: "hash", Index: "memory", Reranker: "noop", Summarizer: "none"}
	cfg.WebSearch.Enabled = false
	return cfg
}

func TestBuild_LocalProviders(t *testing.T) {
	s, err := Build(localConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, HashEmbedder{}, s.Embedder)
	assert.IsType(t, &MemoryIndex{}, s.Index)
	assert.IsType(t, models.NoopReranker{}, s.Reranker)
	assert.Nil(t, s.Summarizer)
	assert.Nil(t, s.Search)
	assert.False(t, s.Search.Enabled())
	assert.Nil(t, s.Sessions)
	assert.Empty(t, s.Monitor.Check().Dependencies)
}

func TestBuild_RemoteProvidersRegisterHealth(t *testing.T) {
	cfg := localConfig(t)
	cfg.Providers = config.ProviderSelection{Embedder: "http", Index: "qdrant", Reranker: "http", Summarizer: "http"}
	cfg.WebSearch.Enabled = true
	cfg.WebSearch.Providers = []websearch.ProviderConfig{{Kind: "searxng", Name: "local", BaseURL: "http://searx"}}

	s, err := Build(cfg, nil)
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &llm.Reranker{}, s.Reranker)
	assert.IsType(t, &llm.Summarizer{}, s.Summarizer)
	assert.True(t, s.Search.Enabled())

	var names []string
	for _, d := range s.Monitor.Check().Dependencies {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"embeddings", "qdrant", "reranker", "summarizer", "websearch-local"}, names)
}

func TestBuild_UnknownKinds(t *testing.T) {
	cfg := localConfig(t)
	cfg.Providers.Reranker = "magic"
	_, err := Build(cfg, nil)
	assert.ErrorContains(t, err, "magic")

	_, err = SearchProvider(websearch.ProviderConfig{Kind: "bing"}, nil)
	assert.Error(t, err)
}

func TestSetClose_AggregatesErrors(t *testing.T) {
	s, err := Build(localConfig(t), nil)
	require.NoError(t, err)
	s.closers = append(s.closers, func() error { return errors.New("a") }, func() error { return nil }, func() error { return errors.New("b") })
	err = s.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")

	var nilSet *Set
	assert.NoError(t, nilSet.Close())
}
