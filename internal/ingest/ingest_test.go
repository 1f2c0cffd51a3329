package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/embeddings"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/providers"
)

type failingEmbedder struct{ providers.HashEmbedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service down")
}

func smallChunks() embeddings.ChunkingConfig {
	return embeddings.ChunkingConfig{MaxTokens: 10, OverlapTokens: 2, TokenizerMode: embeddings.TokenizerSimple}
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestIngest_WritesChunksWithPayload(t *testing.T) {
	idx := providers.NewMemoryIndex()
	in := NewIngester(idx, providers.HashEmbedder{}, smallChunks(), "docs", zaptest.NewLogger(t))
	updated := time.Date(2025, 11, 3, 10, 0, 0, 0, time.FixedZone("x", 3600))

	res, err := in.Ingest(context.Background(), Document{
		ID: "d1", ProjectID: "p1", OwnerID: "u1", Content: words(25),
		Tags: []string{"security"}, UpdatedAt: updated,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, idx.Len("docs"))

	q, _ := providers.HashEmbedder{}.EmbedText(context.Background(), "word")
	matches, err := idx.Query(context.Background(), "docs", q, 10, models.IndexFilter{models.MetaProjectID: "p1", models.MetaOwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, matches, 3)
	m := matches[0]
	assert.Equal(t, "d1#0", m.ID)
	assert.Equal(t, "d1", m.Metadata[models.MetaDocumentID])
	assert.Equal(t, "d1", m.Metadata[models.MetaTitle])
	assert.Equal(t, 0, m.Metadata[models.MetaChunkIndex])
	assert.Equal(t, "2025-11-03T09:00:00Z", m.Metadata[models.MetaUpdatedAt])
	assert.Equal(t, []string{"security"}, m.Metadata[models.MetaTags])
	assert.NotEmpty(t, m.Metadata[models.MetaContent])

	require.NoError(t, in.Remove(context.Background(), "d1", res.Chunks))
	assert.Equal(t, 0, idx.Len("docs"))
}

func TestIngest_Rejects(t *testing.T) {
	in := NewIngester(providers.NewMemoryIndex(), providers.HashEmbedder{}, smallChunks(), "docs", nil)
	ctx := context.Background()

	_, err := in.Ingest(ctx, Document{ID: "d", Content: "x"})
	assert.ErrorIs(t, err, ErrInvalidDocument)
	_, err = in.Ingest(ctx, Document{ID: "d", ProjectID: "p", Content: "   "})
	assert.ErrorIs(t, err, ErrEmptyDocument)

	failing := NewIngester(providers.NewMemoryIndex(), failingEmbedder{}, smallChunks(), "docs", nil)
	_, err = failing.Ingest(ctx, Document{ID: "d", ProjectID: "p", Content: "text"})
	assert.ErrorContains(t, err, "embedding service down")
}

func TestIngestAll_AggregatesFailures(t *testing.T) {
	idx := providers.NewMemoryIndex()
	in := NewIngester(idx, providers.HashEmbedder{}, smallChunks(), "docs", nil)

	results, err := in.IngestAll(context.Background(), []Document{
		{ID: "a", ProjectID: "p", Content: "alpha beta"},
		{ID: "b", ProjectID: "p"},
		{ID: "c", ProjectID: "p", Content: words(12)},
	}, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b:")
	require.Len(t, results, 3)
	assert.Equal(t, 1, results[0].Chunks)
	assert.Nil(t, results[1])
	assert.Equal(t, 2, results[2].Chunks)
	assert.Equal(t, 3, idx.Len("docs"))
}
