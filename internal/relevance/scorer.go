package relevance

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// Config controls candidate retrieval and re-ranking
type Config struct {
	Collection         string
	CandidateCount     int
	RerankCount        int
	ReturnCount        int
	BiEncoderWeight    float64
	CrossEncoderWeight float64
	MinFinalScore      float64
}

// DefaultConfig returns the standard retrieval settings
func DefaultConfig() Config {
	return Config{
		Collection:         "document_chunks",
		CandidateCount:     20,
		RerankCount:        20,
		ReturnCount:        10,
		BiEncoderWeight:    models.DefaultBiEncoderWeight,
		CrossEncoderWeight: models.DefaultCrossEncoderWeight,
		MinFinalScore:      models.MinFinalScore,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Collection == "" {
		c.Collection = d.Collection
	}
	if c.CandidateCount <= 0 {
		c.CandidateCount = d.CandidateCount
	}
	if c.RerankCount < 0 {
		c.RerankCount = 0
	}
	if c.ReturnCount <= 0 {
		c.ReturnCount = d.ReturnCount
	}
	if c.BiEncoderWeight == 0 && c.CrossEncoderWeight == 0 {
		c.BiEncoderWeight = d.BiEncoderWeight
		c.CrossEncoderWeight = d.CrossEncoderWeight
	}
	if c.MinFinalScore <= 0 {
		c.MinFinalScore = d.MinFinalScore
	}
	return c
}

// Scorer retrieves project chunks and re-ranks them with a cross-encoder
type Scorer struct {
	index    models.VectorIndex
	embedder models.Embedder
	reranker models.Reranker
	logger   *zap.Logger
}

// NewScorer wires a scorer. A nil reranker behaves like models.NoopReranker.
func NewScorer(index models.VectorIndex, embedder models.Embedder, reranker models.Reranker, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reranker == nil {
		reranker = models.NoopReranker{}
	}
	return &Scorer{index: index, embedder: embedder, reranker: reranker, logger: logger}
}

// Score returns at most cfg.ReturnCount chunks of the project, sorted by final score with
// contiguous ranks. No candidates is not an error.
func (s *Scorer) Score(ctx context.Context, query, projectID, userID string, cfg Config) ([]models.ScoredChunk, error) {
	cfg = cfg.withDefaults()
	if s == nil || s.index == nil || s.embedder == nil {
		return nil, fmt.Errorf("relevance scorer not configured")
	}

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := models.IndexFilter{models.MetaProjectID: projectID}
	if userID != "" {
		filter[models.MetaOwnerID] = userID
	}
	matches, err := s.index.Query(ctx, cfg.Collection, embedding, cfg.CandidateCount, filter)
	if err != nil {
		return nil, fmt.Errorf("query vector index: %w", err)
	}
	if len(matches) == 0 {
		return []models.ScoredChunk{}, nil
	}

	candidates := make([]models.ScoredChunk, 0, len(matches))
	for _, m := range matches {
		candidates = append(candidates, chunkFromMatch(m))
	}

	s.rerank(ctx, query, candidates, cfg.RerankCount)

	out := RankCandidates(candidates, cfg)
	s.logger.Debug("Relevance scoring complete",
		zap.String("project_id", projectID),
		zap.Int("candidates", len(candidates)),
		zap.Int("returned", len(out)),
	)
	return out, nil
}

// rerank fills CrossEncoderScore for the first n candidates; the rest and any failure keep
// the bi-encoder score
func (s *Scorer) rerank(ctx context.Context, query string, candidates []models.ScoredChunk, n int) {
	for i := range candidates {
		candidates[i].CrossEncoderScore = candidates[i].BiEncoderScore
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	if n == 0 {
		return
	}

	passages := make([]string, n)
	for i := 0; i < n; i++ {
		passages[i] = candidates[i].Content
	}
	results, err := s.reranker.Rerank(ctx, query, passages)
	if err != nil {
		metrics.RerankFallbacks.Inc()
		s.logger.Warn("Cross-encoder rerank failed, using bi-encoder scores", zap.Error(err))
		return
	}
	for _, r := range results {
		if r.Index < 0 || r.Index >= n {
			continue
		}
		candidates[r.Index].CrossEncoderScore = models.Clamp01(r.Score)
	}
}

// RankCandidates computes final scores with the configured weights, then filters, sorts,
// truncates and ranks
func RankCandidates(candidates []models.ScoredChunk, cfg Config) []models.ScoredChunk {
	cfg = cfg.withDefaults()
	weighted := make([]models.ScoredChunk, len(candidates))
	copy(weighted, candidates)
	for i := range weighted {
		weighted[i].FinalScore = models.FinalScore(
			weighted[i].BiEncoderScore, weighted[i].CrossEncoderScore,
			cfg.BiEncoderWeight, cfg.CrossEncoderWeight,
		)
	}
	return RankByFinalScore(weighted, cfg.MinFinalScore, cfg.ReturnCount)
}

// RankByFinalScore drops chunks under minScore, sorts the rest by FinalScore descending
// (ties by chunk id), keeps at most limit (limit <= 0 keeps all) and assigns ranks 0..n-1.
// The input slice is not modified.
func RankByFinalScore(chunks []models.ScoredChunk, minScore float64, limit int) []models.ScoredChunk {
	out := make([]models.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.FinalScore >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i
	}
	return out
}

func chunkFromMatch(m models.IndexMatch) models.ScoredChunk {
	meta := m.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	docID := cast.ToString(meta[models.MetaDocumentID])
	if docID == "" {
		docID = m.ID
	}
	return models.ScoredChunk{
		ChunkID:        m.ID,
		DocumentID:     docID,
		Content:        cast.ToString(meta[models.MetaContent]),
		BiEncoderScore: models.Clamp01(m.Score),
		Metadata:       meta,
		SourceType:     models.SourceProjectDoc,
	}
}
