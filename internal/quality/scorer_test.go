package quality

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

var frozen = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return frozen }

func included(doc string, st models.SourceType, score float64, content string) compression.CompressedChunk {
	return compression.CompressedChunk{
		OriginalChunkID: doc + "-0",
		DocumentID:      doc,
		Content:         content,
		RelevanceScore:  score,
		SourceType:      st,
	}
}

func TestScoreDocument_EmptyChunks(t *testing.T) {
	s := NewScorer(zaptest.NewLogger(t), fixedClock)

	score := s.ScoreDocument(DocumentInput{Task: "a b c"})
	assert.Equal(t, SubScores{Coverage: 1, Diversity: 0, Relevance: 0, Compression: 0.5}, score.SubScores)
	// 0.35*1 + 0.15*0.5 sits on a rounding boundary
	assert.InDelta(t, 42.5, float64(score.Overall), 0.5)
	assert.Equal(t, frozen, score.ScoredAt)
	assert.Equal(t, VariantDocument, score.Variant)
	assert.Equal(t, []string{documentHints[1], documentHints[2]}, score.Suggestions)
}

func TestScoreDocument_WellCoveredContext(t *testing.T) {
	s := NewScorer(nil, fixedClock)
	score := s.ScoreDocument(DocumentInput{
		Task: "Implement JWT authentication for the gateway",
		Chunks: []compression.CompressedChunk{
			included("d1", models.SourceProjectDoc, 0.9, "The gateway verifies every JWT before routing."),
			included("d2", models.SourceProjectDoc, 0.8, "Authentication failures return 401."),
			included("https://rfc-editor.org/rfc/rfc7519", models.SourceWebSearch, 0.7, "JWT claims are base64url encoded. Implement validation carefully."),
		},
		RawTokens:    1000,
		OutputTokens: 300,
	})

	assert.Equal(t, 1.0, score.SubScores.Coverage)
	assert.Equal(t, 1.0, score.SubScores.Diversity)
	assert.InDelta(t, 0.8, score.SubScores.Relevance, 1e-9)
	assert.Equal(t, 1.0, score.SubScores.Compression)
	// 0.35 + 0.30*0.8 + 0.20 + 0.15
	assert.Equal(t, 94, score.Overall)
	assert.Empty(t, score.Suggestions)
	assert.InDelta(t, 0.94, score.Normalized(), 1e-9)
}

func TestKeywordCoverage(t *testing.T) {
	assert.Equal(t, 0.5, KeywordCoverage("cache redis eviction policy", "Redis keys expire. The policy is LRU."))
	assert.Equal(t, 1.0, KeywordCoverage("do it", "anything"))
	assert.Equal(t, 0.0, KeywordCoverage("kubernetes", ""))
}

func TestSourceDiversity(t *testing.T) {
	one := included("a", models.SourceProjectDoc, 0.5, "")
	two := included("b", models.SourceProjectDoc, 0.5, "")
	three := included("c", models.SourceProjectDoc, 0.5, "")
	webChunk := included("w", models.SourceWebSearch, 0.5, "")

	assert.Equal(t, 0.0, SourceDiversity(nil))
	assert.Equal(t, 0.2, SourceDiversity([]compression.CompressedChunk{one, one}))
	assert.Equal(t, 0.5, SourceDiversity([]compression.CompressedChunk{one, two}))
	assert.Equal(t, 0.8, SourceDiversity([]compression.CompressedChunk{one, two, three}))
	assert.InDelta(t, 0.7, SourceDiversity([]compression.CompressedChunk{one, webChunk}), 1e-9)
	assert.Equal(t, 1.0, SourceDiversity([]compression.CompressedChunk{one, two, webChunk}))
}

func TestMeanRelevance_PenalisesWeakChunks(t *testing.T) {
	chunks := []compression.CompressedChunk{
		included("a", models.SourceProjectDoc, 0.9, ""),
		included("b", models.SourceProjectDoc, 0.1, ""),
	}
	// mean 0.5 minus 0.2 * 1/2
	assert.InDelta(t, 0.4, MeanRelevance(chunks), 1e-9)
}

func TestCompressionEfficiency(t *testing.T) {
	tests := []struct {
		output, raw int
		want        float64
	}{
		{0, 0, 0.5},
		{300, 1000, 1},
		{200, 1000, 1},
		{500, 1000, 1},
		{750, 1000, 0.75},
		{1000, 1000, 0.5},
		{1500, 1000, 0.5},
		{100, 1000, 0.65},
		{0, 1000, 0.3},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CompressionEfficiency(tt.output, tt.raw), 1e-9, "%d/%d", tt.output, tt.raw)
	}
}

func TestScoreDocument_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	s := NewScorer(nil, fixedClock)
	types := []models.SourceType{models.SourceProjectDoc, models.SourceWebSearch, models.SourceUserInput}

	for i := 0; i < 300; i++ {
		var chunks []compression.CompressedChunk
		for j := rng.Intn(8); j > 0; j-- {
			chunks = append(chunks, included(
				string(rune('a'+rng.Intn(5))),
				types[rng.Intn(len(types))],
				rng.Float64()*1.4-0.2,
				"service latency cache",
			))
		}
		score := s.ScoreDocument(DocumentInput{
			Task:         "reduce service latency with a cache layer",
			Chunks:       chunks,
			RawTokens:    rng.Intn(5000),
			OutputTokens: rng.Intn(5000),
		})

		require.GreaterOrEqual(t, score.Overall, 0)
		require.LessOrEqual(t, score.Overall, 100)
		for _, v := range []float64{score.SubScores.Coverage, score.SubScores.Diversity, score.SubScores.Relevance, score.SubScores.Compression} {
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, 1.0)
		}
		require.LessOrEqual(t, len(score.Suggestions), 4)
	}
}

func TestScoreAgentConfig(t *testing.T) {
	s := NewScorer(zaptest.NewLogger(t), fixedClock)

	empty := s.ScoreAgentConfig(AgentConfigInput{})
	assert.Equal(t, VariantAgentConfig, empty.Variant)
	assert.Equal(t, SubScores{Coverage: 1}, empty.SubScores)
	assert.Equal(t, 30, empty.Overall)
	assert.Equal(t, agentHints[1:], empty.Suggestions)

	rich := s.ScoreAgentConfig(AgentConfigInput{
		Stack: []string{"Go", "PostgreSQL"},
		Role:  "reviewer",
		Conventions: []string{
			"Wrap errors with fmt.Errorf and %w so callers can use errors.Is()",
			"Run `make lint` before pushing; CI fails on any golangci-lint warning",
			"Database migrations live in migrations/*.sql and are applied by the deploy job",
		},
		Sources: []ConfigSource{
			{Name: "README.md", Type: "docs"},
			{Name: ".golangci.yml", Type: "lint"},
			{Name: "ci.yaml", Type: "ci"},
		},
		ContextChunks: []string{string(make([]byte, 6000))},
		Generated:     "You are a reviewer for a Go service backed by PostgreSQL.",
	})
	assert.Equal(t, 1.0, rich.SubScores.Coverage)
	assert.Equal(t, 1.0, rich.SubScores.Diversity)
	assert.Equal(t, 0.85, rich.SubScores.Compression)
	assert.Greater(t, rich.SubScores.Relevance, 0.5)
	assert.Greater(t, rich.Overall, 80)
	assert.LessOrEqual(t, rich.Overall, 100)
}

func TestContextDepthBuckets(t *testing.T) {
	assert.Equal(t, 0.0, ContextDepth(nil))
	assert.Equal(t, 0.3, ContextDepth([]string{"short"}))
	assert.Equal(t, 0.6, ContextDepth([]string{string(make([]byte, 2000))}))
	assert.Equal(t, 1.0, ContextDepth([]string{string(make([]byte, 12000)), string(make([]byte, 9000))}))
}
