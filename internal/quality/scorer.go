package quality

import (
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

const (
	minKeywordLength   = 4
	weakChunkScore     = 0.3
	weakChunkPenalty   = 0.2
	neutralCompression = 0.5
)

var documentHints = [4]string{
	"Add documents that cover the key topics of the task, or enable web search to fill gaps",
	"Describe the task more specifically so retrieval can find closer matches",
	"Include material from more documents or source types for a broader view",
	"Adjust the token budget: the context is either barely compressed or compressed too far to keep detail",
}

// DocumentInput is what the document variant scores
type DocumentInput struct {
	Task         string
	Chunks       []compression.CompressedChunk
	RawTokens    int
	OutputTokens int
}

// Scorer computes composite quality scores
type Scorer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewScorer creates a scorer. A nil clock uses time.Now.
func NewScorer(logger *zap.Logger, clock func() time.Time) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scorer{logger: logger, now: clock}
}

// ScoreDocument scores a tailored document context
func (s *Scorer) ScoreDocument(in DocumentInput) Score {
	texts := make([]string, len(in.Chunks))
	for i, c := range in.Chunks {
		texts[i] = c.Content
	}

	sub := SubScores{
		Coverage:    KeywordCoverage(in.Task, strings.Join(texts, " ")),
		Diversity:   SourceDiversity(in.Chunks),
		Relevance:   MeanRelevance(in.Chunks),
		Compression: CompressionEfficiency(in.OutputTokens, in.RawTokens),
	}
	score := s.finish(sub, DocumentWeights, VariantDocument, documentHints)

	s.logger.Debug("Scored document context",
		zap.Int("overall", score.Overall),
		zap.Float64("coverage", sub.Coverage),
		zap.Float64("diversity", sub.Diversity),
		zap.Float64("relevance", sub.Relevance),
		zap.Float64("compression", sub.Compression),
	)
	return score
}

func (s *Scorer) finish(sub SubScores, w Weights, variant Variant, hints [4]string) Score {
	sub = SubScores{
		Coverage:    models.Clamp01(sub.Coverage),
		Diversity:   models.Clamp01(sub.Diversity),
		Relevance:   models.Clamp01(sub.Relevance),
		Compression: models.Clamp01(sub.Compression),
	}
	total := w.Coverage*sub.Coverage + w.Relevance*sub.Relevance +
		w.Diversity*sub.Diversity + w.Compression*sub.Compression

	score := Score{
		Overall:     clampOverall(int(math.Round(100 * total))),
		SubScores:   sub,
		Suggestions: suggestions(sub, hints),
		Variant:     variant,
		ScoredAt:    s.now().UTC(),
	}
	metrics.QualityScore.WithLabelValues(string(variant)).Observe(float64(score.Overall))
	return score
}

// suggestions emits one hint per dimension below 0.5 in the order coverage, relevance,
// diversity, compression
func suggestions(sub SubScores, hints [4]string) []string {
	out := []string{}
	for i, v := range []float64{sub.Coverage, sub.Relevance, sub.Diversity, sub.Compression} {
		if v < 0.5 {
			out = append(out, hints[i])
		}
	}
	return out
}

// KeywordCoverage is the fraction of task keywords (at least 4 characters, deduplicated) that
// appear in text. A task without qualifying keywords is fully covered.
func KeywordCoverage(task, text string) float64 {
	keywords := util.ContentWords(task, minKeywordLength)
	if len(keywords) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// SourceDiversity scores distinct documents (1 → 0.2, 2 → 0.5, 3+ → 0.8) plus 0.2 when at
// least two source types are present
func SourceDiversity(chunks []compression.CompressedChunk) float64 {
	docs := make(map[string]bool)
	types := make(map[models.SourceType]bool)
	for _, c := range chunks {
		id := c.DocumentID
		if id == "" {
			id = c.OriginalChunkID
		}
		docs[id] = true
		st := c.SourceType
		if st == "" {
			st = models.SourceProjectDoc
		}
		types[st] = true
	}

	var score float64
	switch n := len(docs); {
	case n == 0:
		return 0
	case n == 1:
		score = 0.2
	case n == 2:
		score = 0.5
	default:
		score = 0.8
	}
	if len(types) >= 2 {
		score += 0.2
	}
	return math.Min(score, 1)
}

// MeanRelevance is the mean relevance of the chunks minus 0.2 times the share of chunks
// scoring below 0.3
func MeanRelevance(chunks []compression.CompressedChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	weak := 0
	for _, c := range chunks {
		sum += c.RelevanceScore
		if c.RelevanceScore < weakChunkScore {
			weak++
		}
	}
	mean := sum / float64(len(chunks))
	penalty := weakChunkPenalty * float64(weak) / float64(len(chunks))
	return models.Clamp01(mean - penalty)
}

// CompressionEfficiency rewards output/raw token ratios between 0.2 and 0.5. Above 0.5 the
// score falls linearly to 0.5 at a ratio of 1; below 0.2 it falls linearly to 0.3 at 0.
func CompressionEfficiency(outputTokens, rawTokens int) float64 {
	if rawTokens <= 0 {
		return neutralCompression
	}
	ratio := float64(outputTokens) / float64(rawTokens)
	switch {
	case ratio >= 0.2 && ratio <= 0.5:
		return 1
	case ratio > 0.5:
		return math.Max(0.5, 1-(ratio-0.5))
	default:
		return 0.3 + 0.7*(math.Max(ratio, 0)/0.2)
	}
}

func clampOverall(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
