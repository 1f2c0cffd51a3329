package compression

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

// TokenCounter estimates the token count of a text
type TokenCounter func(string) int

// Compressor fits a scored chunk pool into a token budget
type Compressor struct {
	summarizer  models.Summarizer
	countTokens TokenCounter
	logger      *zap.Logger
}

// NewCompressor creates a compressor. A nil counter uses util.EstimateTokens; a nil summarizer
// makes every SUMMARY chunk fall back to its truncated original.
func NewCompressor(summarizer models.Summarizer, counter TokenCounter, logger *zap.Logger) *Compressor {
	if counter == nil {
		counter = util.EstimateTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compressor{summarizer: summarizer, countTokens: counter, logger: logger}
}

// Plan is the level assignment of a pool before any content is rewritten
type Plan struct {
	Chunks         []models.ScoredChunk
	Levels         []Level
	OriginalTokens []int
	Cost           int
	Available      int
}

// InitialLevel maps a final score to its starting level
func InitialLevel(score float64, t Thresholds) Level {
	switch {
	case score >= t.FullMin:
		return LevelFull
	case score >= t.SummaryMin:
		return LevelSummary
	case score >= t.KeywordsMin:
		return LevelKeywords
	default:
		return LevelDrop
	}
}

// LevelCost is the estimated token cost of rendering a chunk of originalTokens at level.
// Reduced levels never cost more than the original.
func LevelCost(level Level, originalTokens int, cfg Config) int {
	switch level {
	case LevelFull:
		return originalTokens
	case LevelSummary:
		return minInt(cfg.SummaryMaxTokens, originalTokens)
	case LevelKeywords:
		return minInt(cfg.KeywordsTokens, originalTokens)
	default:
		return 0
	}
}

// BuildPlan sorts the pool by relevance, assigns initial levels and demotes from the least
// relevant chunk upward, one level per chunk per pass, until the cost fits the available
// budget. When even the KEYWORDS floor does not fit, the least relevant KEYWORDS chunks
// are dropped as well, so the plan always fits.
func BuildPlan(pool []models.ScoredChunk, cfg Config, count TokenCounter) *Plan {
	cfg = cfg.withDefaults()
	if count == nil {
		count = util.EstimateTokens
	}

	sorted := make([]models.ScoredChunk, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FinalScore != sorted[j].FinalScore {
			return sorted[i].FinalScore > sorted[j].FinalScore
		}
		return sorted[i].ChunkID < sorted[j].ChunkID
	})

	p := &Plan{
		Chunks:         sorted,
		Levels:         make([]Level, len(sorted)),
		OriginalTokens: make([]int, len(sorted)),
		Available:      cfg.Available(),
	}
	for i, c := range sorted {
		p.OriginalTokens[i] = count(c.Content)
		p.Levels[i] = InitialLevel(c.FinalScore, cfg.Thresholds)
		p.Cost += LevelCost(p.Levels[i], p.OriginalTokens[i], cfg)
	}

	for p.Cost > p.Available {
		demoted := false
		for i := len(sorted) - 1; i >= 0 && p.Cost > p.Available; i-- {
			if p.Levels[i] == LevelDrop {
				continue
			}
			before := LevelCost(p.Levels[i], p.OriginalTokens[i], cfg)
			p.Levels[i] = p.Levels[i].demote()
			p.Cost += LevelCost(p.Levels[i], p.OriginalTokens[i], cfg) - before
			demoted = true
		}
		if !demoted {
			break
		}
	}
	return p
}

// Compress renders the pool under cfg's budget. Summarizer failures degrade to truncated
// originals; only context cancellation is returned as an error.
func (c *Compressor) Compress(ctx context.Context, pool []models.ScoredChunk, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	plan := BuildPlan(pool, cfg, c.countTokens)

	res := &Result{
		Chunks:      make([]CompressedChunk, 0, len(plan.Chunks)),
		Assignments: make([]Assignment, len(plan.Chunks)),
	}

	// index-addressed slots keep output order equal to plan order
	rendered := make([]*CompressedChunk, len(plan.Chunks))
	fallbacks := make([]bool, len(plan.Chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.SummaryConcurrency)

	for i, chunk := range plan.Chunks {
		level := plan.Levels[i]
		orig := plan.OriginalTokens[i]
		res.Assignments[i] = Assignment{ChunkID: chunk.ChunkID, Level: level}
		res.Stats.OriginalTokens += orig

		if level == LevelDrop {
			res.Stats.Dropped++
			continue
		}

		cc := &CompressedChunk{
			OriginalChunkID:    chunk.ChunkID,
			DocumentID:         chunk.DocumentID,
			Level:              level,
			OriginalTokenCount: orig,
			RelevanceScore:     chunk.FinalScore,
			SourceType:         chunk.SourceType,
			Metadata:           chunk.Metadata,
		}
		rendered[i] = cc

		switch level {
		case LevelFull:
			res.Stats.Full++
			cc.Content = chunk.Content
			cc.CompressedTokenCount = orig
		case LevelKeywords:
			res.Stats.Keywords++
			cc.Content = c.keywords(chunk.Content, cfg.KeywordCount, LevelCost(LevelKeywords, orig, cfg))
			cc.CompressedTokenCount = c.countTokens(cc.Content)
		case LevelSummary:
			res.Stats.Summary++
			idx := i
			limit := LevelCost(LevelSummary, orig, cfg)
			if orig <= limit {
				cc.Content = chunk.Content
				cc.CompressedTokenCount = orig
				continue
			}
			g.Go(func() error {
				text, ok := c.summarize(gctx, chunk.Content, limit)
				rendered[idx].Content = text
				rendered[idx].CompressedTokenCount = c.countTokens(text)
				fallbacks[idx] = !ok
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("compression cancelled: %w", err)
	}

	for i, cc := range rendered {
		if cc == nil {
			continue
		}
		if fallbacks[i] {
			res.Stats.SummaryFallbacks++
		}
		res.Chunks = append(res.Chunks, *cc)
		res.TotalTokenCount += cc.CompressedTokenCount
	}

	res.Stats.CompressedTokens = res.TotalTokenCount
	if res.Stats.OriginalTokens > 0 {
		saved := float64(res.Stats.OriginalTokens-res.Stats.CompressedTokens) / float64(res.Stats.OriginalTokens)
		res.Stats.SavingsPercent = int(math.Round(100 * saved))
	}
	res.Stats.OverBudget = res.TotalTokenCount > plan.Available

	metrics.RecordCompression(res.Stats.Full, res.Stats.Summary, res.Stats.Keywords,
		res.Stats.Dropped, res.Stats.SavingsPercent, res.Stats.OverBudget)
	if res.Stats.OverBudget {
		c.logger.Warn("Compression exceeded token budget",
			zap.Int("total_tokens", res.TotalTokenCount),
			zap.Int("available", plan.Available),
		)
	}
	c.logger.Debug("Compression complete",
		zap.Int("pool", len(pool)),
		zap.Int("full", res.Stats.Full),
		zap.Int("summary", res.Stats.Summary),
		zap.Int("keywords", res.Stats.Keywords),
		zap.Int("dropped", res.Stats.Dropped),
		zap.Int("savings_percent", res.Stats.SavingsPercent),
	)
	return res, nil
}

// summarize asks the summarizer for at most limit tokens. The bool is false when the
// truncated original had to be used instead.
func (c *Compressor) summarize(ctx context.Context, text string, limit int) (string, bool) {
	if c.summarizer != nil {
		summary, err := c.summarizer.Summarize(ctx, text, limit)
		if err == nil && strings.TrimSpace(summary) != "" {
			return c.truncateToTokens(summary, limit), true
		}
		if err != nil {
			c.logger.Warn("Summarization failed, using truncated original", zap.Error(err))
		}
	}
	metrics.SummaryFallbacks.Inc()
	return c.truncateToTokens(text, limit), false
}

// keywords renders the top keywords, trimming the list until it fits limit tokens
func (c *Compressor) keywords(text string, n, limit int) string {
	kws := util.TopKeywords(text, n)
	for len(kws) > 0 {
		out := strings.Join(kws, ", ")
		if c.countTokens(out) <= limit {
			return out
		}
		kws = kws[:len(kws)-1]
	}
	return ""
}

func (c *Compressor) truncateToTokens(text string, limit int) string {
	if c.countTokens(text) <= limit {
		return text
	}
	words := strings.Fields(text)
	n := limit * 10 / 13
	if n > len(words) {
		n = len(words)
	}
	for n > 0 && c.countTokens(strings.Join(words[:n], " ")) > limit {
		n--
	}
	return strings.Join(words[:n], " ")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
