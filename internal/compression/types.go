package compression

import "github.com/Kocoro-lab/Shannon/go/tailor/internal/models"

// Level is how aggressively a chunk is reduced
type Level string

const (
	LevelFull     Level = "FULL"
	LevelSummary  Level = "SUMMARY"
	LevelKeywords Level = "KEYWORDS"
	LevelDrop     Level = "DROP"
)

// demote moves a level one step toward DROP; DROP stays DROP
func (l Level) demote() Level {
	switch l {
	case LevelFull:
		return LevelSummary
	case LevelSummary:
		return LevelKeywords
	default:
		return LevelDrop
	}
}

// Thresholds are the minimum final scores for each initial level
type Thresholds struct {
	FullMin     float64 `json:"full_min" mapstructure:"full_min"`
	SummaryMin  float64 `json:"summary_min" mapstructure:"summary_min"`
	KeywordsMin float64 `json:"keywords_min" mapstructure:"keywords_min"`
}

// Config controls budgeting and level assignment
type Config struct {
	TotalTokenBudget   int        `json:"total_token_budget" mapstructure:"total_token_budget"`
	Thresholds         Thresholds `json:"thresholds" mapstructure:"thresholds"`
	SummaryMaxTokens   int        `json:"summary_max_tokens" mapstructure:"summary_max_tokens"`
	KeywordsTokens     int        `json:"keywords_tokens" mapstructure:"keywords_tokens"`
	ReservedTokens     int        `json:"reserved_tokens" mapstructure:"reserved_tokens"`
	KeywordCount       int        `json:"keyword_count" mapstructure:"keyword_count"`
	SummaryConcurrency int        `json:"summary_concurrency" mapstructure:"summary_concurrency"`
}

// DefaultConfig returns the standard compression settings for the given budget
func DefaultConfig(totalBudget int) Config {
	return Config{
		TotalTokenBudget: totalBudget,
		Thresholds: Thresholds{
			FullMin:     0.8,
			SummaryMin:  0.5,
			KeywordsMin: 0.3,
		},
		SummaryMaxTokens:   150,
		KeywordsTokens:     15,
		ReservedTokens:     500,
		KeywordCount:       10,
		SummaryConcurrency: 4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.TotalTokenBudget)
	if c.Thresholds == (Thresholds{}) {
		c.Thresholds = d.Thresholds
	}
	if c.SummaryMaxTokens <= 0 {
		c.SummaryMaxTokens = d.SummaryMaxTokens
	}
	if c.KeywordsTokens <= 0 {
		c.KeywordsTokens = d.KeywordsTokens
	}
	if c.ReservedTokens < 0 {
		c.ReservedTokens = 0
	}
	if c.KeywordCount <= 0 {
		c.KeywordCount = d.KeywordCount
	}
	if c.SummaryConcurrency <= 0 {
		c.SummaryConcurrency = d.SummaryConcurrency
	}
	return c
}

// Available is the budget left for chunk content once the reserve is taken out
func (c Config) Available() int {
	if a := c.TotalTokenBudget - c.ReservedTokens; a > 0 {
		return a
	}
	return 0
}

// CompressedChunk is a chunk rendered at its final level. Dropped chunks have none.
type CompressedChunk struct {
	OriginalChunkID      string                 `json:"original_chunk_id"`
	DocumentID           string                 `json:"document_id"`
	Level                Level                  `json:"compression_level"`
	Content              string                 `json:"content"`
	OriginalTokenCount   int                    `json:"original_token_count"`
	CompressedTokenCount int                    `json:"compressed_token_count"`
	RelevanceScore       float64                `json:"relevance_score"`
	SourceType           models.SourceType      `json:"source_type"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
}

// Assignment records the final level chosen for a pool chunk
type Assignment struct {
	ChunkID string `json:"chunk_id"`
	Level   Level  `json:"level"`
}

// Stats summarises a compression run
type Stats struct {
	Full             int  `json:"full"`
	Summary          int  `json:"summary"`
	Keywords         int  `json:"keywords"`
	Dropped          int  `json:"dropped"`
	OriginalTokens   int  `json:"original_tokens"`
	CompressedTokens int  `json:"compressed_tokens"`
	SavingsPercent   int  `json:"savings_percent"`
	OverBudget       bool `json:"over_budget"`
	SummaryFallbacks int  `json:"summary_fallbacks"`
}

// Result is the output of Compress. Chunks and Assignments follow descending relevance.
type Result struct {
	Chunks          []CompressedChunk `json:"chunks"`
	TotalTokenCount int               `json:"total_token_count"`
	Stats           Stats             `json:"stats"`
	Assignments     []Assignment      `json:"assignments"`
}
