package embeddings

import (
	"strings"

	"github.com/google/uuid"
)

// ChunkingConfig controls text chunking behavior
type ChunkingConfig struct {
	MaxTokens     int    `mapstructure:"max_tokens"`
	OverlapTokens int    `mapstructure:"overlap_tokens"`
	TokenizerMode string `mapstructure:"tokenizer_mode"` // "simple" | "tiktoken"
	Model         string `mapstructure:"model"`          // tiktoken encoding lookup
}

// DefaultChunkingConfig returns the ingestion defaults
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MaxTokens:     400,
		OverlapTokens: 50,
		TokenizerMode: TokenizerSimple,
		Model:         "gpt-4",
	}
}

// Chunk is one window of a split document
type Chunk struct {
	GroupID    string // shared by all chunks of one Split call
	Text       string
	Index      int // 0-based position
	TotalCount int
	Tokens     int
}

// Chunker splits text into overlapping windows measured in tokens
type Chunker struct {
	maxTokens     int
	overlapTokens int
	enc           encoder
}

// NewChunker creates a chunker. tiktoken mode falls back to word windows when the encoding
// cannot be loaded.
func NewChunker(config ChunkingConfig) *Chunker {
	d := DefaultChunkingConfig()
	if config.MaxTokens <= 0 {
		config.MaxTokens = d.MaxTokens
	}
	if config.OverlapTokens < 0 || config.OverlapTokens >= config.MaxTokens {
		config.OverlapTokens = config.MaxTokens / 4
	}
	if config.Model == "" {
		config.Model = d.Model
	}
	return &Chunker{
		maxTokens:     config.MaxTokens,
		overlapTokens: config.OverlapTokens,
		enc:           encoderFor(config.TokenizerMode, config.Model),
	}
}

// Split windows text into chunks of at most maxTokens with overlapTokens shared between
// neighbours. Text that fits yields a single chunk; blank text yields none.
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	tokens := c.enc.tokenize(text)
	n := tokens.Len()
	groupID := uuid.New().String()
	if n <= c.maxTokens {
		return []Chunk{{GroupID: groupID, Text: strings.TrimSpace(text), TotalCount: 1, Tokens: n}}
	}

	step := c.maxTokens - c.overlapTokens
	var chunks []Chunk
	for i := 0; i < n; i += step {
		end := i + c.maxTokens
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			GroupID: groupID,
			Text:    strings.TrimSpace(tokens.Slice(i, end)),
			Index:   len(chunks),
			Tokens:  end - i,
		})
		if end == n {
			break
		}
	}
	for i := range chunks {
		chunks[i].TotalCount = len(chunks)
	}
	return chunks
}

// CountTokens counts tokens the way Split measures them
func (c *Chunker) CountTokens(text string) int {
	return c.enc.tokenize(text).Len()
}
