package config

import (
	"fmt"
	"time"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/db"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/embeddings"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/logging"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/vectordb"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

// Config is the full service configuration loaded from tailor.yaml and TAILOR_* variables
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Logging    logging.Config    `mapstructure:"logging"`
	Tracing    tracing.Config    `mapstructure:"tracing"`
	Metrics    MetricsConfig     `mapstructure:"metrics"`
	Providers  ProviderSelection `mapstructure:"providers"`
	Embeddings embeddings.Config `mapstructure:"embeddings"`
	VectorDB   vectordb.Config   `mapstructure:"vectordb"`
	LLM        LLMConfig         `mapstructure:"llm"`
	WebSearch  WebSearchConfig   `mapstructure:"web_search"`
	Pipeline   PipelineConfig    `mapstructure:"pipeline"`
	Session    SessionConfig     `mapstructure:"session"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Health     HealthConfig      `mapstructure:"health"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // gin mode: release | debug | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout bounds one tailoring request end to end
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// AuthToken, when set, is required as a bearer token on the API routes
	AuthToken string `mapstructure:"auth_token"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ProviderSelection picks the backend of each collaborator
type ProviderSelection struct {
	Embedder   string `mapstructure:"embedder"`   // http | hash
	Index      string `mapstructure:"index"`      // qdrant | memory
	Reranker   string `mapstructure:"reranker"`   // http | noop
	Summarizer string `mapstructure:"summarizer"` // http | none
}

type LLMConfig struct {
	llm.Config  `mapstructure:",squash"`
	RerankModel string `mapstructure:"rerank_model"`
}

type WebSearchConfig struct {
	Enabled           bool                       `mapstructure:"enabled"`
	Providers         []websearch.ProviderConfig `mapstructure:"providers"`
	websearch.Options `mapstructure:",squash"`
	Fetcher           websearch.FetcherConfig `mapstructure:"fetcher"`
}

// PipelineConfig holds the scoring thresholds and budgets; these reload without a restart
type PipelineConfig struct {
	Collection         string             `mapstructure:"collection"`
	CandidateCount     int                `mapstructure:"candidate_count"`
	RerankCount        int                `mapstructure:"rerank_count"`
	ReturnCount        int                `mapstructure:"return_count"`
	MaxChunks          int                `mapstructure:"max_chunks"`
	BiEncoderWeight    float64            `mapstructure:"bi_encoder_weight"`
	CrossEncoderWeight float64            `mapstructure:"cross_encoder_weight"`
	MinFinalScore      float64            `mapstructure:"min_final_score"`
	MaxQueries         int                `mapstructure:"max_queries"`
	MaxWebResults      int                `mapstructure:"max_web_results"`
	DuplicateThreshold float64            `mapstructure:"duplicate_threshold"`
	CredibilityPath    string             `mapstructure:"credibility_path"`
	Compression        compression.Config `mapstructure:"compression"`
}

type SessionConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type DatabaseConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	db.Config `mapstructure:",squash"`
}

type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	p := c.Pipeline
	t := p.Compression.Thresholds
	if !(t.FullMin >= t.SummaryMin && t.SummaryMin >= t.KeywordsMin && t.KeywordsMin >= 0 && t.FullMin <= 1) {
		return fmt.Errorf("compression thresholds must satisfy 1 >= full >= summary >= keywords >= 0")
	}
	if p.BiEncoderWeight < 0 || p.CrossEncoderWeight < 0 || p.BiEncoderWeight+p.CrossEncoderWeight <= 0 {
		return fmt.Errorf("retrieval weights must be non-negative with a positive sum")
	}
	if p.MinFinalScore < 0 || p.MinFinalScore > 1 {
		return fmt.Errorf("min_final_score must be within [0,1]")
	}
	if p.DuplicateThreshold <= 0 || p.DuplicateThreshold > 1 {
		return fmt.Errorf("duplicate_threshold must be within (0,1]")
	}
	if c.Session.Enabled && c.Session.RedisAddr == "" {
		return fmt.Errorf("session.redis_addr is required when sessions are enabled")
	}
	if c.Database.Enabled {
		if _, err := c.Database.DataSource(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	switch c.Providers.Index {
	case "qdrant", "memory":
	default:
		return fmt.Errorf("unknown index provider %q", c.Providers.Index)
	}
	switch c.Providers.Embedder {
	case "http", "hash":
	default:
		return fmt.Errorf("unknown embedder provider %q", c.Providers.Embedder)
	}
	for _, pc := range c.WebSearch.Providers {
		switch pc.Kind {
		case "tavily", "serper", "searxng":
		default:
			return fmt.Errorf("unknown web search provider kind %q", pc.Kind)
		}
	}
	return nil
}
