package embeddings

import "time"

// Config controls the embedding service behavior
type Config struct {
	// BaseURL points to the service exposing POST /embeddings/
	BaseURL string `mapstructure:"base_url"`
	// Model is sent with every request and namespaces cache keys
	Model string `mapstructure:"model"`
	// Timeout for outbound HTTP calls
	Timeout time.Duration `mapstructure:"timeout"`
	// BatchSize caps texts per request; larger batches are split
	BatchSize int `mapstructure:"batch_size"`
	// EnableRedis enables the Redis-backed cache
	EnableRedis bool `mapstructure:"enable_redis"`
	// RedisAddr in host:port form when EnableRedis is true
	RedisAddr string `mapstructure:"redis_addr"`
	// CacheTTL sets TTL for Redis cache entries
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	// LRUTTL sets TTL for in-process cache entries
	LRUTTL time.Duration `mapstructure:"lru_ttl"`
	// MaxLRU controls in-process LRU size
	MaxLRU int `mapstructure:"max_lru"`
	// Chunking configuration for document ingestion
	Chunking ChunkingConfig `mapstructure:"chunking"`
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Hour
	}
	if c.LRUTTL == 0 {
		c.LRUTTL = 30 * time.Minute
	}
	if c.MaxLRU == 0 {
		c.MaxLRU = 2048
	}
	if c.Chunking.MaxTokens == 0 {
		c.Chunking = DefaultChunkingConfig()
	}
	return c
}
