package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix namespaces environment overrides, e.g. TAILOR_SERVER_PORT
const EnvPrefix = "TAILOR"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8088)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.request_timeout", "45s")
	v.SetDefault("server.auth_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "context-tailor")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
	v.SetDefault("tracing.version", "dev")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("providers.embedder", "http")
	v.SetDefault("providers.index", "qdrant")
	v.SetDefault("providers.reranker", "http")
	v.SetDefault("providers.summarizer", "http")

	v.SetDefault("embeddings.base_url", "http://llm-service:8000")
	v.SetDefault("embeddings.model", "text-embedding-3-small")
	v.SetDefault("embeddings.timeout", "5s")
	v.SetDefault("embeddings.batch_size", 64)
	v.SetDefault("embeddings.enable_redis", false)
	v.SetDefault("embeddings.redis_addr", "")
	v.SetDefault("embeddings.cache_ttl", "1h")
	v.SetDefault("embeddings.lru_ttl", "30m")
	v.SetDefault("embeddings.max_lru", 2048)
	v.SetDefault("embeddings.chunking.max_tokens", 400)
	v.SetDefault("embeddings.chunking.overlap_tokens", 50)
	v.SetDefault("embeddings.chunking.tokenizer_mode", "simple")
	v.SetDefault("embeddings.chunking.model", "gpt-4")

	v.SetDefault("vectordb.host", "localhost")
	v.SetDefault("vectordb.port", 6333)
	v.SetDefault("vectordb.api_key", "")
	v.SetDefault("vectordb.timeout", "5s")
	v.SetDefault("vectordb.top_k", 20)
	v.SetDefault("vectordb.threshold", 0.0)
	v.SetDefault("vectordb.distance", "Cosine")
	v.SetDefault("vectordb.expected_embedding_dim", 0)

	v.SetDefault("llm.base_url", "http://llm-service:8000")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.timeout", "8s")
	v.SetDefault("llm.rerank_model", "cross-encoder/ms-marco-MiniLM-L-6-v2")

	v.SetDefault("web_search.enabled", true)
	v.SetDefault("web_search.max_results", 5)
	v.SetDefault("web_search.depth", "basic")
	v.SetDefault("web_search.cache_capacity", 100)
	v.SetDefault("web_search.cache_ttl", "1h")
	v.SetDefault("web_search.fetch_pages", false)
	v.SetDefault("web_search.query_concurrency", 3)
	v.SetDefault("web_search.fetcher.timeout", "10s")
	v.SetDefault("web_search.fetcher.max_bytes", 2<<20)
	v.SetDefault("web_search.fetcher.user_agent", "context-tailor/1.0")

	v.SetDefault("pipeline.collection", "document_chunks")
	v.SetDefault("pipeline.candidate_count", 20)
	v.SetDefault("pipeline.rerank_count", 20)
	v.SetDefault("pipeline.return_count", 10)
	v.SetDefault("pipeline.max_chunks", 20)
	v.SetDefault("pipeline.bi_encoder_weight", 0.3)
	v.SetDefault("pipeline.cross_encoder_weight", 0.7)
	v.SetDefault("pipeline.min_final_score", 0.3)
	v.SetDefault("pipeline.max_queries", 4)
	v.SetDefault("pipeline.max_web_results", 5)
	v.SetDefault("pipeline.duplicate_threshold", 0.85)
	v.SetDefault("pipeline.credibility_path", "")
	v.SetDefault("pipeline.compression.thresholds.full_min", 0.8)
	v.SetDefault("pipeline.compression.thresholds.summary_min", 0.5)
	v.SetDefault("pipeline.compression.thresholds.keywords_min", 0.3)
	v.SetDefault("pipeline.compression.summary_max_tokens", 150)
	v.SetDefault("pipeline.compression.keywords_tokens", 15)
	v.SetDefault("pipeline.compression.reserved_tokens", 500)
	v.SetDefault("pipeline.compression.keyword_count", 10)
	v.SetDefault("pipeline.compression.summary_concurrency", 4)

	v.SetDefault("session.enabled", false)
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.ttl", "24h")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "tailor")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "tailor")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.workers", 2)

	v.SetDefault("health.interval", "30s")
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// ResolvePath returns explicit, else CONFIG_PATH, else ./config/tailor.yaml when it exists.
// An empty result means defaults and environment only.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("config/tailor.yaml"); err == nil {
		return "config/tailor.yaml"
	}
	return ""
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration once
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return decode(v)
}

// Manager holds the live configuration and reloads it when the file changes
type Manager struct {
	v        *viper.Viper
	path     string
	logger   *zap.Logger
	mu       sync.RWMutex
	current  *Config
	handlers []func(*Config)
}

// NewManager loads path and keeps the result as the current configuration
func NewManager(path string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, path: path, logger: logger, current: cfg}, nil
}

// Current returns the active configuration. Callers must not modify it.
func (m *Manager) Current() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers fn to receive every successfully reloaded configuration
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	m.handlers = append(m.handlers, fn)
	m.mu.Unlock()
}

// Watch starts reloading on file changes. Without a file it does nothing.
func (m *Manager) Watch() {
	if m.path == "" {
		return
	}
	m.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if err := m.reload(); err != nil {
			m.logger.Warn("Config reload rejected, keeping previous configuration",
				zap.String("file", e.Name), zap.Error(err))
			return
		}
		m.logger.Info("Configuration reloaded", zap.String("file", e.Name))
	})
	m.v.WatchConfig()
	m.logger.Info("Watching configuration", zap.String("path", m.path))
}

// reload re-decodes the file viper has already re-read; invalid results are rejected
func (m *Manager) reload() error {
	cfg, err := decode(m.v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = cfg
	handlers := make([]func(*Config), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()
	for _, h := range handlers {
		h(cfg)
	}
	return nil
}
