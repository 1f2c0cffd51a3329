// Package providers selects and builds the collaborators of the tailoring pipeline from
// configuration at process start.
package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/config"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/db"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/embeddings"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/llm"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/session"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/vectordb"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

// Set is the wired collaborators. Optional members are nil when disabled.
type Set struct {
	Embedder   models.Embedder
	Index      models.VectorIndex
	Reranker   models.Reranker
	Summarizer models.Summarizer
	Search     *websearch.Manager
	Sessions   *session.Store
	Archive    *db.Client
	Monitor    *degradation.Monitor

	closers []func() error
}

// Build creates every collaborator named by cfg. Optional backends that cannot be reached
// (embedding cache, sessions, archive) are logged and left out; required ones fail the build.
func Build(cfg *config.Config, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Set{Monitor: degradation.NewMonitor(cfg.Health.Interval, logger)}

	emb, err := s.buildEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Embedder = emb

	idx, err := s.buildIndex(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Index = idx

	switch cfg.Providers.Reranker {
	case "http":
		r := llm.NewReranker(cfg.LLM.Config, cfg.LLM.RerankModel, logger)
		s.Monitor.Register("reranker", r)
		s.Reranker = r
	case "", "noop":
		s.Reranker = models.NoopReranker{}
	default:
		return nil, fmt.Errorf("unknown reranker provider %q", cfg.Providers.Reranker)
	}

	switch cfg.Providers.Summarizer {
	case "http":
		sm := llm.NewSummarizer(cfg.LLM.Config, logger)
		s.Monitor.Register("summarizer", sm)
		s.Summarizer = sm
	case "", "none":
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Providers.Summarizer)
	}

	search, err := s.buildSearch(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.Search = search

	s.buildPersistence(cfg, logger)

	logger.Info("Providers built",
		zap.String("embedder", cfg.Providers.Embedder),
		zap.String("index", cfg.Providers.Index),
		zap.String("reranker", cfg.Providers.Reranker),
		zap.String("summarizer", cfg.Providers.Summarizer),
		zap.Bool("web_search", s.Search.Enabled()),
		zap.Bool("sessions", s.Sessions != nil),
		zap.Bool("archive", s.Archive != nil),
	)
	return s, nil
}

func (s *Set) buildEmbedder(cfg *config.Config, logger *zap.Logger) (models.Embedder, error) {
	switch cfg.Providers.Embedder {
	case "hash":
		return HashEmbedder{}, nil
	case "http":
		var cache embeddings.EmbeddingCache
		if cfg.Embeddings.EnableRedis && cfg.Embeddings.RedisAddr != "" {
			rc, err := embeddings.NewRedisCache(cfg.Embeddings.RedisAddr, logger)
			if err != nil {
				logger.Warn("Embedding cache unavailable, continuing with in-process cache only", zap.Error(err))
			} else {
				cache = rc
				s.closers = append(s.closers, rc.Close)
			}
		}
		svc := embeddings.NewService(cfg.Embeddings, cache, logger)
		s.Monitor.Register("embeddings", svc)
		return svc, nil
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", cfg.Providers.Embedder)
	}
}

func (s *Set) buildIndex(cfg *config.Config, logger *zap.Logger) (models.VectorIndex, error) {
	switch cfg.Providers.Index {
	case "memory":
		return NewMemoryIndex(), nil
	case "qdrant":
		c := vectordb.NewClient(cfg.VectorDB, logger)
		if cfg.VectorDB.ExpectedEmbeddingDim > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.ValidateEmbeddingDimensions(ctx, cfg.Pipeline.Collection); err != nil {
				logger.Warn("Vector collection validation failed", zap.Error(err))
			}
		}
		s.Monitor.Register("qdrant", c)
		return c, nil
	default:
		return nil, fmt.Errorf("unknown index provider %q", cfg.Providers.Index)
	}
}

func (s *Set) buildSearch(cfg *config.Config, logger *zap.Logger) (*websearch.Manager, error) {
	if !cfg.WebSearch.Enabled {
		return nil, nil
	}
	var list []websearch.Provider
	for _, pc := range cfg.WebSearch.Providers {
		p, err := SearchProvider(pc, logger)
		if err != nil {
			return nil, err
		}
		if b, ok := p.(degradation.Breaker); ok {
			s.Monitor.Register("websearch-"+p.Name(), b)
		}
		list = append(list, p)
	}
	fetcher := websearch.NewFetcher(cfg.WebSearch.Fetcher, logger)
	return websearch.NewManager(list, fetcher, cfg.WebSearch.Options, logger), nil
}

// SearchProvider builds one web search provider from its config
func SearchProvider(pc websearch.ProviderConfig, logger *zap.Logger) (websearch.Provider, error) {
	switch pc.Kind {
	case "tavily":
		return websearch.NewTavilyProvider(pc, logger), nil
	case "serper":
		return websearch.NewSerperProvider(pc, logger), nil
	case "searxng":
		return websearch.NewSearXNGProvider(pc, logger), nil
	default:
		return nil, fmt.Errorf("unknown web search provider kind %q", pc.Kind)
	}
}

func (s *Set) buildPersistence(cfg *config.Config, logger *zap.Logger) {
	if cfg.Session.Enabled {
		store, err := session.NewStore(cfg.Session.RedisAddr, session.Options{TTL: cfg.Session.TTL}, logger)
		if err != nil {
			logger.Warn("Session store unavailable, sessions will not be persisted", zap.Error(err))
		} else {
			s.Sessions = store
			s.Monitor.Register("sessions", store.RedisWrapper())
			s.closers = append(s.closers, store.Close)
		}
	}
	if cfg.Database.Enabled {
		archive, err := db.Open(cfg.Database.Config, logger)
		if err != nil {
			logger.Warn("Session archive unavailable", zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := archive.Migrate(ctx); err != nil {
			logger.Warn("Session archive migration failed", zap.Error(err))
			_ = archive.Close()
			return
		}
		s.Archive = archive
		s.Monitor.Register("archive", archive.Wrapper())
		s.closers = append(s.closers, archive.Close)
	}
}

// Close releases every opened backend, newest first
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	s.Monitor.Stop()
	var result *multierror.Error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
