package websearch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/gaps"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metadata"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// Options tune a Manager
type Options struct {
	MaxResults    int           `mapstructure:"max_results"`
	Depth         Depth         `mapstructure:"depth"`
	CacheCapacity int           `mapstructure:"cache_capacity"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	// FetchPages fetches result pages that came back without raw content
	FetchPages bool `mapstructure:"fetch_pages"`
	// QueryConcurrency bounds parallel gap queries
	QueryConcurrency int `mapstructure:"query_concurrency"`
}

// DefaultOptions returns the standard manager settings
func DefaultOptions() Options {
	return Options{
		MaxResults:       5,
		Depth:            DepthBasic,
		CacheCapacity:    DefaultCacheCapacity,
		CacheTTL:         DefaultCacheTTL,
		QueryConcurrency: 3,
	}
}

// Manager tries an ordered list of providers and owns the page cache
type Manager struct {
	providers []Provider
	fetcher   *Fetcher
	cache     *PageCache
	opts      Options
	now       func() time.Time
	logger    *zap.Logger
}

// NewManager creates a manager over providers in priority order. fetcher may be nil, in which
// case FetchContent reports ErrNotConfigured.
func NewManager(providers []Provider, fetcher *Fetcher, opts Options, logger *zap.Logger) *Manager {
	d := DefaultOptions()
	if opts.MaxResults <= 0 {
		opts.MaxResults = d.MaxResults
	}
	if opts.Depth == "" {
		opts.Depth = d.Depth
	}
	if opts.QueryConcurrency <= 0 {
		opts.QueryConcurrency = d.QueryConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		providers: providers,
		fetcher:   fetcher,
		cache:     NewPageCache(opts.CacheCapacity, opts.CacheTTL, nil),
		opts:      opts,
		now:       time.Now,
		logger:    logger,
	}
}

// Cache exposes the page cache
func (m *Manager) Cache() *PageCache { return m.cache }

// Enabled reports whether any provider is currently available
func (m *Manager) Enabled() bool {
	if m == nil {
		return false
	}
	for _, p := range m.providers {
		if p.IsAvailable() {
			return true
		}
	}
	return false
}

// Search runs query against the first provider that is available and succeeds. Unavailable
// providers are skipped; failures fall through to the next provider. The error aggregates every
// provider failure and is returned only when no provider answered.
func (m *Manager) Search(ctx context.Context, query string) (*Response, error) {
	return m.search(ctx, query, m.opts.MaxResults)
}

func (m *Manager) search(ctx context.Context, query string, maxResults int) (*Response, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, ErrNoProviders
	}
	var errs *multierror.Error
	tried := 0
	for _, p := range m.providers {
		if !p.IsAvailable() {
			m.logger.Debug("Skipping unavailable search provider", zap.String("provider", p.Name()))
			continue
		}
		tried++
		resp, err := p.Search(ctx, query, maxResults, m.opts.Depth)
		if err == nil {
			return resp, nil
		}
		m.logger.Warn("Search provider failed, trying next",
			zap.String("provider", p.Name()),
			zap.String("query", query),
			zap.Error(err))
		errs = multierror.Append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if tried == 0 {
		return nil, ErrNoProviders
	}
	return nil, fmt.Errorf("%w: %v", ErrAllProvidersFailed, errs.ErrorOrNil())
}

// FetchContent returns the page at rawURL, from cache when a live copy exists
func (m *Manager) FetchContent(ctx context.Context, rawURL string) (Page, error) {
	key := cacheKey(rawURL)
	if page, ok := m.cache.Get(key); ok {
		return page, nil
	}
	if m.fetcher == nil {
		return Page{}, ErrNotConfigured
	}
	page, err := m.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	m.cache.Set(key, page)
	return page, nil
}

func cacheKey(rawURL string) string {
	if n, err := metadata.NormalizeURL(rawURL); err == nil {
		return n
	}
	return strings.TrimSpace(rawURL)
}

// FillResult is the outcome of gap filling
type FillResult struct {
	Chunks        []models.ScoredChunk `json:"chunks"`
	Queries       []string             `json:"queries"`
	FailedQueries int                  `json:"failed_queries"`
}

type queryOutcome struct {
	resp *Response
	err  error
}

// FillGaps runs the report's suggested queries and turns the results into web pseudo-chunks.
// Chunks are keyed by normalised URL (best score kept), discounted by models.WebDiscount and
// sorted by final score. The error is non-nil only when every query failed.
func (m *Manager) FillGaps(ctx context.Context, report gaps.Report, maxResults int) (*FillResult, error) {
	out := &FillResult{Chunks: []models.ScoredChunk{}, Queries: report.Queries()}
	if len(out.Queries) == 0 {
		return out, nil
	}
	if maxResults <= 0 {
		maxResults = m.opts.MaxResults
	}

	outcomes := make([]queryOutcome, len(out.Queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.QueryConcurrency)
	for i, q := range out.Queries {
		g.Go(func() error {
			resp, err := m.search(gctx, q, maxResults)
			outcomes[i] = queryOutcome{resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var errs *multierror.Error
	byKey := make(map[string]int)
	for i, o := range outcomes {
		if o.err != nil {
			out.FailedQueries++
			errs = multierror.Append(errs, fmt.Errorf("query %q: %w", out.Queries[i], o.err))
			continue
		}
		for _, r := range o.resp.Results {
			chunk, ok := m.toChunk(ctx, r, out.Queries[i], o.resp.Provider)
			if !ok {
				continue
			}
			if idx, seen := byKey[chunk.DocumentID]; seen {
				if chunk.FinalScore > out.Chunks[idx].FinalScore {
					out.Chunks[idx] = chunk
				}
				continue
			}
			byKey[chunk.DocumentID] = len(out.Chunks)
			out.Chunks = append(out.Chunks, chunk)
		}
	}
	sort.SliceStable(out.Chunks, func(a, b int) bool {
		return out.Chunks[a].FinalScore > out.Chunks[b].FinalScore
	})

	m.logger.Info("Web gap filling finished",
		zap.Int("queries", len(out.Queries)),
		zap.Int("failed", out.FailedQueries),
		zap.Int("chunks", len(out.Chunks)))
	if out.FailedQueries == len(out.Queries) {
		return out, errs.ErrorOrNil()
	}
	return out, nil
}

func (m *Manager) toChunk(ctx context.Context, r Result, query, provider string) (models.ScoredChunk, bool) {
	key, err := metadata.NormalizeURL(r.URL)
	if err != nil || key == "" {
		return models.ScoredChunk{}, false
	}
	title := r.Title
	fetchedAt := m.now().UTC()
	content := strings.TrimSpace(r.RawContent)
	if content == "" && m.opts.FetchPages {
		if page, err := m.FetchContent(ctx, r.URL); err == nil {
			content = page.Content
			if title == "" {
				title = page.Title
			}
			fetchedAt = page.FetchedAt.UTC()
		} else {
			m.logger.Debug("Page fetch failed, using snippet", zap.String("url", r.URL), zap.Error(err))
		}
	}
	if content == "" {
		content = r.Snippet
	}
	if strings.TrimSpace(content) == "" {
		return models.ScoredChunk{}, false
	}
	if title == "" {
		title = key
	}

	score := models.Clamp01(r.Score)
	return models.ScoredChunk{
		ChunkID:           "web:" + key,
		DocumentID:        key,
		Content:           content,
		BiEncoderScore:    score,
		CrossEncoderScore: score,
		FinalScore:        score * models.WebDiscount,
		SourceType:        models.SourceWebSearch,
		Metadata: map[string]interface{}{
			models.MetaURL:       r.URL,
			models.MetaTitle:     title,
			models.MetaFetchedAt: fetchedAt.Format(time.RFC3339),
			models.MetaAuthority: metadata.AuthorityForURL(r.URL),
			"query":              query,
			"provider":           provider,
		},
	}, true
}
