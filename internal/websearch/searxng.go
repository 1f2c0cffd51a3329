package websearch

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SearXNGProvider queries a self-hosted SearXNG instance's JSON API. It needs a base URL but no key.
type SearXNGProvider struct {
	httpProvider
}

// NewSearXNGProvider creates a SearXNG provider
func NewSearXNGProvider(cfg ProviderConfig, logger *zap.Logger) *SearXNGProvider {
	return &SearXNGProvider{newHTTPProvider(cfg, "searxng", "", logger)}
}

type searxngResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// IsAvailable reports whether an instance is configured and the breaker is not open
func (p *SearXNGProvider) IsAvailable() bool {
	return p.baseURL != "" && !p.breakerOpen()
}

// Search runs one query. SearXNG scores are unbounded engine vote sums, so results are
// re-scored by position.
func (p *SearXNGProvider) Search(ctx context.Context, query string, maxResults int, _ Depth) (*Response, error) {
	if p.baseURL == "" {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	var sr searxngResponse
	if err := p.call(ctx, req, &sr); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(sr.Results))
	for i, r := range sr.Results {
		if maxResults > 0 && i >= maxResults {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: positionScore(i + 1)})
	}
	return finish(p.name, start, results), nil
}
