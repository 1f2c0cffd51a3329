package websearch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TavilyProvider searches through the Tavily API
type TavilyProvider struct {
	httpProvider
}

// NewTavilyProvider creates a Tavily provider; it is unavailable without an API key
func NewTavilyProvider(cfg ProviderConfig, logger *zap.Logger) *TavilyProvider {
	return &TavilyProvider{newHTTPProvider(cfg, "tavily", "https://api.tavily.com", logger)}
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results"`
	SearchDepth       string `json:"search_depth"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    string  `json:"content"`
		Score      float64 `json:"score"`
		RawContent string  `json:"raw_content"`
	} `json:"results"`
}

// IsAvailable reports whether a key is set and the breaker is not open
func (p *TavilyProvider) IsAvailable() bool {
	return p.apiKey != "" && !p.breakerOpen()
}

// Search runs one Tavily query. Advanced depth also asks for raw page content.
func (p *TavilyProvider) Search(ctx context.Context, query string, maxResults int, depth Depth) (*Response, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	if depth == "" {
		depth = DepthBasic
	}
	req, err := jsonRequest(ctx, p.baseURL+"/search", tavilyRequest{
		Query:             query,
		MaxResults:        maxResults,
		SearchDepth:       string(depth),
		IncludeRawContent: depth == DepthAdvanced,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	var tr tavilyResponse
	if err := p.call(ctx, req, &tr); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(tr.Results))
	for _, r := range tr.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content, Score: r.Score, RawContent: r.RawContent})
	}
	return finish(p.name, start, results), nil
}
