package websearch

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SerperProvider implements web search using the Serper API (serper.dev)
type SerperProvider struct {
	httpProvider
}

// NewSerperProvider creates a Serper provider; it is unavailable without an API key
func NewSerperProvider(cfg ProviderConfig, logger *zap.Logger) *SerperProvider {
	return &SerperProvider{newHTTPProvider(cfg, "serper", "https://google.serper.dev", logger)}
}

type serperRequest struct {
	Q       string `json:"q"`
	Num     int    `json:"num,omitempty"`
	AutoCor bool   `json:"autocorrect"`
}

type serperResponse struct {
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Position int    `json:"position"`
	} `json:"organic"`
	AnswerBox *struct {
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
		Link    string `json:"link"`
	} `json:"answerBox,omitempty"`
}

// IsAvailable reports whether a key is set and the breaker is not open
func (p *SerperProvider) IsAvailable() bool {
	return p.apiKey != "" && !p.breakerOpen()
}

// Search runs one Serper query. Serper has no depth setting; organic results are scored by
// position and a featured answer box ranks first.
func (p *SerperProvider) Search(ctx context.Context, query string, maxResults int, _ Depth) (*Response, error) {
	if p.apiKey == "" {
		return nil, ErrNotConfigured
	}
	start := time.Now()
	req, err := jsonRequest(ctx, p.baseURL+"/search", serperRequest{Q: query, Num: maxResults, AutoCor: true})
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", p.apiKey)

	var sr serperResponse
	if err := p.call(ctx, req, &sr); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(sr.Organic)+1)
	if sr.AnswerBox != nil && sr.AnswerBox.Snippet != "" && sr.AnswerBox.Link != "" {
		results = append(results, Result{Title: sr.AnswerBox.Title, URL: sr.AnswerBox.Link, Snippet: sr.AnswerBox.Snippet, Score: 1.0})
	}
	for _, r := range sr.Organic {
		results = append(results, Result{Title: r.Title, URL: r.Link, Snippet: r.Snippet, Score: positionScore(r.Position)})
	}
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return finish(p.name, start, results), nil
}
