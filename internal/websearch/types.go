package websearch

import (
	"context"
	"errors"
	"time"
)

// Depth trades latency for richer results on providers that support it
type Depth string

const (
	DepthBasic    Depth = "basic"
	DepthAdvanced Depth = "advanced"
)

var (
	// ErrNoProviders means no provider was configured or none was available
	ErrNoProviders = errors.New("websearch: no available providers")
	// ErrAllProvidersFailed wraps the aggregated provider errors
	ErrAllProvidersFailed = errors.New("websearch: all providers failed")
	// ErrNotConfigured is returned by a provider missing its credentials or endpoint
	ErrNotConfigured = errors.New("websearch: provider not configured")
)

// Result is one search hit. Score is the provider's relevance in [0,1].
type Result struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	RawContent string  `json:"raw_content,omitempty"`
}

// Response is what a provider returns for one query
type Response struct {
	Results   []Result `json:"results"`
	Provider  string   `json:"provider"`
	LatencyMs int64    `json:"latency_ms"`
}

// Provider is one web search backend
type Provider interface {
	Search(ctx context.Context, query string, maxResults int, depth Depth) (*Response, error)
	IsAvailable() bool
	Name() string
}

// ProviderConfig describes one entry of the ordered provider list
type ProviderConfig struct {
	Kind    string        `mapstructure:"kind" yaml:"kind"` // tavily | serper | searxng
	Name    string        `mapstructure:"name" yaml:"name"`
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RatePerSecond limits outbound calls; 0 disables limiting
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`
}
