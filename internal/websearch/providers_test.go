package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTavilyProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer tv-key", r.Header.Get("Authorization"))
		var body tavilyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "jwt rotation", body.Query)
		assert.Equal(t, 3, body.MaxResults)
		assert.Equal(t, "advanced", body.SearchDepth)
		assert.True(t, body.IncludeRawContent)
		_, _ = w.Write([]byte(`{"results":[
			{"title":"JWT guide","url":"https://auth0.com/docs/jwt","content":"<b>Rotate</b> keys &amp; tokens","score":0.92,"raw_content":"full text"},
			{"title":"Over","url":"https://x.dev","content":"x","score":1.4}
		]}`))
	}))
	defer srv.Close()

	p := NewTavilyProvider(ProviderConfig{BaseURL: srv.URL, APIKey: "tv-key"}, zaptest.NewLogger(t))
	require.True(t, p.IsAvailable())
	assert.Equal(t, "tavily", p.Name())

	resp, err := p.Search(context.Background(), "jwt rotation", 3, DepthAdvanced)
	require.NoError(t, err)
	assert.Equal(t, "tavily", resp.Provider)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "Rotate keys & tokens", resp.Results[0].Snippet)
	assert.Equal(t, "full text", resp.Results[0].RawContent)
	assert.Equal(t, 1.0, resp.Results[1].Score)
}

func TestTavilyProvider_NoKey(t *testing.T) {
	p := NewTavilyProvider(ProviderConfig{}, nil)
	assert.False(t, p.IsAvailable())
	_, err := p.Search(context.Background(), "q", 1, DepthBasic)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSerperProvider_AnswerBoxAndPositions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sp-key", r.Header.Get("X-API-KEY"))
		_, _ = w.Write([]byte(`{
			"answerBox":{"title":"Answer","snippet":"42","link":"https://a.example"},
			"organic":[
				{"title":"One","link":"https://one.example","snippet":"first","position":1},
				{"title":"Two","link":"https://two.example","snippet":"second","position":2}
			]}`))
	}))
	defer srv.Close()

	p := NewSerperProvider(ProviderConfig{BaseURL: srv.URL, APIKey: "sp-key"}, nil)
	resp, err := p.Search(context.Background(), "q", 2, DepthBasic)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2, "answer box counts toward maxResults")
	assert.Equal(t, "https://a.example", resp.Results[0].URL)
	assert.Equal(t, 1.0, resp.Results[0].Score)
	assert.InDelta(t, 0.95, resp.Results[1].Score, 1e-9)
}

func TestSearXNGProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "go generics", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"A","url":"https://go.dev/doc","content":"generics tutorial","score":7.5},
			{"title":"B","url":"https://b.example","content":"b","score":3},
			{"title":"C","url":"https://c.example","content":"c","score":1}
		]}`))
	}))
	defer srv.Close()

	p := NewSearXNGProvider(ProviderConfig{BaseURL: srv.URL}, nil)
	require.True(t, p.IsAvailable())
	resp, err := p.Search(context.Background(), "go generics", 2, DepthBasic)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.InDelta(t, 0.95, resp.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.90, resp.Results[1].Score, 1e-9)

	assert.False(t, NewSearXNGProvider(ProviderConfig{}, nil).IsAvailable())
}

func TestProvider_ServerErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewTavilyProvider(ProviderConfig{BaseURL: srv.URL, APIKey: "k", RatePerSecond: 100, Burst: 2}, nil)
	_, err := p.Search(context.Background(), "q", 1, DepthBasic)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestProvider_RateLimitHonoursContext(t *testing.T) {
	p := NewSearXNGProvider(ProviderConfig{BaseURL: "http://127.0.0.1:1", RatePerSecond: 0.001, Burst: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Search(ctx, "q", 1, DepthBasic)
	assert.Error(t, err)
}

func TestCleanSnippet(t *testing.T) {
	assert.Equal(t, "", CleanSnippet(""))
	assert.Equal(t, "Use a & b", CleanSnippet("<p>Use   a &amp; <script>x</script>b</p>"))
	assert.Equal(t, "it's fine", CleanSnippet("it's\nfine"))
}
