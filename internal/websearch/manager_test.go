package websearch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/gaps"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

type stubProvider struct {
	name      string
	available bool
	err       error
	results   map[string][]Result

	mu    sync.Mutex
	calls []string
}

func (s *stubProvider) Name() string      { return s.name }
func (s *stubProvider) IsAvailable() bool { return s.available }

func (s *stubProvider) Search(_ context.Context, query string, maxResults int, _ Depth) (*Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	res := s.results[query]
	if len(res) > maxResults {
		res = res[:maxResults]
	}
	return &Response{Results: res, Provider: s.name}, nil
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestSearch_FallsBackInOrder(t *testing.T) {
	down := &stubProvider{name: "down", available: false}
	broken := &stubProvider{name: "broken", available: true, err: errors.New("timeout")}
	good := &stubProvider{name: "good", available: true, results: map[string][]Result{"q": {{URL: "https://a.example"}}}}
	m := NewManager([]Provider{down, broken, good}, nil, Options{}, zaptest.NewLogger(t))

	resp, err := m.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "good", resp.Provider)
	assert.Equal(t, 0, down.callCount())
	assert.Equal(t, 1, broken.callCount())
	assert.True(t, m.Enabled())
}

func TestSearch_AllFailAggregatesErrors(t *testing.T) {
	a := &stubProvider{name: "a", available: true, err: errors.New("boom-a")}
	b := &stubProvider{name: "b", available: true, err: errors.New("boom-b")}
	m := NewManager([]Provider{a, b}, nil, Options{}, nil)

	_, err := m.Search(context.Background(), "q")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "boom-a")
	assert.Contains(t, err.Error(), "boom-b")
}

func TestSearch_NoProviders(t *testing.T) {
	_, err := NewManager(nil, nil, Options{}, nil).Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoProviders)

	m := NewManager([]Provider{&stubProvider{name: "off"}}, nil, Options{}, nil)
	_, err = m.Search(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNoProviders)
	assert.False(t, m.Enabled())

	var nilManager *Manager
	assert.False(t, nilManager.Enabled())
}

func TestFetchContent_UsesCacheByNormalisedURL(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	m := NewManager(nil, NewFetcher(FetcherConfig{}, nil), Options{}, nil)
	ctx := context.Background()

	page, err := m.FetchContent(ctx, srv.URL+"/doc?utm_source=x")
	require.NoError(t, err)
	assert.Equal(t, "plain body", page.Content)
	_, err = m.FetchContent(ctx, srv.URL+"/doc/#top")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, m.Cache().Len())

	_, err = NewManager(nil, nil, Options{}, nil).FetchContent(ctx, "https://x.example")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func gapReport(queries ...string) gaps.Report {
	return gaps.Report{
		IsActionable: true,
		Gaps:         []gaps.Gap{{Type: gaps.GapMissingDomain, SuggestedQueries: queries}},
	}
}

func TestFillGaps_BuildsDiscountedWebChunks(t *testing.T) {
	p := &stubProvider{name: "stub", available: true, results: map[string][]Result{
		"devops jwt": {
			{Title: "CI secrets", URL: "https://www.mit.edu/ci?utm_source=feed", Snippet: "store secrets", Score: 0.8},
			{Title: "Empty", URL: "https://empty.example", Snippet: " ", Score: 0.9},
		},
		"devops best practices": {
			{Title: "CI secrets again", URL: "https://mit.edu/ci", Snippet: "better copy", Score: 0.9},
			{Title: "", URL: "https://blog.example/post", RawContent: "raw body", Score: 0.5},
			{Title: "bad", URL: "http://[::1", Snippet: "x", Score: 1},
		},
	}}
	m := NewManager([]Provider{p}, nil, Options{}, zaptest.NewLogger(t))
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	res, err := m.FillGaps(context.Background(), gapReport("devops jwt", "devops best practices"), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"devops jwt", "devops best practices"}, res.Queries)
	require.Len(t, res.Chunks, 2)

	top := res.Chunks[0]
	assert.Equal(t, "https://mit.edu/ci", top.DocumentID)
	assert.Equal(t, "web:https://mit.edu/ci", top.ChunkID)
	assert.Equal(t, "better copy", top.Content)
	assert.Equal(t, models.SourceWebSearch, top.SourceType)
	assert.InDelta(t, 0.9*models.WebDiscount, top.FinalScore, 1e-9)
	assert.Equal(t, 0.9, top.BiEncoderScore)
	assert.Equal(t, 0.85, top.Metadata[models.MetaAuthority])
	assert.Equal(t, "2026-10-01T12:00:00Z", top.Metadata[models.MetaFetchedAt])

	second := res.Chunks[1]
	assert.Equal(t, "raw body", second.Content)
	assert.Equal(t, "https://blog.example/post", second.Metadata[models.MetaTitle])
}

func TestFillGaps_NothingToDo(t *testing.T) {
	m := NewManager([]Provider{&stubProvider{name: "s", available: true}}, nil, Options{}, nil)
	res, err := m.FillGaps(context.Background(), gaps.Report{}, 3)
	require.NoError(t, err)
	assert.Empty(t, res.Chunks)
	assert.NotNil(t, res.Chunks)
}

func TestFillGaps_AllQueriesFail(t *testing.T) {
	p := &stubProvider{name: "s", available: true, err: errors.New("down")}
	m := NewManager([]Provider{p}, nil, Options{}, nil)
	res, err := m.FillGaps(context.Background(), gapReport("a", "b"), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.Equal(t, 2, res.FailedQueries)
	assert.Empty(t, res.Chunks)
}

func TestFillGaps_QueryWithoutResults(t *testing.T) {
	p := &stubProvider{name: "s", available: true, results: map[string][]Result{
		"ok": {{URL: "https://ok.example", Snippet: "fine", Score: 0.7}},
	}}
	m := NewManager([]Provider{p}, nil, Options{}, nil)
	res, err := m.FillGaps(context.Background(), gapReport("ok", "empty"), 3)
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 1)
	assert.Equal(t, 0, res.FailedQueries)
}

func TestFillGaps_FetchesPagesWithoutRawContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Fetched</title></head><body><p>Full page text</p></body></html>`))
	}))
	defer srv.Close()

	p := &stubProvider{name: "s", available: true, results: map[string][]Result{
		"q": {{URL: srv.URL + "/page", Snippet: "short", Score: 0.6}},
	}}
	m := NewManager([]Provider{p}, NewFetcher(FetcherConfig{}, nil), Options{FetchPages: true}, nil)
	res, err := m.FillGaps(context.Background(), gapReport("q"), 3)
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "Full page text", res.Chunks[0].Content)
	assert.Equal(t, "Fetched", res.Chunks[0].Metadata[models.MetaTitle])
}
