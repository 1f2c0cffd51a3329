package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tailor"
)

type stubService struct {
	last     tailor.Request
	deadline bool
	err      error
}

func (s *stubService) Tailor(ctx context.Context, req tailor.Request) (*tailor.Response, error) {
	s.last = req
	_, s.deadline = ctx.Deadline()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &tailor.Response{SessionID: "s-1", Context: "## Project Context\n\nbody"}, nil
}

func (s *stubService) Preview(_ context.Context, req tailor.Request) (*tailor.PreviewResponse, error) {
	s.last = req
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &tailor.PreviewResponse{EstimatedTokens: 120, EstimatedChunks: 3}, nil
}

type stubHealth struct{ sys degradation.SystemHealth }

func (s stubHealth) Check() degradation.SystemHealth { return s.sys }

func newTestRouter(t *testing.T, svc Tailorer, health HealthChecker, opts Options) *gin.Engine {
	t.Helper()
	return NewRouter(NewHandler(svc, health, opts, zaptest.NewLogger(t)), gin.TestMode)
}

func do(router http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTailorRoute(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(t, svc, nil, Options{RequestTimeout: time.Minute})

	w := do(router, http.MethodPost, "/v1/tailor",
		`{"task":"Implement JWT authentication","project_id":"p1","token_budget":3000,"include_web_search":true}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp tailor.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, "p1", svc.last.ProjectID)
	assert.Equal(t, 3000, svc.last.TokenBudget)
	assert.True(t, svc.last.IncludeWebSearch)
	assert.True(t, svc.deadline)
}

func TestTailorRoute_ValidationIs400(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil, Options{})

	w := do(router, http.MethodPost, "/v1/tailor", `{"task":"","project_id":"p1"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"task"`)

	w = do(router, http.MethodPost, "/v1/tailor", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid json")
}

func TestTailorRoute_UnexpectedErrorIs500(t *testing.T) {
	router := newTestRouter(t, &stubService{err: errors.New("boom")}, nil, Options{})
	w := do(router, http.MethodPost, "/v1/tailor", `{"task":"x","project_id":"p1"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestPreviewRoute(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil, Options{})
	w := do(router, http.MethodPost, "/v1/tailor/preview", `{"task":"x","project_id":"p1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var out tailor.PreviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 120, out.EstimatedTokens)
	assert.Equal(t, 3, out.EstimatedChunks)
}

func TestBearerToken(t *testing.T) {
	router := newTestRouter(t, &stubService{}, nil, Options{AuthToken: "secret"})
	body := `{"task":"x","project_id":"p1"}`

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodPost, "/v1/tailor", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		do(router, http.MethodPost, "/v1/tailor", body, map[string]string{"Authorization": "Bearer wrong"}).Code)
	for _, header := range []string{"Bearer secreT", "Bearer secre", "Bearer secret2", "Bearer ", "secret", "Basic secret"} {
		assert.Equal(t, http.StatusUnauthorized,
			do(router, http.MethodPost, "/v1/tailor", body, map[string]string{"Authorization": header}).Code, header)
	}
	assert.Equal(t, http.StatusOK,
		do(router, http.MethodPost, "/v1/tailor", body, map[string]string{"Authorization": "Bearer secret"}).Code)

	// health stays open
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "", nil).Code)
}

func TestHealthRoute(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	healthy := stubHealth{sys: degradation.SystemHealth{
		Dependencies: []degradation.DependencyHealth{{Name: "qdrant", IsHealthy: true, LastCheckTime: now}},
		Overall:      degradation.LevelNone,
		Timestamp:    now,
	}}
	w := do(newTestRouter(t, &stubService{}, healthy, Options{}), http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"none"`)
	assert.Contains(t, w.Body.String(), `"qdrant"`)

	severe := stubHealth{sys: degradation.SystemHealth{Overall: degradation.LevelSevere, Timestamp: now}}
	w = do(newTestRouter(t, &stubService{}, severe, Options{}), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"severe"`)
}

func TestMetricsRoute(t *testing.T) {
	w := do(newTestRouter(t, &stubService{}, nil, Options{MetricsPath: "/metrics"}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	w = do(newTestRouter(t, &stubService{}, nil, Options{}), http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
