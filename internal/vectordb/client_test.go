package vectordb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

type recorded struct {
	method string
	path   string
	body   map[string]interface{}
	header http.Header
}

type fakeQdrant struct {
	mu      sync.Mutex
	calls   []recorded
	respond func(r recorded, w http.ResponseWriter)
	srv     *httptest.Server
}

func newFakeQdrant(t *testing.T, respond func(r recorded, w http.ResponseWriter)) *fakeQdrant {
	f := &fakeQdrant{respond: respond}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, header: r.Header.Clone()}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		f.mu.Lock()
		f.calls = append(f.calls, rec)
		f.mu.Unlock()
		f.respond(rec, w)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeQdrant) client(t *testing.T, cfg Config) *Client {
	cfg.Host = f.srv.URL
	return NewClient(cfg, zaptest.NewLogger(t))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQuery_ConvertsPointsAndFilter(t *testing.T) {
	f := newFakeQdrant(t, func(r recorded, w http.ResponseWriter) {
		writeJSON(w, map[string]interface{}{
			"status": "ok",
			"result": map[string]interface{}{"points": []map[string]interface{}{
				{"id": "3f0e3c4e-0000-5000-8000-000000000001", "score": 0.91, "payload": map[string]interface{}{"_id": "doc-1#0", "content": "alpha"}},
				{"id": 7, "score": -0.2, "payload": nil},
			}},
		})
	})
	c := f.client(t, Config{APIKey: "secret", Threshold: 0.3})

	matches, err := c.Query(context.Background(), "project_docs", []float32{0.1, 0.2}, 5,
		models.IndexFilter{"project_id": "p1", "owner_id": "u1"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "doc-1#0", matches[0].ID)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "alpha", matches[0].Metadata["content"])
	assert.NotContains(t, matches[0].Metadata, PayloadIDKey)
	assert.Equal(t, "7", matches[1].ID)
	assert.Equal(t, 0.0, matches[1].Score)

	require.Len(t, f.calls, 1)
	call := f.calls[0]
	assert.Equal(t, "/collections/project_docs/points/query", call.path)
	assert.Equal(t, "secret", call.header.Get("api-key"))
	assert.Equal(t, float64(5), call.body["limit"])
	assert.Equal(t, 0.3, call.body["score_threshold"])
	must := call.body["filter"].(map[string]interface{})["must"].([]interface{})
	require.Len(t, must, 2)
	assert.Equal(t, "owner_id", must[0].(map[string]interface{})["key"])
	assert.Equal(t, "project_id", must[1].(map[string]interface{})["key"])
}

func TestQuery_FallsBackToLegacySearch(t *testing.T) {
	f := newFakeQdrant(t, func(r recorded, w http.ResponseWriter) {
		if strings.HasSuffix(r.path, "/points/query") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]interface{}{"result": []map[string]interface{}{
			{"id": 1, "score": 0.4, "payload": map[string]interface{}{"_id": "a"}},
		}})
	})
	c := f.client(t, Config{Distance: DistanceEuclidean})

	matches, err := c.Query(context.Background(), "docs", []float32{1}, 0, nil)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].ID)
	// euclid scores are distances
	assert.InDelta(t, 0.6, matches[0].Score, 1e-9)

	require.Len(t, f.calls, 2)
	assert.Equal(t, "/collections/docs/points/search", f.calls[1].path)
	assert.Equal(t, float64(10), f.calls[1].body["limit"], "default TopK")
	assert.NotContains(t, f.calls[1].body, "filter")
}

func TestQuery_MissingCollection(t *testing.T) {
	f := newFakeQdrant(t, func(r recorded, w http.ResponseWriter) {
		w.WriteHeader(http.StatusNotFound)
	})
	_, err := f.client(t, Config{}).Query(context.Background(), "nope", []float32{1}, 3, nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestUpsertAndDelete_UseStablePointIDs(t *testing.T) {
	f := newFakeQdrant(t, func(r recorded, w http.ResponseWriter) {
		writeJSON(w, map[string]interface{}{"status": "ok", "time": 0.001})
	})
	c := f.client(t, Config{})
	ctx := context.Background()

	err := c.Upsert(ctx, "docs", []models.IndexItem{
		{ID: "doc-1#0", Embedding: []float32{0.5}, Metadata: map[string]interface{}{"title": "Guide"}},
	})
	require.NoError(t, err)
	require.NoError(t, c.Delete(ctx, "docs", []string{"doc-1#0"}))
	require.NoError(t, c.Upsert(ctx, "docs", nil))

	require.Len(t, f.calls, 2)
	assert.Equal(t, http.MethodPut, f.calls[0].method)
	points := f.calls[0].body["points"].([]interface{})
	p := points[0].(map[string]interface{})
	assert.Equal(t, PointID("doc-1#0"), p["id"])
	assert.Equal(t, "doc-1#0", p["payload"].(map[string]interface{})["_id"])
	assert.Equal(t, "Guide", p["payload"].(map[string]interface{})["title"])

	assert.Equal(t, "/collections/docs/points/delete", f.calls[1].path)
	assert.Equal(t, []interface{}{PointID("doc-1#0")}, f.calls[1].body["points"])
}

func TestPointID(t *testing.T) {
	assert.Equal(t, PointID("x"), PointID("x"))
	assert.NotEqual(t, PointID("x"), PointID("y"))
	id := "3f0e3c4e-0000-5000-8000-000000000001"
	assert.Equal(t, id, PointID(id))
}

func TestEnsureCollectionAndValidate(t *testing.T) {
	created := false
	f := newFakeQdrant(t, func(r recorded, w http.ResponseWriter) {
		switch {
		case r.method == http.MethodGet && !created:
			w.WriteHeader(http.StatusNotFound)
		case r.method == http.MethodPut:
			created = true
			writeJSON(w, map[string]interface{}{"status": "ok"})
		default:
			writeJSON(w, map[string]interface{}{"result": map[string]interface{}{
				"points_count": 4,
				"config": map[string]interface{}{"params": map[string]interface{}{
					"vectors": map[string]interface{}{"size": 384, "distance": "Cosine"},
				}},
			}})
		}
	})
	c := f.client(t, Config{ExpectedEmbeddingDim: 1536})
	ctx := context.Background()

	require.NoError(t, c.EnsureCollection(ctx, "docs", 384))
	assert.Equal(t, float64(384), f.calls[1].body["vectors"].(map[string]interface{})["size"])
	require.NoError(t, c.EnsureCollection(ctx, "docs", 384))
	assert.Len(t, f.calls, 3, "existing collection is not recreated")

	err := c.ValidateEmbeddingDimensions(ctx, "docs")
	var mismatch DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 384, mismatch.ReceivedDimension)
}
