package providers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/spf13/cast"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// MemoryIndex is an in-process VectorIndex using cosine similarity clamped to [0,1]
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]map[string]models.IndexItem
}

var _ models.VectorIndex = (*MemoryIndex)(nil)

// NewMemoryIndex creates an empty index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]map[string]models.IndexItem)}
}

// Upsert stores items, replacing any with the same ID
func (m *MemoryIndex) Upsert(_ context.Context, collection string, items []models.IndexItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		coll = make(map[string]models.IndexItem)
		m.collections[collection] = coll
	}
	for _, it := range items {
		if it.ID == "" {
			return fmt.Errorf("memory index: item without id")
		}
		meta := make(map[string]interface{}, len(it.Metadata))
		for k, v := range it.Metadata {
			meta[k] = v
		}
		vec := make([]float32, len(it.Embedding))
		copy(vec, it.Embedding)
		coll[it.ID] = models.IndexItem{ID: it.ID, Embedding: vec, Metadata: meta}
	}
	return nil
}

// Query returns up to topK matches passing filter, best first with ties broken by ID. An
// unknown collection yields no matches.
func (m *MemoryIndex) Query(_ context.Context, collection string, embedding []float32, topK int, filter models.IndexFilter) ([]models.IndexMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.collections[collection]
	matches := make([]models.IndexMatch, 0, len(coll))
	for _, it := range coll {
		if !matchesFilter(it.Metadata, filter) {
			continue
		}
		meta := make(map[string]interface{}, len(it.Metadata))
		for k, v := range it.Metadata {
			meta[k] = v
		}
		matches = append(matches, models.IndexMatch{
			ID:       it.ID,
			Score:    models.Clamp01(cosine(embedding, it.Embedding)),
			Metadata: meta,
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Delete removes ids; unknown ids are ignored
func (m *MemoryIndex) Delete(_ context.Context, collection string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.collections[collection], id)
	}
	return nil
}

// Len is the number of points in collection
func (m *MemoryIndex) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func matchesFilter(meta map[string]interface{}, filter models.IndexFilter) bool {
	for k, want := range filter {
		got, ok := meta[k]
		if !ok || cast.ToString(got) != cast.ToString(want) {
			return false
		}
	}
	return true
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
