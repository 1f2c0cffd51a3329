package vectordb

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// pointNamespace seeds deterministic point ids so re-ingesting a chunk overwrites it
var pointNamespace = uuid.MustParse("6f1c9a52-3b7e-4d8a-9f0e-2a4b6c8d0e1f")

// PointID maps an arbitrary item id to a stable Qdrant UUID
func PointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(pointNamespace, []byte(id)).String()
}

// buildFilter turns exact-match pairs into a Qdrant "must" filter with keys in sorted order
func buildFilter(filter models.IndexFilter) map[string]interface{} {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]map[string]interface{}, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]interface{}{
			"key":   k,
			"match": map[string]interface{}{"value": filter[k]},
		})
	}
	return map[string]interface{}{"must": must}
}

// similarity converts a raw Qdrant score into [0,1]. Euclid returns a distance.
func similarity(d Distance, raw float64) float64 {
	switch d {
	case DistanceEuclidean:
		return models.Clamp01(1 - raw)
	case DistanceDot:
		return models.Clamp01(raw)
	default:
		// cosine similarity in [-1,1]; negatives are unrelated
		return models.Clamp01(raw)
	}
}

func toMatches(d Distance, points []qdrantPoint) []models.IndexMatch {
	out := make([]models.IndexMatch, 0, len(points))
	for _, p := range points {
		payload := p.Payload
		if payload == nil {
			payload = make(map[string]interface{})
		}
		id, _ := payload[PayloadIDKey].(string)
		if id == "" && p.ID != nil {
			id = fmt.Sprintf("%v", p.ID)
		}
		delete(payload, PayloadIDKey)
		out = append(out, models.IndexMatch{ID: id, Score: similarity(d, p.Score), Metadata: payload})
	}
	return out
}
