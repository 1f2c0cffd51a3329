package providers

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

// DefaultHashDims is the vector size of HashEmbedder
const DefaultHashDims = 256

// HashEmbedder maps text to an L2-normalised bag of hashed words. It needs no model service
// and is meant for local runs and tests; texts sharing vocabulary land close together.
type HashEmbedder struct {
	Dims int
}

var _ models.Embedder = HashEmbedder{}

// EmbedText embeds one text
func (h HashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

// EmbedBatch embeds texts in order
func (h HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h HashEmbedder) embed(text string) []float32 {
	dims := h.Dims
	if dims <= 0 {
		dims = DefaultHashDims
	}
	vec := make([]float32, dims)
	for _, w := range util.Words(text) {
		if util.IsStopWord(w) {
			continue
		}
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		sum := f.Sum32()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[int(sum>>1)%dims] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
