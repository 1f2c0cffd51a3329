package tailor

import (
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/config"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/relevance"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/synthesis"
)

// Options are the pipeline settings that may change while the service runs
type Options struct {
	Retrieval relevance.Config
	// MaxQueries caps the suggested queries retrieved for one task
	MaxQueries int
	// MaxChunks caps the chunks handed to compression, project and web combined; a request
	// may lower it
	MaxChunks        int
	MaxWebResults    int
	QueryConcurrency int
	Compression      compression.Config
	Synthesis        synthesis.Config
}

// DefaultOptions returns the standard pipeline settings
func DefaultOptions() Options {
	return Options{
		Retrieval:        relevance.DefaultConfig(),
		MaxQueries:       4,
		MaxChunks:        20,
		MaxWebResults:    5,
		QueryConcurrency: 4,
		Compression:      compression.DefaultConfig(0),
		Synthesis:        synthesis.DefaultConfig(),
	}
}

// OptionsFromConfig maps the pipeline section of the service configuration
func OptionsFromConfig(p config.PipelineConfig) Options {
	o := DefaultOptions()
	o.Retrieval = relevance.Config{
		Collection:         p.Collection,
		CandidateCount:     p.CandidateCount,
		RerankCount:        p.RerankCount,
		ReturnCount:        p.ReturnCount,
		BiEncoderWeight:    p.BiEncoderWeight,
		CrossEncoderWeight: p.CrossEncoderWeight,
		MinFinalScore:      p.MinFinalScore,
	}
	if p.MaxQueries > 0 {
		o.MaxQueries = p.MaxQueries
	}
	if p.MaxChunks > 0 {
		o.MaxChunks = p.MaxChunks
	}
	if p.MaxWebResults > 0 {
		o.MaxWebResults = p.MaxWebResults
	}
	o.Compression = p.Compression
	if p.DuplicateThreshold > 0 {
		o.Synthesis.DuplicateThreshold = p.DuplicateThreshold
	}
	return o
}

func (o Options) minFinalScore() float64 {
	if o.Retrieval.MinFinalScore > 0 {
		return o.Retrieval.MinFinalScore
	}
	return relevance.DefaultConfig().MinFinalScore
}

func (o Options) poolLimit(requested int) int {
	if requested > 0 && (o.MaxChunks <= 0 || requested < o.MaxChunks) {
		return requested
	}
	return o.MaxChunks
}
