// Package tailor runs the context tailoring pipeline: task analysis, retrieval, gap
// filling, compression, synthesis, citation and quality scoring.
package tailor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/db"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/gaps"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/quality"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/session"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

// SessionSaver persists the outcome of a request
type SessionSaver interface {
	Save(ctx context.Context, rec *session.Record) error
}

// Archiver queues a durable copy of a session
type Archiver interface {
	QueueArchive(a *db.SessionArchive, callback func(error))
}

// Deps are the collaborators of the service. Index and Embedder are required; the rest are
// optional and their absence is a fallback, not an error.
type Deps struct {
	Index      models.VectorIndex
	Embedder   models.Embedder
	Reranker   models.Reranker
	Summarizer models.Summarizer
	Search     *websearch.Manager
	Sessions   SessionSaver
	Archive    Archiver
	// TokenCounter defaults to util.EstimateTokens
	TokenCounter compression.TokenCounter
	Logger       *zap.Logger
	Clock        func() time.Time
}

// Service tailors context for tasks. It is safe for concurrent use; requests share no
// mutable state apart from the web page cache.
type Service struct {
	index      models.VectorIndex
	embedder   models.Embedder
	reranker   models.Reranker
	summarizer models.Summarizer
	search     *websearch.Manager
	sessions   SessionSaver
	archive    Archiver
	count      compression.TokenCounter
	gaps       *gaps.Analyzer
	quality    *quality.Scorer
	logger     *zap.Logger
	now        func() time.Time

	mu   sync.RWMutex
	opts Options
}

// NewService creates a tailoring service
func NewService(deps Deps, opts Options) (*Service, error) {
	if deps.Index == nil || deps.Embedder == nil {
		return nil, fmt.Errorf("tailor service needs a vector index and an embedder")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	reranker := deps.Reranker
	if reranker == nil {
		reranker = models.NoopReranker{}
	}
	return &Service{
		index:      deps.Index,
		embedder:   deps.Embedder,
		reranker:   reranker,
		summarizer: deps.Summarizer,
		search:     deps.Search,
		sessions:   deps.Sessions,
		archive:    deps.Archive,
		count:      deps.TokenCounter,
		gaps:       gaps.NewAnalyzer(logger, clock),
		quality:    quality.NewScorer(logger, clock),
		logger:     logger,
		now:        clock,
		opts:       opts,
	}, nil
}

// Options returns the current pipeline settings
func (s *Service) Options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// UpdateOptions replaces the pipeline settings; requests already running keep the old ones
func (s *Service) UpdateOptions(opts Options) {
	s.mu.Lock()
	s.opts = opts
	s.mu.Unlock()
	s.logger.Info("Pipeline options updated",
		zap.Int("max_queries", opts.MaxQueries),
		zap.Int("max_chunks", opts.MaxChunks),
		zap.Float64("min_final_score", opts.minFinalScore()),
	)
}

// runStage executes one stage inside its span, records its duration and converts a failure
// or panic into a recorded degradation
func (s *Service) runStage(ctx context.Context, rec *degradation.Recorder, stage degradation.Stage, fn func(ctx context.Context) error) (err error) {
	ctx, span := tracing.StartStageSpan(ctx, string(stage))
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Stage panicked", zap.String("stage", string(stage)), zap.Any("panic", r))
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
		tracing.EndSpan(span, err)
		metrics.RecordStage(string(stage), time.Since(start).Seconds(), err != nil)
		rec.Record(stage, err)
	}()
	return fn(ctx)
}

// recordingReranker notes cross-encoder failures of one request
type recordingReranker struct {
	inner models.Reranker
	rec   *degradation.Recorder
}

func (r recordingReranker) Rerank(ctx context.Context, query string, passages []string) ([]models.RerankResult, error) {
	out, err := r.inner.Rerank(ctx, query, passages)
	r.rec.Record(degradation.StageRerank, err)
	return out, err
}

// recordingSummarizer notes summarizer failures of one request
type recordingSummarizer struct {
	inner models.Summarizer
	rec   *degradation.Recorder
}

func (r recordingSummarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	out, err := r.inner.Summarize(ctx, text, maxTokens)
	r.rec.Record(degradation.StageSummarize, err)
	return out, err
}
