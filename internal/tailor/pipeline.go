package tailor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/db"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/gaps"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metadata"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metrics"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/quality"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/relevance"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/session"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/synthesis"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/taskanalysis"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/tracing"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

// Tailor builds the context for req. Only a *ValidationError is returned as an error; stage
// failures degrade the response and are listed in its metadata.
func (s *Service) Tailor(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := s.Options()
	started := s.now()
	wallStart := time.Now()

	ctx, span := tracing.StartSpan(ctx, "tailor.Tailor")
	defer span.End()

	rec := degradation.NewRecorder(s.logger, s.now)
	logger := s.logger.With(zap.String("project_id", req.ProjectID))

	var analysis taskanalysis.Analysis
	if err := s.runStage(ctx, rec, degradation.StageAnalyze, func(context.Context) error {
		analysis = taskanalysis.Analyze(req.Task)
		return nil
	}); err != nil {
		analysis = taskanalysis.Analysis{
			TaskType:             taskanalysis.TaskOther,
			Domains:              []taskanalysis.Domain{taskanalysis.DomainGeneral},
			Complexity:           taskanalysis.ComplexityMedium,
			EstimatedTokenBudget: taskanalysis.TokenBudget(taskanalysis.ComplexityMedium),
		}
	}
	budget := req.TokenBudget
	if budget <= 0 {
		budget = analysis.EstimatedTokenBudget
	}

	scorer := relevance.NewScorer(s.index, s.embedder, recordingReranker{inner: s.reranker, rec: rec}, logger)
	var project []models.ScoredChunk
	_ = s.runStage(ctx, rec, degradation.StageRetrieve, func(ctx context.Context) error {
		var err error
		project, err = s.retrieve(ctx, scorer, req, analysis, opts)
		return err
	})

	webEnabled := req.IncludeWebSearch && s.search.Enabled()
	var report gaps.Report
	_ = s.runStage(ctx, rec, degradation.StageGaps, func(context.Context) error {
		report = s.gaps.Analyze(analysis, project, webEnabled)
		return nil
	})

	var web []models.ScoredChunk
	if webEnabled && report.IsActionable {
		_ = s.runStage(ctx, rec, degradation.StageWebSearch, func(ctx context.Context) error {
			fill, err := s.search.FillGaps(ctx, report, opts.MaxWebResults)
			if fill != nil {
				web = fill.Chunks
			}
			return err
		})
	}

	// web chunks arrive already discounted; the chunk cap applies to project and web together
	pool := relevance.RankByFinalScore(append(append([]models.ScoredChunk{}, project...), web...),
		opts.minFinalScore(), opts.poolLimit(req.MaxChunks))

	compressed := &compression.Result{Chunks: []compression.CompressedChunk{}}
	_ = s.runStage(ctx, rec, degradation.StageCompress, func(ctx context.Context) error {
		var summarizer models.Summarizer
		if s.summarizer != nil {
			summarizer = recordingSummarizer{inner: s.summarizer, rec: rec}
		}
		cfg := opts.Compression
		cfg.TotalTokenBudget = budget
		res, err := compression.NewCompressor(summarizer, s.count, logger).Compress(ctx, pool, cfg)
		if err != nil {
			return err
		}
		compressed = res
		return nil
	})

	var blocks []synthesis.Block
	_ = s.runStage(ctx, rec, degradation.StageSynthesize, func(context.Context) error {
		blocks = synthesis.NewSynthesizer(opts.Synthesis, logger).Synthesize(compressed.Chunks, nil)
		return nil
	})

	citations := []metadata.Citation{}
	_ = s.runStage(ctx, rec, degradation.StageCite, func(context.Context) error {
		if tracked := metadata.Track(blocks); tracked != nil {
			citations = tracked
		}
		return nil
	})

	var score *quality.Score
	_ = s.runStage(ctx, rec, degradation.StageQuality, func(context.Context) error {
		q := s.quality.ScoreDocument(quality.DocumentInput{
			Task:         req.Task,
			Chunks:       compressed.Chunks,
			RawTokens:    compressed.Stats.OriginalTokens,
			OutputTokens: compressed.TotalTokenCount,
		})
		// nothing made it into the context, so there is nothing to rate; the sub-scores stay
		// for diagnostics
		if len(compressed.Chunks) == 0 {
			q.Overall = 0
		}
		score = &q
		return nil
	})

	sections := buildSections(blocks, s.counter())
	resp := &Response{
		SessionID: uuid.New().String(),
		Context:   renderContext(sections, citations),
		Sections:  sections,
		Metadata: Metadata{
			TotalTokens:      budget,
			TokensUsed:       compressed.TotalTokenCount,
			ChunksRetrieved:  len(project) + len(web),
			ChunksIncluded:   len(compressed.Chunks),
			WebChunks:        len(web),
			GapReport:        report,
			CompressionStats: compressed.Stats,
			QualityDetails:   score,
			Citations:        citations,
			Contradictions:   synthesis.Contradictions(blocks),
		},
	}
	if score != nil {
		resp.Metadata.QualityScore = score.Normalized()
	}

	s.persist(ctx, rec, req, resp)

	resp.Metadata.Failures = rec.Failures()
	resp.Metadata.DegradationLevel = rec.Level()
	resp.Metadata.ProcessingTimeMs = s.now().Sub(started).Milliseconds()

	status := "success"
	if resp.Metadata.DegradationLevel != degradation.LevelNone {
		status = "degraded"
		degradation.RecordDegradedResponse(resp.Metadata.DegradationLevel)
	}
	metrics.RecordTailorMetrics("tailor", status, time.Since(wallStart).Seconds(),
		resp.Metadata.ChunksRetrieved, resp.Metadata.ChunksIncluded)

	logger.Info("Tailored context",
		zap.String("session_id", resp.SessionID),
		zap.Int("chunks_retrieved", resp.Metadata.ChunksRetrieved),
		zap.Int("chunks_included", resp.Metadata.ChunksIncluded),
		zap.Int("tokens_used", resp.Metadata.TokensUsed),
		zap.Float64("quality", resp.Metadata.QualityScore),
		zap.String("degradation", resp.Metadata.DegradationLevel.String()),
	)
	return resp, nil
}

// Preview estimates a tailoring run. It retrieves without the cross-encoder and plans
// compression levels without summarizing, so no LLM is called.
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := s.Options()
	opts.Retrieval.RerankCount = 0
	started := s.now()
	wallStart := time.Now()

	ctx, span := tracing.StartSpan(ctx, "tailor.Preview")
	defer span.End()

	rec := degradation.NewRecorder(s.logger, s.now)
	analysis := taskanalysis.Analyze(req.Task)
	budget := req.TokenBudget
	if budget <= 0 {
		budget = analysis.EstimatedTokenBudget
	}

	var project []models.ScoredChunk
	_ = s.runStage(ctx, rec, degradation.StageRetrieve, func(ctx context.Context) error {
		var err error
		project, err = s.retrieve(ctx, relevance.NewScorer(s.index, s.embedder, nil, s.logger), req, analysis, opts)
		return err
	})

	webEnabled := req.IncludeWebSearch && s.search.Enabled()
	report := s.gaps.Analyze(analysis, project, webEnabled)

	cfg := opts.Compression
	cfg.TotalTokenBudget = budget
	plan := compression.BuildPlan(project, cfg, s.counter())
	included := 0
	for _, l := range plan.Levels {
		if l != compression.LevelDrop {
			included++
		}
	}

	estimated := report.EstimatedQualityWithoutFilling
	if report.IsActionable {
		estimated = report.EstimatedQualityWithFilling
	}
	out := &PreviewResponse{
		EstimatedTokens:  plan.Cost,
		EstimatedChunks:  included,
		GapSummary:       report.Summary(),
		EstimatedQuality: estimated,
		ProcessingTimeMs: s.now().Sub(started).Milliseconds(),
	}

	status := "success"
	if rec.Level() != degradation.LevelNone {
		status = "degraded"
	}
	metrics.RecordTailorMetrics("preview", status, time.Since(wallStart).Seconds(), len(project), included)
	return out, nil
}

// retrieve scores every suggested query and merges the results by chunk, keeping each
// chunk's best score. It fails only when every query failed.
func (s *Service) retrieve(ctx context.Context, scorer *relevance.Scorer, req Request, analysis taskanalysis.Analysis, opts Options) ([]models.ScoredChunk, error) {
	queries := analysis.SuggestedSearchQueries
	if opts.MaxQueries > 0 && len(queries) > opts.MaxQueries {
		queries = queries[:opts.MaxQueries]
	}
	if len(queries) == 0 {
		queries = []string{strings.TrimSpace(req.Task)}
	}

	results := make([][]models.ScoredChunk, len(queries))
	errs := make([]error, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if opts.QueryConcurrency > 0 {
		g.SetLimit(opts.QueryConcurrency)
	}
	for i, q := range queries {
		g.Go(func() error {
			results[i], errs[i] = scorer.Score(gctx, q, req.ProjectID, req.UserID, opts.Retrieval)
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	best := make(map[string]models.ScoredChunk)
	for i, chunks := range results {
		if errs[i] != nil {
			merr = multierror.Append(merr, fmt.Errorf("query %q: %w", queries[i], errs[i]))
			continue
		}
		for _, c := range chunks {
			if prev, ok := best[c.ChunkID]; !ok || c.FinalScore > prev.FinalScore {
				best[c.ChunkID] = c
			}
		}
	}
	if merr != nil && len(merr.Errors) == len(queries) {
		return []models.ScoredChunk{}, merr.ErrorOrNil()
	}
	if merr != nil {
		s.logger.Warn("Some retrieval queries failed", zap.Error(merr))
	}

	merged := make([]models.ScoredChunk, 0, len(best))
	for _, c := range best {
		merged = append(merged, c)
	}
	return relevance.RankByFinalScore(merged, opts.minFinalScore(), opts.poolLimit(req.MaxChunks)), nil
}

// persist saves the session and queues its archive. Failures are recorded, not returned.
func (s *Service) persist(ctx context.Context, rec *degradation.Recorder, req Request, resp *Response) {
	if s.sessions == nil && s.archive == nil {
		return
	}
	_ = s.runStage(ctx, rec, degradation.StagePersist, func(ctx context.Context) error {
		doc, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("encode response: %w", err)
		}
		overall := 0
		if resp.Metadata.QualityDetails != nil {
			overall = resp.Metadata.QualityDetails.Overall
		}
		record := &session.Record{
			ID:           resp.SessionID,
			UserID:       req.UserID,
			ProjectID:    req.ProjectID,
			Task:         req.Task,
			TokenCount:   resp.Metadata.TokensUsed,
			QualityScore: overall,
			Degraded:     len(rec.Failures()) > 0,
			Response:     doc,
			CreatedAt:    s.now(),
		}

		if s.sessions != nil {
			if err := s.sessions.Save(ctx, record); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
		}
		if s.archive != nil {
			archive, err := db.ArchiveFromRecord(record, s.now())
			if err != nil {
				return fmt.Errorf("build archive: %w", err)
			}
			s.archive.QueueArchive(archive, func(err error) {
				if err != nil {
					s.logger.Warn("Session archive failed", zap.String("session_id", record.ID), zap.Error(err))
				}
			})
		}
		return nil
	})
}

func (s *Service) counter() compression.TokenCounter {
	if s.count != nil {
		return s.count
	}
	return util.EstimateTokens
}
