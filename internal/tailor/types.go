package tailor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/degradation"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/gaps"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metadata"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/quality"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/synthesis"
)

// MaxTaskLength is the longest task accepted, in characters
const MaxTaskLength = 5000

// Request is one tailoring call. The caller is expected to have checked that UserID may
// read ProjectID.
type Request struct {
	Task             string `json:"task"`
	ProjectID        string `json:"project_id"`
	UserID           string `json:"user_id,omitempty"`
	TokenBudget      int    `json:"token_budget,omitempty"`
	IncludeWebSearch bool   `json:"include_web_search"`
	MaxChunks        int    `json:"max_chunks,omitempty"`
}

// ValidationError is returned for a request rejected before any stage runs
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Validate checks the request fields
func (r Request) Validate() error {
	task := strings.TrimSpace(r.Task)
	if task == "" {
		return &ValidationError{Field: "task", Message: "must not be empty"}
	}
	if utf8.RuneCountInString(task) > MaxTaskLength {
		return &ValidationError{Field: "task", Message: fmt.Sprintf("must be at most %d characters", MaxTaskLength)}
	}
	if strings.TrimSpace(r.ProjectID) == "" {
		return &ValidationError{Field: "project_id", Message: "is required"}
	}
	if r.TokenBudget < 0 {
		return &ValidationError{Field: "token_budget", Message: "must be positive"}
	}
	if r.MaxChunks < 0 {
		return &ValidationError{Field: "max_chunks", Message: "must not be negative"}
	}
	return nil
}

// Section is one labelled part of the assembled context
type Section struct {
	Name        string `json:"name"`
	Content     string `json:"content"`
	TokenCount  int    `json:"token_count"`
	SourceCount int    `json:"source_count"`
}

// Metadata describes how a context was built
type Metadata struct {
	TotalTokens      int                        `json:"total_tokens"`
	TokensUsed       int                        `json:"tokens_used"`
	ChunksRetrieved  int                        `json:"chunks_retrieved"`
	ChunksIncluded   int                        `json:"chunks_included"`
	WebChunks        int                        `json:"web_chunks"`
	GapReport        gaps.Report                `json:"gap_report"`
	CompressionStats compression.Stats          `json:"compression_stats"`
	ProcessingTimeMs int64                      `json:"processing_time_ms"`
	QualityScore     float64                    `json:"quality_score"`
	QualityDetails   *quality.Score             `json:"quality_details,omitempty"`
	Citations        []metadata.Citation        `json:"citations"`
	Contradictions   []synthesis.Contradiction  `json:"contradictions,omitempty"`
	Failures         []degradation.StageFailure `json:"failures,omitempty"`
	DegradationLevel degradation.Level          `json:"degradation_level"`
}

// Response is the tailored context returned to the caller
type Response struct {
	SessionID string    `json:"session_id"`
	Context   string    `json:"context"`
	Sections  []Section `json:"sections"`
	Metadata  Metadata  `json:"metadata"`
}

// PreviewResponse estimates a tailoring run without compressing or calling an LLM
type PreviewResponse struct {
	EstimatedTokens  int                  `json:"estimated_tokens"`
	EstimatedChunks  int                  `json:"estimated_chunks"`
	GapSummary       map[gaps.GapType]int `json:"gap_summary"`
	EstimatedQuality float64              `json:"estimated_quality"`
	ProcessingTimeMs int64                `json:"processing_time_ms"`
}
