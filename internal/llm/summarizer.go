package llm

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

// ErrEmptySummary means the service answered without text
var ErrEmptySummary = errors.New("llm: empty summary")

// Summarizer condenses chunk text through /context/compress
type Summarizer struct {
	c *client
}

var _ models.Summarizer = (*Summarizer)(nil)

// NewSummarizer creates the HTTP summarizer
func NewSummarizer(cfg Config, logger *zap.Logger) *Summarizer {
	return &Summarizer{c: newClient(cfg, "llm-summarize", logger)}
}

type compressMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compressRequest struct {
	Messages     []compressMessage `json:"messages"`
	TargetTokens int               `json:"target_tokens"`
}

// Summarize returns a summary of text aiming at maxTokens
func (s *Summarizer) Summarize(ctx context.Context, text string, maxTokens int) (string, error) {
	req := compressRequest{
		Messages:     []compressMessage{{Role: "user", Content: text}},
		TargetTokens: maxTokens,
	}
	var out struct {
		Summary string `json:"summary"`
	}
	if err := s.c.post(ctx, "summarize", "/context/compress", req, &out); err != nil {
		return "", err
	}
	summary := strings.TrimSpace(out.Summary)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}

// IsCircuitBreakerOpen reports whether the summarize breaker is open
func (s *Summarizer) IsCircuitBreakerOpen() bool { return s.c.IsCircuitBreakerOpen() }
