package quality

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

var agentHints = [4]string{
	"Mention the project's stack and the agent's role explicitly in the generated configuration",
	"Add more concrete conventions with file paths, commands or code identifiers",
	"Draw on more configuration sources such as READMEs, lint configs and CI files",
	"Provide more project context so the configuration can go beyond generic advice",
}

// codePatternRe spots code-like fragments inside a convention
var codePatternRe = regexp.MustCompile("`[^`]+`|\\w+\\(\\)|\\.(go|py|ts|tsx|js|rs|java|yaml|yml|json|toml)\\b|--[a-z][a-z-]+|\\$ \\w+")

// ConfigSource is one input an agent configuration was generated from
type ConfigSource struct {
	Name string
	Type string
}

// AgentConfigInput is what the agent-config variant scores
type AgentConfigInput struct {
	Stack         []string
	Role          string
	Conventions   []string
	Sources       []ConfigSource
	ContextChunks []string
	Generated     string
}

// ScoreAgentConfig scores a generated agent configuration
func (s *Scorer) ScoreAgentConfig(in AgentConfigInput) Score {
	sub := SubScores{
		Coverage:    StackCoverage(in.Stack, in.Role, in.Generated),
		Relevance:   Specificity(in.Conventions),
		Diversity:   ConfigSourceDiversity(in.Sources),
		Compression: ContextDepth(in.ContextChunks),
	}
	score := s.finish(sub, AgentConfigWeights, VariantAgentConfig, agentHints)

	s.logger.Debug("Scored agent configuration",
		zap.Int("overall", score.Overall),
		zap.Float64("stack_coverage", sub.Coverage),
		zap.Float64("specificity", sub.Relevance),
		zap.Float64("source_diversity", sub.Diversity),
		zap.Float64("context_depth", sub.Compression),
	)
	return score
}

// StackCoverage is the fraction of stack and role keywords found in the generated text
func StackCoverage(stack []string, role, generated string) float64 {
	keywords := util.ContentWords(strings.Join(append(append([]string{}, stack...), role), " "), 2)
	if len(keywords) == 0 {
		return 1
	}
	lower := strings.ToLower(generated)
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

// Specificity combines how many conventions there are (0.4), how detailed they are on
// average (0.3) and how many reference code (0.3)
func Specificity(conventions []string) float64 {
	if len(conventions) == 0 {
		return 0
	}
	count := float64(len(conventions)) / 8
	if count > 1 {
		count = 1
	}

	totalLen, withCode := 0, 0
	for _, c := range conventions {
		totalLen += len(strings.TrimSpace(c))
		if codePatternRe.MatchString(c) {
			withCode++
		}
	}
	avg := float64(totalLen) / float64(len(conventions)) / 80
	if avg > 1 {
		avg = 1
	}
	code := float64(withCode) / float64(len(conventions))

	return 0.4*count + 0.3*avg + 0.3*code
}

// ConfigSourceDiversity scores distinct sources (1 → 0.3, 2 → 0.6, 3+ → 0.8) plus 0.2 for
// two or more source types
func ConfigSourceDiversity(sources []ConfigSource) float64 {
	names := make(map[string]bool)
	types := make(map[string]bool)
	for _, s := range sources {
		if s.Name == "" {
			continue
		}
		names[s.Name] = true
		if s.Type != "" {
			types[strings.ToLower(s.Type)] = true
		}
	}

	var score float64
	switch n := len(names); {
	case n == 0:
		return 0
	case n == 1:
		score = 0.3
	case n == 2:
		score = 0.6
	default:
		score = 0.8
	}
	if len(types) >= 2 {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// ContextDepth buckets the character volume of the context chunks with diminishing returns
func ContextDepth(chunks []string) float64 {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	switch {
	case total == 0:
		return 0
	case total < 1000:
		return 0.3
	case total < 5000:
		return 0.6
	case total < 20000:
		return 0.85
	default:
		return 1
	}
}
