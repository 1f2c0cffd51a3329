package gaps

import "github.com/Kocoro-lab/Shannon/go/tailor/internal/taskanalysis"

// GapType is the kind of coverage problem
type GapType string

const (
	GapMissingDomain   GapType = "MISSING_DOMAIN"
	GapShallowCoverage GapType = "SHALLOW_COVERAGE"
	GapOutdatedInfo    GapType = "OUTDATED_INFO"
	GapMissingExamples GapType = "MISSING_EXAMPLES"
	GapNoContext       GapType = "NO_CONTEXT"
)

// Severity of a gap
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// uplift is how much quality filling a gap of this severity is expected to recover
func (s Severity) uplift() float64 {
	switch s {
	case SeverityCritical:
		return 0.3
	case SeverityHigh:
		return 0.2
	case SeverityMedium:
		return 0.1
	default:
		return 0.05
	}
}

// Gap is one task requirement the retrieved material does not cover well
type Gap struct {
	Type             GapType               `json:"type"`
	Severity         Severity              `json:"severity"`
	Description      string                `json:"description"`
	AffectedDomains  []taskanalysis.Domain `json:"affected_domains"`
	SuggestedActions []string              `json:"suggested_actions"`
	SuggestedQueries []string              `json:"suggested_queries"`
}

// Report is the gap analysis of one request
type Report struct {
	Gaps                           []Gap   `json:"gaps"`
	OverallCoverage                float64 `json:"overall_coverage"`
	IsActionable                   bool    `json:"is_actionable"`
	EstimatedQualityWithoutFilling float64 `json:"estimated_quality_without_filling"`
	EstimatedQualityWithFilling    float64 `json:"estimated_quality_with_filling"`
}

// Queries returns the suggested queries of all gaps, deduplicated, most severe gaps first
func (r Report) Queries() []string {
	seen := make(map[string]bool)
	var out []string
	for _, g := range r.Gaps {
		for _, q := range g.SuggestedQueries {
			if !seen[q] {
				seen[q] = true
				out = append(out, q)
			}
		}
	}
	return out
}

// Summary counts gaps per type
func (r Report) Summary() map[GapType]int {
	out := make(map[GapType]int, len(r.Gaps))
	for _, g := range r.Gaps {
		out[g.Type]++
	}
	return out
}
