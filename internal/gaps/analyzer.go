package gaps

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/taskanalysis"
)

const (
	// a domain backed by a single chunk below this score is shallow
	weakChunkScore = 0.5
	staleAfter     = 365 * 24 * time.Hour
	queriesPerGap  = 2
)

// codeLikeRe spots chunks that carry code rather than prose
var codeLikeRe = regexp.MustCompile("```|\\bfunc\\s+\\w+\\(|\\bdef\\s+\\w+\\(|\\bclass\\s+\\w+|=>|\\bimport\\s+[\\w\"{(]|\\w+\\([^)]*\\)\\s*\\{|;\\s*$|^\\s*(\\$|#!)")

var actions = map[GapType][]string{
	GapNoContext: {
		"Upload project documents related to the task",
		"Enable web search to pull in public material",
	},
	GapMissingDomain: {
		"Add documentation covering the missing area",
		"Enable web search for the missing area",
	},
	GapShallowCoverage: {
		"Add more detailed material on this area",
	},
	GapOutdatedInfo: {
		"Refresh the affected documents",
		"Check current upstream documentation",
	},
	GapMissingExamples: {
		"Add code samples or snippets from the project",
		"Search for reference implementations",
	},
}

// Analyzer compares retrieved chunks with what a task needs
type Analyzer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewAnalyzer creates an analyzer. A nil clock uses time.Now.
func NewAnalyzer(logger *zap.Logger, clock func() time.Time) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Analyzer{logger: logger, now: clock}
}

type domainCoverage struct {
	chunks []models.ScoredChunk
}

// Analyze reports the gaps between the analysis and the chunks retrieved so far.
// The report is actionable only when webEnabled and some gap suggests queries.
func (a *Analyzer) Analyze(analysis taskanalysis.Analysis, chunks []models.ScoredChunk, webEnabled bool) Report {
	domains := specificDomains(analysis.Domains)
	topEntity := firstOr(analysis.KeyEntities, strings.ToLower(string(analysis.TaskType)))

	var gaps []Gap
	if len(chunks) == 0 {
		gaps = append(gaps, Gap{
			Type:             GapNoContext,
			Severity:         SeverityCritical,
			Description:      "No project material matched the task",
			AffectedDomains:  domains,
			SuggestedActions: actions[GapNoContext],
			SuggestedQueries: capQueries(analysis.SuggestedSearchQueries),
		})
		return a.finish(gaps, 0, chunks, webEnabled)
	}

	now := a.now()
	covered := 0.0
	for i, d := range domains {
		cov := coverageOf(d, chunks)
		label := d.Label()

		switch {
		case len(cov.chunks) == 0:
			sev := SeverityMedium
			if i == 0 {
				sev = SeverityHigh
			}
			gaps = append(gaps, Gap{
				Type:             GapMissingDomain,
				Severity:         sev,
				Description:      fmt.Sprintf("Nothing retrieved covers %s", label),
				AffectedDomains:  []taskanalysis.Domain{d},
				SuggestedActions: actions[GapMissingDomain],
				SuggestedQueries: capQueries([]string{
					label + " " + topEntity,
					label + " best practices",
				}),
			})
			continue
		case len(cov.chunks) == 1 && cov.chunks[0].FinalScore < weakChunkScore:
			covered += 0.5
			gaps = append(gaps, Gap{
				Type:             GapShallowCoverage,
				Severity:         SeverityLow,
				Description:      fmt.Sprintf("Only one weak match covers %s", label),
				AffectedDomains:  []taskanalysis.Domain{d},
				SuggestedActions: actions[GapShallowCoverage],
				SuggestedQueries: capQueries([]string{label + " " + topEntity + " guide"}),
			})
		default:
			covered++
		}

		if stale, oldest := allStale(cov.chunks, now); stale {
			gaps = append(gaps, Gap{
				Type:             GapOutdatedInfo,
				Severity:         SeverityLow,
				Description:      fmt.Sprintf("Material on %s was last updated %s", label, oldest.Format("2006-01-02")),
				AffectedDomains:  []taskanalysis.Domain{d},
				SuggestedActions: actions[GapOutdatedInfo],
				SuggestedQueries: capQueries([]string{fmt.Sprintf("%s %s %d", label, topEntity, now.Year())}),
			})
		}
	}

	missing := unmentioned(analysis.KeyEntities, chunks)
	if analysis.TaskType == taskanalysis.TaskCoding && len(missing) > 0 && !anyCodeLike(chunks) {
		var queries []string
		for _, e := range missing {
			queries = append(queries, e+" code example")
		}
		gaps = append(gaps, Gap{
			Type:             GapMissingExamples,
			Severity:         SeverityMedium,
			Description:      "No code examples for " + strings.Join(missing, ", "),
			AffectedDomains:  domains,
			SuggestedActions: actions[GapMissingExamples],
			SuggestedQueries: capQueries(queries),
		})
	}

	coverage := 1.0
	if len(domains) > 0 {
		coverage = covered / float64(len(domains))
	}
	if n := len(analysis.KeyEntities); n > 0 {
		coverage = 0.7*coverage + 0.3*float64(n-len(missing))/float64(n)
	}
	return a.finish(gaps, coverage, chunks, webEnabled)
}

func (a *Analyzer) finish(gaps []Gap, coverage float64, chunks []models.ScoredChunk, webEnabled bool) Report {
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].Severity.rank() > gaps[j].Severity.rank()
	})
	if gaps == nil {
		gaps = []Gap{}
	}

	report := Report{
		Gaps:            gaps,
		OverallCoverage: round2(models.Clamp01(coverage)),
	}

	uplift := 0.0
	for _, g := range gaps {
		if len(g.SuggestedQueries) > 0 {
			report.IsActionable = webEnabled
			uplift += g.Severity.uplift()
		}
	}

	without := 0.5*report.OverallCoverage + 0.5*meanScore(chunks)
	report.EstimatedQualityWithoutFilling = round2(without)
	report.EstimatedQualityWithFilling = report.EstimatedQualityWithoutFilling
	if report.IsActionable {
		report.EstimatedQualityWithFilling = round2(without + math.Min(uplift, 0.8*(1-without)))
	}

	a.logger.Debug("Gap analysis complete",
		zap.Int("gaps", len(gaps)),
		zap.Float64("coverage", report.OverallCoverage),
		zap.Bool("actionable", report.IsActionable),
	)
	return report
}

// coverageOf collects the chunks whose content or metadata plausibly covers d
func coverageOf(d taskanalysis.Domain, chunks []models.ScoredChunk) domainCoverage {
	var cov domainCoverage
	for _, c := range chunks {
		if taskanalysis.DomainHits(d, c.Content) > 0 || metadataNames(d, c.Metadata) {
			cov.chunks = append(cov.chunks, c)
		}
	}
	return cov
}

// metadataNames reports whether the "domain" or "tags" metadata names d
func metadataNames(d taskanalysis.Domain, meta map[string]interface{}) bool {
	if meta == nil {
		return false
	}
	matches := func(v string) bool {
		v = strings.TrimSpace(v)
		return strings.EqualFold(v, string(d)) || strings.EqualFold(v, d.Label())
	}
	if v, ok := meta[models.MetaDomain]; ok && matches(cast.ToString(v)) {
		return true
	}
	if v, ok := meta[models.MetaTags]; ok {
		tags, err := cast.ToStringSliceE(v)
		if err != nil {
			tags = strings.Split(cast.ToString(v), ",")
		}
		for _, t := range tags {
			if matches(t) {
				return true
			}
		}
	}
	return false
}

// allStale reports whether every chunk with an updated_at is older than a year, and at
// least one has one
func allStale(chunks []models.ScoredChunk, now time.Time) (bool, time.Time) {
	var oldest time.Time
	dated := 0
	for _, c := range chunks {
		raw, ok := c.Metadata[models.MetaUpdatedAt]
		if !ok {
			continue
		}
		ts, err := cast.ToTimeE(raw)
		if err != nil || ts.IsZero() {
			continue
		}
		dated++
		if now.Sub(ts) <= staleAfter {
			return false, time.Time{}
		}
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
	}
	return dated > 0, oldest
}

func unmentioned(entities []string, chunks []models.ScoredChunk) []string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString(strings.ToLower(c.Content))
		b.WriteByte('\n')
	}
	text := b.String()

	var out []string
	for _, e := range entities {
		if !strings.Contains(text, strings.ToLower(e)) {
			out = append(out, e)
		}
	}
	return out
}

func anyCodeLike(chunks []models.ScoredChunk) bool {
	for _, c := range chunks {
		for _, line := range strings.Split(c.Content, "\n") {
			if codeLikeRe.MatchString(line) {
				return true
			}
		}
	}
	return false
}

func specificDomains(ds []taskanalysis.Domain) []taskanalysis.Domain {
	out := []taskanalysis.Domain{}
	for _, d := range ds {
		if d != taskanalysis.DomainGeneral {
			out = append(out, d)
		}
	}
	return out
}

func meanScore(chunks []models.ScoredChunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	var sum float64
	for _, c := range chunks {
		sum += c.FinalScore
	}
	return models.Clamp01(sum / float64(len(chunks)))
}

func capQueries(qs []string) []string {
	out := []string{}
	for _, q := range qs {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" {
			continue
		}
		out = append(out, q)
		if len(out) == queriesPerGap {
			break
		}
	}
	return out
}

func firstOr(xs []string, fallback string) string {
	if len(xs) > 0 {
		return xs[0]
	}
	return fallback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
