package gaps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/taskanalysis"
)

var now = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func newTestAnalyzer(t *testing.T) *Analyzer {
	return NewAnalyzer(zaptest.NewLogger(t), func() time.Time { return now })
}

func sc(id string, score float64, content string, meta map[string]interface{}) models.ScoredChunk {
	return models.ScoredChunk{ChunkID: id, DocumentID: "doc-" + id, Content: content, FinalScore: score, Metadata: meta}
}

func jwtAnalysis() taskanalysis.Analysis {
	return taskanalysis.Analyze("Implement JWT authentication for the API")
}

func TestAnalyze_NoChunksIsCritical(t *testing.T) {
	a := newTestAnalyzer(t)
	report := a.Analyze(jwtAnalysis(), nil, true)

	require.Len(t, report.Gaps, 1)
	g := report.Gaps[0]
	assert.Equal(t, GapNoContext, g.Type)
	assert.Equal(t, SeverityCritical, g.Severity)
	assert.Equal(t, []taskanalysis.Domain{taskanalysis.DomainSecurity, taskanalysis.DomainBackend}, g.AffectedDomains)
	assert.Len(t, g.SuggestedQueries, 2)
	assert.True(t, report.IsActionable)
	assert.Equal(t, 0.0, report.OverallCoverage)
	assert.Equal(t, 0.0, report.EstimatedQualityWithoutFilling)
	assert.Equal(t, 0.3, report.EstimatedQualityWithFilling)
}

func TestAnalyze_NotActionableWithoutWeb(t *testing.T) {
	report := newTestAnalyzer(t).Analyze(jwtAnalysis(), nil, false)
	assert.False(t, report.IsActionable)
	assert.Equal(t, report.EstimatedQualityWithoutFilling, report.EstimatedQualityWithFilling)
}

func TestAnalyze_MissingDomain(t *testing.T) {
	chunks := []models.ScoredChunk{
		sc("1", 0.9, "The API gateway routes every endpoint through middleware.", nil),
		sc("2", 0.8, "REST handlers return JSON for the jwt authentication flow.", nil),
	}
	analysis := jwtAnalysis()
	analysis.Domains = []taskanalysis.Domain{taskanalysis.DomainBackend, taskanalysis.DomainDevOps}

	report := newTestAnalyzer(t).Analyze(analysis, chunks, true)
	require.Len(t, report.Gaps, 1)
	g := report.Gaps[0]
	assert.Equal(t, GapMissingDomain, g.Type)
	assert.Equal(t, SeverityMedium, g.Severity)
	assert.Equal(t, []taskanalysis.Domain{taskanalysis.DomainDevOps}, g.AffectedDomains)
	assert.Equal(t, []string{"devops jwt authentication", "devops best practices"}, g.SuggestedQueries)
	assert.True(t, report.IsActionable)
	// half the domains, all entities: 0.7*0.5 + 0.3*1
	assert.Equal(t, 0.65, report.OverallCoverage)
}

func TestAnalyze_MetadataTagsCountAsCoverage(t *testing.T) {
	chunks := []models.ScoredChunk{
		sc("1", 0.9, "Our token issuer signs with RS256 and the API validates jwt authentication.", nil),
		sc("2", 0.7, "Pipelines run nightly.", map[string]interface{}{models.MetaTags: []string{"ops", "devops"}}),
		sc("3", 0.7, "Runbook for the platform team.", map[string]interface{}{models.MetaDomain: "devops"}),
	}
	analysis := jwtAnalysis()
	analysis.Domains = []taskanalysis.Domain{taskanalysis.DomainSecurity, taskanalysis.DomainDevOps}
	analysis.TaskType = taskanalysis.TaskResearch

	report := newTestAnalyzer(t).Analyze(analysis, chunks, true)
	assert.Empty(t, report.Gaps)
	assert.False(t, report.IsActionable)
	assert.Equal(t, 1.0, report.OverallCoverage)
}

func TestAnalyze_ShallowAndOutdated(t *testing.T) {
	old := now.AddDate(-2, 0, 0).Format(time.RFC3339)
	chunks := []models.ScoredChunk{
		sc("1", 0.4, "Passwords are hashed with bcrypt.", map[string]interface{}{models.MetaUpdatedAt: old}),
	}
	analysis := taskanalysis.Analysis{
		TaskType: taskanalysis.TaskResearch,
		Domains:  []taskanalysis.Domain{taskanalysis.DomainSecurity},
	}

	report := newTestAnalyzer(t).Analyze(analysis, chunks, true)
	require.Len(t, report.Gaps, 2)
	assert.Equal(t, GapShallowCoverage, report.Gaps[0].Type)
	assert.Equal(t, GapOutdatedInfo, report.Gaps[1].Type)
	assert.Equal(t, []string{"security research 2026"}, report.Gaps[1].SuggestedQueries)
	assert.Equal(t, 0.5, report.OverallCoverage)
}

func TestAnalyze_FreshChunkPreventsOutdated(t *testing.T) {
	chunks := []models.ScoredChunk{
		sc("1", 0.9, "TLS certificates rotate monthly.", map[string]interface{}{models.MetaUpdatedAt: now.AddDate(-3, 0, 0)}),
		sc("2", 0.9, "Encryption keys live in the vault.", map[string]interface{}{models.MetaUpdatedAt: now.AddDate(0, -1, 0)}),
	}
	analysis := taskanalysis.Analysis{TaskType: taskanalysis.TaskResearch, Domains: []taskanalysis.Domain{taskanalysis.DomainSecurity}}

	report := newTestAnalyzer(t).Analyze(analysis, chunks, true)
	assert.Empty(t, report.Gaps)
}

func TestAnalyze_MissingExamplesForCoding(t *testing.T) {
	prose := []models.ScoredChunk{
		sc("1", 0.9, "Security review notes: tokens expire after an hour.", nil),
		sc("2", 0.9, "The API layer is owned by the platform team.", nil),
	}
	analysis := jwtAnalysis()

	report := newTestAnalyzer(t).Analyze(analysis, prose, true)
	var examples *Gap
	for i := range report.Gaps {
		if report.Gaps[i].Type == GapMissingExamples {
			examples = &report.Gaps[i]
		}
	}
	require.NotNil(t, examples)
	assert.Equal(t, []string{"jwt authentication code example"}, examples.SuggestedQueries)

	withCode := append(prose, sc("3", 0.8, "func verify(token string) error {\n\treturn nil\n}", nil))
	report = newTestAnalyzer(t).Analyze(analysis, withCode, true)
	for _, g := range report.Gaps {
		assert.NotEqual(t, GapMissingExamples, g.Type)
	}
}

func TestAnalyze_GeneralOnlyTask(t *testing.T) {
	analysis := taskanalysis.Analyze("")
	report := newTestAnalyzer(t).Analyze(analysis, []models.ScoredChunk{sc("1", 0.6, "anything", nil)}, true)
	assert.Empty(t, report.Gaps)
	assert.Equal(t, 1.0, report.OverallCoverage)
	assert.Equal(t, 0.8, report.EstimatedQualityWithoutFilling)
}

func TestReportQueriesAndSummary(t *testing.T) {
	r := Report{Gaps: []Gap{
		{Type: GapMissingDomain, SuggestedQueries: []string{"a", "b"}},
		{Type: GapMissingDomain, SuggestedQueries: []string{"b", "c"}},
		{Type: GapOutdatedInfo},
	}}
	assert.Equal(t, []string{"a", "b", "c"}, r.Queries())
	assert.Equal(t, map[GapType]int{GapMissingDomain: 2, GapOutdatedInfo: 1}, r.Summary())
}
