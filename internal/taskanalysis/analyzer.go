package taskanalysis

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

const (
	maxDomains        = 5
	domainKeepRatio   = 0.2
	maxEntities       = 10
	maxQueries        = 4
	minQueries        = 2
	maxQueryLength    = 300
	phraseWeight      = 2.0
	densityBonus      = 0.5
	longTaskWords     = 50
	veryLongTaskWords = 100
)

type keywordMatcher struct {
	phrase string
	re     *regexp.Regexp
}

// score returns the weighted hit score for this keyword against lower-case text
func (m keywordMatcher) score(lower string) float64 {
	if m.re == nil {
		if strings.Contains(lower, m.phrase) {
			return phraseWeight
		}
		return 0
	}
	n := len(m.re.FindAllStringIndex(lower, -1))
	if n == 0 {
		return 0
	}
	return 1 + densityBonus*float64(n-1)
}

func (m keywordMatcher) matches(lower string) bool {
	if m.re == nil {
		return strings.Contains(lower, m.phrase)
	}
	return m.re.MatchString(lower)
}

func newMatcher(kw string) keywordMatcher {
	kw = strings.ToLower(kw)
	if strings.Contains(kw, " ") {
		return keywordMatcher{phrase: kw}
	}
	return keywordMatcher{phrase: kw, re: regexp.MustCompile(`\b` + regexp.QuoteMeta(kw) + `\b`)}
}

func newMatchers(kws []string) []keywordMatcher {
	out := make([]keywordMatcher, 0, len(kws))
	for _, kw := range kws {
		out = append(out, newMatcher(kw))
	}
	return out
}

var (
	domainMatchers      = map[Domain][]keywordMatcher{}
	integrationMatchers = newMatchers(integrationKeywords)
	expertMatchers      = newMatchers(expertKeywords)
	pluralMatchers      = newMatchers(pluralKeywords)
	performanceMatchers = newMatchers(performanceKeywords)
	simpleMatchers      = newMatchers(simpleKeywords)
	exampleMatchers     = newMatchers(exampleKeywords)
)

func init() {
	for d, kws := range DomainKeywords {
		domainMatchers[d] = newMatchers(kws)
	}
}

// DomainHits counts the keywords of d found in text
func DomainHits(d Domain, text string) int {
	return countMatches(domainMatchers[d], strings.ToLower(text))
}

// Analyze classifies a task description. It never fails; empty or garbage input degrades to
// OTHER / GENERAL / LOW.
func Analyze(task string) Analysis {
	cleaned := strings.Join(strings.Fields(task), " ")
	lower := strings.ToLower(cleaned)
	wordCount := len(strings.Fields(lower))

	domains := ClassifyDomains(lower, wordCount)
	taskType := DetectTaskType(lower)
	complexity := AssessComplexity(lower, wordCount, domains)
	entities := ExtractEntities(cleaned)
	queries := GenerateQueries(cleaned, taskType, domains, entities)

	return Analysis{
		TaskType:               taskType,
		Complexity:             complexity,
		Domains:                domains,
		KeyEntities:            entities,
		SuggestedSearchQueries: queries,
		EstimatedTokenBudget:   TokenBudget(complexity),
		Confidence:             confidence(cleaned, taskType, domains, entities),
	}
}

// ClassifyDomains scores every domain against lower-case text and keeps the strong ones
func ClassifyDomains(lower string, wordCount int) []Domain {
	if wordCount < 1 {
		return []Domain{DomainGeneral}
	}
	norm := 1 / math.Sqrt(float64(wordCount))

	type scored struct {
		domain Domain
		score  float64
		order  int
	}
	var hits []scored
	top := 0.0
	for i, d := range domainOrder {
		raw := 0.0
		for _, m := range domainMatchers[d] {
			raw += m.score(lower)
		}
		if raw <= 0 {
			continue
		}
		s := raw * norm
		hits = append(hits, scored{domain: d, score: s, order: i})
		if s > top {
			top = s
		}
	}
	if len(hits) == 0 {
		return []Domain{DomainGeneral}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	out := make([]Domain, 0, maxDomains)
	for _, h := range hits {
		if h.score < top*domainKeepRatio {
			continue
		}
		out = append(out, h.domain)
		if len(out) == maxDomains {
			break
		}
	}
	return out
}

// DetectTaskType returns the type whose pattern family has the most hits
func DetectTaskType(lower string) TaskType {
	best := TaskOther
	bestHits := 0
	for _, family := range taskTypeTable {
		hits := 0
		for _, re := range family.patterns {
			hits += len(re.FindAllStringIndex(lower, -1))
		}
		// strict > keeps the earlier family on ties
		if hits > bestHits {
			best = family.taskType
			bestHits = hits
		}
	}
	return best
}

// AssessComplexity sums the complexity signals and maps the total to a tier
func AssessComplexity(lower string, wordCount int, domains []Domain) Complexity {
	score := 0
	for _, d := range domains {
		if d != DomainGeneral {
			score += 2
		}
	}
	score += 2 * countMatches(integrationMatchers, lower)
	score += 4 * countMatches(expertMatchers, lower)
	if wordCount > longTaskWords {
		score += 2
	}
	if wordCount > veryLongTaskWords {
		score += 2
	}
	if countMatches(pluralMatchers, lower) > 0 {
		score++
	}
	if countMatches(performanceMatchers, lower) > 0 {
		score += 2
	}
	if countMatches(simpleMatchers, lower) > 0 {
		score -= 3
	}
	if countMatches(exampleMatchers, lower) > 0 {
		score -= 2
	}

	switch {
	case score <= 2:
		return ComplexityLow
	case score <= 6:
		return ComplexityMedium
	case score <= 12:
		return ComplexityHigh
	default:
		return ComplexityExpert
	}
}

func countMatches(ms []keywordMatcher, lower string) int {
	n := 0
	for _, m := range ms {
		if m.matches(lower) {
			n++
		}
	}
	return n
}

// ExtractEntities pulls named things out of the original-case text
func ExtractEntities(text string) []string {
	var candidates []string
	for _, re := range []*regexp.Regexp{titleCaseRe, hyphenatedRe, camelCaseRe, acronymRe} {
		candidates = append(candidates, re.FindAllString(text, -1)...)
	}

	lower := strings.ToLower(text)
	for _, c := range technicalCompounds {
		if strings.Contains(lower, c) {
			candidates = append(candidates, c)
		}
	}
	candidates = append(candidates, ngrams(text)...)

	// case-insensitive dedup, first spelling wins
	seen := make(map[string]bool, len(candidates))
	unique := make([]string, 0, len(candidates))
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}

	// longest first, so every entity that could contain c has already been decided
	sort.SliceStable(unique, func(i, j int) bool { return len(unique[i]) > len(unique[j]) })
	kept := make([]string, 0, maxEntities)
	for _, c := range unique {
		if len(kept) == maxEntities {
			break
		}
		key := strings.ToLower(c)
		contained := false
		for _, k := range kept {
			if len(k) > len(c) && strings.Contains(strings.ToLower(k), key) {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, c)
		}
	}
	return kept
}

// ngrams returns stop-word free bigrams and trigrams
func ngrams(text string) []string {
	raw := wordRe.FindAllString(text, -1)
	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimRight(t, ".-/+#"))
		tokens = append(tokens, t)
	}
	usable := func(t string) bool {
		return len(t) >= 3 && !util.IsStopWord(t) && !requestWords[t]
	}

	var out []string
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			ok := true
			for _, t := range tokens[i : i+n] {
				if !usable(t) {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, strings.Join(tokens[i:i+n], " "))
			}
		}
	}
	return out
}

// GenerateQueries derives 2-4 distinct search queries
func GenerateQueries(cleaned string, taskType TaskType, domains []Domain, entities []string) []string {
	typeLabel := strings.ToLower(string(taskType))
	topDomain := DomainGeneral
	if len(domains) > 0 {
		topDomain = domains[0]
	}
	topEntity := ""
	if len(entities) > 0 {
		topEntity = entities[0]
	}

	var candidates []string
	candidates = append(candidates, util.TruncateString(cleaned, maxQueryLength, true))
	if len(entities) > 0 {
		n := len(entities)
		if n > 3 {
			n = 3
		}
		candidates = append(candidates, topDomain.Label()+" "+strings.Join(entities[:n], " "))
		candidates = append(candidates, "how to "+typeLabel+" "+topEntity)
	}
	if len(domains) >= 2 {
		candidates = append(candidates, strings.TrimSpace(
			"best practices "+domains[0].Label()+" and "+domains[1].Label()+" "+topEntity))
	}

	queries := make([]string, 0, maxQueries)
	seen := map[string]bool{}
	add := func(q string) {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] || len(queries) >= maxQueries {
			return
		}
		seen[key] = true
		queries = append(queries, q)
	}
	for _, c := range candidates {
		add(c)
	}

	fallbacks := []string{
		typeLabel + " " + util.TruncateString(cleaned, maxQueryLength, true),
		topDomain.Label() + " " + typeLabel,
		typeLabel + " best practices",
	}
	for _, f := range fallbacks {
		if len(queries) >= minQueries {
			break
		}
		add(f)
	}
	return queries
}

func confidence(cleaned string, taskType TaskType, domains []Domain, entities []string) float64 {
	c := 0.3
	if taskType != TaskOther {
		c += 0.2
	}
	specific := 0
	for _, d := range domains {
		if d != DomainGeneral {
			specific++
		}
	}
	if specific >= 1 {
		c += 0.2
	}
	if specific >= 2 {
		c += 0.1
	}
	if len(entities) >= 2 {
		c += 0.1
	}
	if len(entities) >= 5 {
		c += 0.1
	}
	if len(cleaned) > 20 {
		c += 0.05
	}
	if len(cleaned) > 50 {
		c += 0.05
	}
	return math.Min(1.0, c)
}
