package util

import (
	"sort"
	"strings"
	"unicode"
)

// EstimateTokens approximates token usage as 1.3 tokens per whitespace separated word.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 13 / 10
}

// TruncateWords keeps at most n whitespace separated words of s.
func TruncateWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ")
}

// Words lower-cases s and splits it on anything that is not a letter or digit.
func Words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var englishStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true, "you": true,
	"all": true, "any": true, "can": true, "had": true, "her": true, "was": true, "one": true,
	"our": true, "out": true, "has": true, "have": true, "his": true, "how": true, "its": true,
	"may": true, "new": true, "now": true, "see": true, "two": true, "way": true, "who": true,
	"did": true, "get": true, "let": true, "put": true, "say": true, "she": true, "too": true,
	"use": true, "that": true, "with": true, "this": true, "from": true, "they": true,
	"will": true, "would": true, "there": true, "their": true, "what": true, "about": true,
	"which": true, "when": true, "make": true, "like": true, "time": true, "just": true,
	"know": true, "take": true, "into": true, "your": true, "some": true, "could": true,
	"them": true, "than": true, "then": true, "only": true, "also": true, "over": true,
	"such": true, "been": true, "were": true, "more": true, "most": true, "very": true,
	"should": true, "these": true, "those": true, "each": true, "other": true, "where": true,
	"while": true, "being": true, "does": true, "here": true, "must": true, "using": true,
	"used": true, "uses": true, "via": true, "per": true, "both": true, "many": true,
	"much": true, "need": true, "needs": true, "want": true, "within": true, "without": true,
	"after": true, "before": true, "because": true, "between": true, "through": true,
	"onto": true, "shall": true, "might": true, "why": true, "every": true,
}

// IsStopWord reports whether the lower-case word carries no topical signal.
func IsStopWord(w string) bool {
	return englishStopWords[w]
}

// ContentWords returns the lower-case words of s that are at least minLen runes long and
// not stop words, in order of appearance and with duplicates removed.
func ContentWords(s string, minLen int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range Words(s) {
		if len([]rune(w)) < minLen || englishStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// TopKeywords returns the n most frequent content words of s. Ties keep first appearance order.
func TopKeywords(s string, n int) []string {
	if n <= 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, w := range Words(s) {
		if len([]rune(w)) < 3 || englishStopWords[w] || isNumeric(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Shingles returns the set of k-word shingles of s.
func Shingles(s string, k int) map[string]struct{} {
	words := Words(s)
	out := make(map[string]struct{})
	if k <= 0 {
		return out
	}
	if len(words) < k {
		if len(words) > 0 {
			out[strings.Join(words, " ")] = struct{}{}
		}
		return out
	}
	for i := 0; i+k <= len(words); i++ {
		out[strings.Join(words[i:i+k], " ")] = struct{}{}
	}
	return out
}

// Jaccard is |a ∩ b| / |a ∪ b|; two empty sets are not similar.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func isNumeric(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return w != ""
}
