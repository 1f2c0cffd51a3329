package util

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		maxLen        int
		preserveWords bool
		want          string
	}{
		{"short input unchanged", "jwt auth", 20, true, "jwt auth"},
		{"zero length", "anything", 0, false, ""},
		{"tiny limit", "anything", 2, false, ".."},
		{"hard cut", "implement authentication", 10, false, "impleme..."},
		{"word boundary", "implement jwt authentication", 16, true, "implement..."},
		{"no space falls back to hard cut", "authentication", 8, true, "authe..."},
		{"multibyte runes", "查询中文数据库中的用户信息", 6, false, "查询中..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateString(tt.input, tt.maxLen, tt.preserveWords)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
			assert.LessOrEqual(t, utf8.RuneCountInString(got), max(tt.maxLen, 0))
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens("   "))
	assert.Equal(t, 13, EstimateTokens("one two three four five six seven eight nine ten"))
}

func TestTruncateWords(t *testing.T) {
	assert.Equal(t, "a b", TruncateWords("a  b\nc", 2))
	assert.Equal(t, "a b c", TruncateWords("a b c", 5))
	assert.Empty(t, TruncateWords("a b c", 0))
}

func TestContentWordsAndKeywords(t *testing.T) {
	words := ContentWords("Implement the JWT auth, and test the JWT middleware", 3)
	assert.Equal(t, []string{"implement", "jwt", "auth", "test", "middleware"}, words)

	assert.Equal(t, []string{"jwt", "token"}, TopKeywords("JWT token; JWT refresh token; JWT 2024", 2))
	assert.Nil(t, TopKeywords("jwt", 0))
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("redis"))
	assert.True(t, IsStopWord("every"))
	assert.False(t, IsStopWord("implement"), "request verbs are filtered by task analysis only")
}

func TestShinglesJaccard(t *testing.T) {
	a := Shingles("rate limiting with redis", 2)
	b := Shingles("rate limiting with memcached", 2)
	assert.Len(t, a, 3)
	assert.InDelta(t, 0.5, Jaccard(a, b), 1e-9)
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Zero(t, Jaccard(a, map[string]struct{}{}))
	assert.Len(t, Shingles("one", 3), 1)
}
