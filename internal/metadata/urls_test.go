package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"basic URL", "https://example.com/path", "https://example.com/path"},
		{"remove www prefix", "https://www.example.com/path", "https://example.com/path"},
		{"remove trailing slash", "https://example.com/path/", "https://example.com/path"},
		{"remove fragment", "https://example.com/path#section", "https://example.com/path"},
		{"remove utm parameters", "https://example.com/path?utm_source=google&utm_medium=cpc&id=123", "https://example.com/path?id=123"},
		{"remove fbclid", "https://example.com/path?fbclid=xyz123", "https://example.com/path"},
		{"lowercase scheme and host", "HTTPS://EXAMPLE.COM/Path", "https://example.com/Path"},
		{"root slash", "https://example.com/", "https://example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NormalizeURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	_, err := NormalizeURL("http://[::1")
	assert.Error(t, err)
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple domain", "https://example.com/path", "example.com"},
		{"subdomain", "https://blog.example.com/path", "blog.example.com"},
		{"remove www", "https://www.example.com/path", "example.com"},
		{"with port", "https://example.com:8080/path", "example.com"},
		{"mixed case", "https://Example.COM/path", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ExtractDomain(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestScoreCredibility(t *testing.T) {
	tests := []struct {
		domain   string
		expected float64
	}{
		{"mit.edu", 0.85},
		{"nasa.gov", 0.80},
		{"arxiv.org", 0.85},
		{"github.com", 0.75},
		{"docs.github.com", 0.75},
		{"notgithub.com", 0.60},
		{"stackoverflow.com", 0.65},
		{"twitter.com", 0.50},
		{"random-blog.com", 0.60},
		{"MIT.EDU", 0.85},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.expected, ScoreCredibility(tt.domain))
		})
	}
}

func TestAuthorityForURL(t *testing.T) {
	assert.Equal(t, 0.75, AuthorityForURL("https://www.github.com/org/repo"))
	assert.Equal(t, DefaultCredibilityScore, AuthorityForURL("::not a url"))
}
