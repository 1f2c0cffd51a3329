package websearch

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// CleanSnippet strips markup from provider snippets and collapses whitespace
func CleanSnippet(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(strictPolicy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}
