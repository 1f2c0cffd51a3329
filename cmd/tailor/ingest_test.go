package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "README.md"), "# Auth\n\nTokens are signed with HS256.")
	writeFile(t, filepath.Join(dir, "docs", "guide.html"),
		`<html><head><title>Setup Guide</title></head><body><nav>menu</nav><main><h2>Install</h2><p>Run make.</p></main></body></html>`)
	writeFile(t, filepath.Join(dir, ".git", "HEAD.md"), "ref: main")
	writeFile(t, filepath.Join(dir, "logo.png"), "\x89PNG")
	writeFile(t, filepath.Join(dir, "empty.txt"), "   \n")

	fetcher := websearch.NewFetcher(websearch.FetcherConfig{}, zaptest.NewLogger(t))
	docs, err := collectDocuments([]string{dir}, "p1", "u1", fetcher)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byTitle := map[string]string{}
	for _, d := range docs {
		assert.Equal(t, "p1", d.ProjectID)
		assert.Equal(t, "u1", d.OwnerID)
		assert.False(t, d.UpdatedAt.IsZero())
		byTitle[d.Title] = d.Content
	}
	assert.Contains(t, byTitle["README.md"], "HS256")

	guide, ok := byTitle["Setup Guide"]
	require.True(t, ok, "html title should become the document title")
	assert.Contains(t, guide, "Install")
	assert.Contains(t, guide, "Run make.")
	assert.NotContains(t, guide, "menu")
}

func TestCollectDocuments_MissingPath(t *testing.T) {
	_, err := collectDocuments([]string{filepath.Join(t.TempDir(), "nope")}, "p1", "", websearch.NewFetcher(websearch.FetcherConfig{}, nil))
	assert.Error(t, err)
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "run", "ingest"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	run, _, _ := root.Find([]string{"run"})
	assert.NotNil(t, run.Flags().Lookup("preview"))
	assert.NotNil(t, run.Flags().Lookup("web"))
}
