package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/ingest"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/websearch"
)

// textExtensions are indexed as-is; .html and .htm are converted to markdown first
var textExtensions = map[string]bool{
	".md": true, ".markdown": true, ".txt": true, ".rst": true,
	".go": true, ".py": true, ".ts": true, ".js": true, ".java": true, ".rs": true,
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".sql": true,
}

func newIngestCmd() *cobra.Command {
	var (
		projectID   string
		ownerID     string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Index project documents into the vector collection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.configs.Current()
			logger := a.log.Logger
			fetcher := websearch.NewFetcher(cfg.WebSearch.Fetcher, logger)

			docs, err := collectDocuments(args, projectID, ownerID, fetcher)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				return fmt.Errorf("no supported documents under %s", strings.Join(args, ", "))
			}

			in := ingest.NewIngester(a.set.Index, a.set.Embedder, cfg.Embeddings.Chunking, cfg.Pipeline.Collection, logger)
			results, ingestErr := in.IngestAll(cmd.Context(), docs, concurrency)

			chunks, ok := 0, 0
			for _, r := range results {
				if r != nil {
					ok++
					chunks += r.Chunks
				}
			}
			logger.Info("Ingestion finished",
				zap.String("project_id", projectID),
				zap.Int("documents", ok),
				zap.Int("failed", len(docs)-ok),
				zap.Int("chunks", chunks),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d/%d documents (%d chunks)\n", ok, len(docs), chunks)
			return ingestErr
		},
	}
	f := cmd.Flags()
	f.StringVar(&projectID, "project", "", "Project the documents belong to")
	f.StringVar(&ownerID, "owner", "", "Owning user")
	f.IntVar(&concurrency, "concurrency", 4, "Documents embedded in parallel")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

// collectDocuments walks paths and reads every supported file. Document IDs are the
// slash-separated path so re-ingesting a file overwrites its chunks.
func collectDocuments(paths []string, projectID, ownerID string, fetcher *websearch.Fetcher) ([]ingest.Document, error) {
	var docs []ingest.Document
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if path != root && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			doc, ok, err := readDocument(path, fetcher)
			if err != nil || !ok {
				return err
			}
			doc.ProjectID = projectID
			doc.OwnerID = ownerID
			docs = append(docs, doc)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return docs, nil
}

func readDocument(path string, fetcher *websearch.Fetcher) (ingest.Document, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	isHTML := ext == ".html" || ext == ".htm"
	if !isHTML && !textExtensions[ext] {
		return ingest.Document{}, false, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ingest.Document{}, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return ingest.Document{}, false, err
	}

	doc := ingest.Document{
		ID:        filepath.ToSlash(path),
		Title:     filepath.Base(path),
		Content:   string(raw),
		UpdatedAt: info.ModTime().UTC(),
	}
	if isHTML {
		title, md, err := fetcher.ConvertHTML(string(raw), "")
		if err != nil {
			return ingest.Document{}, false, fmt.Errorf("convert %s: %w", path, err)
		}
		if title != "" {
			doc.Title = title
		}
		doc.Content = md
	}
	if strings.TrimSpace(doc.Content) == "" {
		return ingest.Document{}, false, nil
	}
	return doc, true, nil
}
