// Package ingest turns project documents into indexed chunks: split, embed in batches and
// upsert with the payload retrieval filters and renders on.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/embeddings"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
)

var (
	// ErrInvalidDocument is returned for documents missing an ID or project
	ErrInvalidDocument = errors.New("ingest: document id and project id are required")
	// ErrEmptyDocument is returned when a document has no text to index
	ErrEmptyDocument = errors.New("ingest: document has no content")
)

const upsertBatch = 64

// Document is one project document to index
type Document struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	URL       string    `json:"url,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Result reports what was written for one document
type Result struct {
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	Tokens     int    `json:"tokens"`
}

// Ingester writes documents into a vector index collection
type Ingester struct {
	index      models.VectorIndex
	embedder   models.Embedder
	chunker    *embeddings.Chunker
	collection string
	logger     *zap.Logger
}

// NewIngester creates an ingester for collection
func NewIngester(index models.VectorIndex, embedder models.Embedder, chunking embeddings.ChunkingConfig, collection string, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		index:      index,
		embedder:   embedder,
		chunker:    embeddings.NewChunker(chunking),
		collection: collection,
		logger:     logger,
	}
}

// ChunkID is the index id of chunk i of a document
func ChunkID(documentID string, i int) string {
	return fmt.Sprintf("%s#%d", documentID, i)
}

// Ingest chunks, embeds and upserts doc. Re-ingesting a document overwrites its chunks by id;
// use Remove first when the new version has fewer chunks.
func (in *Ingester) Ingest(ctx context.Context, doc Document) (*Result, error) {
	if doc.ID == "" || doc.ProjectID == "" {
		return nil, ErrInvalidDocument
	}
	chunks := in.chunker.Split(doc.Content)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.ID, err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed document %s: got %d vectors for %d chunks", doc.ID, len(vectors), len(chunks))
	}

	res := &Result{DocumentID: doc.ID, Chunks: len(chunks)}
	items := make([]models.IndexItem, len(chunks))
	for i, c := range chunks {
		res.Tokens += c.Tokens
		items[i] = models.IndexItem{
			ID:        ChunkID(doc.ID, c.Index),
			Embedding: vectors[i],
			Metadata:  payload(doc, c),
		}
	}
	for start := 0; start < len(items); start += upsertBatch {
		end := start + upsertBatch
		if end > len(items) {
			end = len(items)
		}
		if err := in.index.Upsert(ctx, in.collection, items[start:end]); err != nil {
			return nil, fmt.Errorf("upsert document %s: %w", doc.ID, err)
		}
	}

	in.logger.Debug("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("project_id", doc.ProjectID),
		zap.Int("chunks", res.Chunks),
	)
	return res, nil
}

// Remove deletes the first chunks chunks of a document
func (in *Ingester) Remove(ctx context.Context, documentID string, chunks int) error {
	if chunks <= 0 {
		return nil
	}
	ids := make([]string, chunks)
	for i := range ids {
		ids[i] = ChunkID(documentID, i)
	}
	if err := in.index.Delete(ctx, in.collection, ids); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// IngestAll ingests docs with at most concurrency in flight. Results follow input order with
// nil entries for failed documents; failures are aggregated into the returned error.
func (in *Ingester) IngestAll(ctx context.Context, docs []Document, concurrency int) ([]*Result, error) {
	if concurrency <= 0 {
		concurrency = 4
	}
	results := make([]*Result, len(docs))
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			res, err := in.Ingest(gctx, doc)
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("%s: %w", doc.ID, err))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, errs.ErrorOrNil()
}

func payload(doc Document, c embeddings.Chunk) map[string]interface{} {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = doc.ID
	}
	meta := map[string]interface{}{
		models.MetaProjectID:  doc.ProjectID,
		models.MetaOwnerID:    doc.OwnerID,
		models.MetaDocumentID: doc.ID,
		models.MetaChunkIndex: c.Index,
		models.MetaTitle:      title,
		models.MetaContent:    c.Text,
		"total_chunks":        c.TotalCount,
	}
	if doc.URL != "" {
		meta[models.MetaURL] = doc.URL
	}
	if doc.Domain != "" {
		meta[models.MetaDomain] = doc.Domain
	}
	if len(doc.Tags) > 0 {
		meta[models.MetaTags] = doc.Tags
	}
	if !doc.UpdatedAt.IsZero() {
		meta[models.MetaUpdatedAt] = doc.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return meta
}
