package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/synthesis"
)

// CitationType is the kind of origin a citation points at
type CitationType string

const (
	CitationDocument CitationType = "document"
	CitationWeb      CitationType = "web"
)

// Citation is one deduplicated source of the assembled context
type Citation struct {
	ID             string       `json:"id"`
	Type           CitationType `json:"type"`
	SourceID       string       `json:"source_id"`
	SourceTitle    string       `json:"source_title"`
	SourceURL      string       `json:"source_url,omitempty"`
	DocumentID     string       `json:"document_id,omitempty"`
	ChunkIndex     int          `json:"chunk_index"`
	RelevanceScore float64      `json:"relevance_score"`
	FetchedAt      *time.Time   `json:"fetched_at,omitempty"`
}

// citable reports whether sources of this type produce citations.
// API responses and user input are not cited.
func citable(t models.SourceType) bool {
	return t == models.SourceProjectDoc || t == models.SourceWebSearch
}

// Track collects one citation per SourceID across blocks. When a source appears more than
// once, the occurrence from the block with the highest priority wins, and ChunkIndex is the
// index of that block. IDs "1", "2", ... follow the order in which sources were first seen.
func Track(blocks []synthesis.Block) []Citation {
	index := make(map[string]int)
	var tracked []Citation

	for i, block := range blocks {
		relevance := models.Clamp01(block.Priority)
		for _, src := range block.Sources {
			if !citable(src.SourceType) || src.SourceID == "" {
				continue
			}
			c := citationFrom(src, i, relevance)

			if idx, ok := index[src.SourceID]; ok {
				if relevance > tracked[idx].RelevanceScore {
					tracked[idx] = c
				}
				continue
			}
			index[src.SourceID] = len(tracked)
			tracked = append(tracked, c)
		}
	}

	for i := range tracked {
		tracked[i].ID = strconv.Itoa(i + 1)
	}
	if tracked == nil {
		tracked = []Citation{}
	}
	return tracked
}

func citationFrom(src models.ContextSource, blockIndex int, relevance float64) Citation {
	c := Citation{
		SourceID:       src.SourceID,
		SourceTitle:    src.Title,
		SourceURL:      src.URL,
		ChunkIndex:     blockIndex,
		RelevanceScore: relevance,
	}
	if c.SourceTitle == "" {
		c.SourceTitle = src.SourceID
	}
	if src.SourceType == models.SourceWebSearch {
		c.Type = CitationWeb
		if src.Timestamp != nil {
			ts := *src.Timestamp
			c.FetchedAt = &ts
		}
	} else {
		c.Type = CitationDocument
		c.DocumentID = src.SourceID
	}
	return c
}

// FormatSources renders citations as the numbered lines of a Sources list
func FormatSources(citations []Citation) string {
	var b strings.Builder
	for _, c := range citations {
		fmt.Fprintf(&b, "[%s] %s", c.ID, c.SourceTitle)
		if c.SourceURL != "" {
			fmt.Fprintf(&b, " (%s)", c.SourceURL)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
