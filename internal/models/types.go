package models

import "time"

// Source types
const (
	SourceProjectDoc  SourceType = "PROJECT_DOC"
	SourceWebSearch   SourceType = "WEB_SEARCH"
	SourceAPIResponse SourceType = "API_RESPONSE"
	SourceUserInput   SourceType = "USER_INPUT"
)

// SourceType identifies where a piece of context came from
type SourceType string

// Scoring defaults shared by retrieval, the merge pool and the compressor
const (
	DefaultBiEncoderWeight    = 0.3
	DefaultCrossEncoderWeight = 0.7
	MinFinalScore             = 0.3
	// WebDiscount is applied to web-derived chunks before they join the pool so that
	// project material outranks web material at equal raw score.
	WebDiscount = 0.85
)

// ScoredChunk is the unit of retrieval for both project documents and web pseudo-chunks
type ScoredChunk struct {
	ChunkID           string                 `json:"chunk_id"`
	DocumentID        string                 `json:"document_id"`
	Content           string                 `json:"content"`
	BiEncoderScore    float64                `json:"bi_encoder_score"`
	CrossEncoderScore float64                `json:"cross_encoder_score"`
	FinalScore        float64                `json:"final_score"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Rank              int                    `json:"rank"`
	SourceType        SourceType             `json:"source_type"`
}

// ContextSource describes a contributing source of a synthesized block
type ContextSource struct {
	SourceType     SourceType `json:"source_type"`
	SourceID       string     `json:"source_id"`
	Title          string     `json:"title"`
	URL            string     `json:"url,omitempty"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	AuthorityScore float64    `json:"authority_score"`
}

// Metadata keys written by the index adapter and the web chunk builder
const (
	MetaTitle      = "title"
	MetaURL        = "url"
	MetaChunkIndex = "chunk_index"
	MetaDomain     = "domain"
	MetaTags       = "tags"
	MetaUpdatedAt  = "updated_at"
	MetaFetchedAt  = "fetched_at"
	MetaAuthority  = "authority_score"
	MetaProjectID  = "project_id"
	MetaOwnerID    = "owner_id"
	MetaDocumentID = "document_id"
	MetaContent    = "content"
)

// FinalScore combines the two retrieval scores with the given weights
func FinalScore(bi, cross, biWeight, crossWeight float64) float64 {
	return biWeight*bi + crossWeight*cross
}

// Clamp01 bounds v to [0,1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
