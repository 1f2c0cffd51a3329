package synthesis

import "github.com/Kocoro-lab/Shannon/go/tailor/internal/models"

// Section names, in output order
const (
	SectionProject    = "Project Context"
	SectionResources  = "Related Resources"
	SectionAdditional = "Additional Context"
)

var sectionOrder = map[string]int{
	SectionProject:    0,
	SectionResources:  1,
	SectionAdditional: 2,
}

// SectionFor maps a source type to the section its content lands in
func SectionFor(t models.SourceType) string {
	switch t {
	case models.SourceProjectDoc:
		return SectionProject
	case models.SourceWebSearch:
		return SectionResources
	default:
		return SectionAdditional
	}
}

// Contradiction is a pair of sources making conflicting claims about the same subject
type Contradiction struct {
	Claim       string `json:"claim"`
	SourceA     string `json:"source_a"`
	SourceB     string `json:"source_b"`
	Description string `json:"description"`
}

// Block is one synthesized unit of context. Blocks are not modified once returned.
type Block struct {
	Content        string                 `json:"content"`
	Sources        []models.ContextSource `json:"sources"`
	Priority       float64                `json:"priority"`
	Section        string                 `json:"section"`
	Contradictions []Contradiction        `json:"contradictions,omitempty"`
}
