package tailor

import (
	"strings"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/metadata"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/synthesis"
)

// SourcesHeading titles the citation list at the end of the context
const SourcesHeading = "Sources"

// buildSections groups blocks by section, keeping the order the synthesizer produced
func buildSections(blocks []synthesis.Block, count compression.TokenCounter) []Section {
	sections := []Section{}
	index := make(map[string]int)
	sources := make(map[string]map[string]struct{})
	parts := make(map[string][]string)

	for _, b := range blocks {
		if strings.TrimSpace(b.Content) == "" {
			continue
		}
		i, ok := index[b.Section]
		if !ok {
			i = len(sections)
			index[b.Section] = i
			sections = append(sections, Section{Name: b.Section})
			sources[b.Section] = make(map[string]struct{})
		}
		parts[b.Section] = append(parts[b.Section], strings.TrimSpace(b.Content))
		for _, src := range b.Sources {
			sources[b.Section][src.SourceID] = struct{}{}
		}
		sections[i].SourceCount = len(sources[b.Section])
	}

	for i := range sections {
		sections[i].Content = strings.Join(parts[sections[i].Name], "\n\n")
		sections[i].TokenCount = count(sections[i].Content)
	}
	return sections
}

// renderContext joins the sections under markdown headings and appends the numbered sources
func renderContext(sections []Section, citations []metadata.Citation) string {
	var b strings.Builder
	for _, s := range sections {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(s.Name)
		b.WriteString("\n\n")
		b.WriteString(s.Content)
	}
	if len(citations) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## " + SourcesHeading + "\n\n")
		b.WriteString(metadata.FormatSources(citations))
	}
	return b.String()
}
