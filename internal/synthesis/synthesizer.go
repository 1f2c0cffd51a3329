package synthesis

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/compression"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/models"
	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

// Default authority of sources that carry no explicit score
const (
	DefaultProjectAuthority = 0.8
	DefaultOtherAuthority   = 0.5
)

// Config tunes duplicate detection
type Config struct {
	DuplicateThreshold float64
	ShingleSize        int
}

// DefaultConfig returns the standard synthesis settings
func DefaultConfig() Config {
	return Config{DuplicateThreshold: 0.85, ShingleSize: 3}
}

// Synthesizer groups compressed chunks into labelled, deduplicated blocks
type Synthesizer struct {
	cfg    Config
	logger *zap.Logger
}

// NewSynthesizer creates a synthesizer
func NewSynthesizer(cfg Config, logger *zap.Logger) *Synthesizer {
	if cfg.DuplicateThreshold <= 0 || cfg.DuplicateThreshold > 1 {
		cfg.DuplicateThreshold = DefaultConfig().DuplicateThreshold
	}
	if cfg.ShingleSize <= 0 {
		cfg.ShingleSize = DefaultConfig().ShingleSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{cfg: cfg, logger: logger}
}

type draft struct {
	block    Block
	shingles map[string]struct{}
	claims   []claim
}

// Synthesize turns compressed chunks into blocks ordered by section then priority.
// sources optionally overrides the source derived from a chunk, keyed by chunk id.
func (s *Synthesizer) Synthesize(chunks []compression.CompressedChunk, sources map[string]models.ContextSource) []Block {
	drafts := make([]*draft, 0, len(chunks))

	for _, c := range chunks {
		src, ok := sources[c.OriginalChunkID]
		if !ok {
			src = SourceFromChunk(c)
		}
		sh := util.Shingles(c.Content, s.cfg.ShingleSize)

		if dup := s.findDuplicate(drafts, sh); dup != nil {
			dup.block = mergeInto(dup.block, src, c.RelevanceScore)
			s.logger.Debug("Merged near-duplicate chunk",
				zap.String("chunk_id", c.OriginalChunkID),
				zap.String("section", dup.block.Section),
			)
			continue
		}

		d := &draft{
			block: Block{
				Content:  c.Content,
				Sources:  []models.ContextSource{src},
				Priority: c.RelevanceScore,
				Section:  SectionFor(c.SourceType),
			},
			shingles: sh,
			claims:   extractClaims(c.Content),
		}
		d.block.Contradictions = findContradictions(drafts, d, src)
		drafts = append(drafts, d)
	}

	blocks := make([]Block, 0, len(drafts))
	for _, d := range drafts {
		blocks = append(blocks, d.block)
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		oi, oj := sectionOrder[blocks[i].Section], sectionOrder[blocks[j].Section]
		if oi != oj {
			return oi < oj
		}
		return blocks[i].Priority > blocks[j].Priority
	})
	return blocks
}

func (s *Synthesizer) findDuplicate(drafts []*draft, sh map[string]struct{}) *draft {
	for _, d := range drafts {
		if util.Jaccard(d.shingles, sh) >= s.cfg.DuplicateThreshold {
			return d
		}
	}
	return nil
}

// mergeInto returns a copy of b that also carries src
func mergeInto(b Block, src models.ContextSource, priority float64) Block {
	out := b
	out.Sources = append([]models.ContextSource(nil), b.Sources...)
	known := false
	for _, existing := range out.Sources {
		if existing.SourceID == src.SourceID {
			known = true
			break
		}
	}
	if !known {
		out.Sources = append(out.Sources, src)
	}
	if priority > out.Priority {
		out.Priority = priority
	}
	return out
}

// SourceFromChunk derives the ContextSource of a compressed chunk from its metadata
func SourceFromChunk(c compression.CompressedChunk) models.ContextSource {
	meta := c.Metadata
	src := models.ContextSource{
		SourceType: c.SourceType,
		SourceID:   c.DocumentID,
		Title:      cast.ToString(meta[models.MetaTitle]),
		URL:        cast.ToString(meta[models.MetaURL]),
	}
	if src.SourceType == "" {
		src.SourceType = models.SourceProjectDoc
	}
	if src.SourceID == "" {
		src.SourceID = c.OriginalChunkID
	}
	if src.Title == "" {
		src.Title = src.SourceID
	}

	for _, key := range []string{models.MetaFetchedAt, models.MetaUpdatedAt} {
		if raw, ok := meta[key]; ok {
			if ts, err := cast.ToTimeE(raw); err == nil && !ts.IsZero() {
				ts = ts.UTC()
				src.Timestamp = &ts
				break
			}
		}
	}

	if v, ok := meta[models.MetaAuthority]; ok {
		src.AuthorityScore = models.Clamp01(cast.ToFloat64(v))
	} else if src.SourceType == models.SourceProjectDoc {
		src.AuthorityScore = DefaultProjectAuthority
	} else {
		src.AuthorityScore = DefaultOtherAuthority
	}
	return src
}

// claim is a (subject, value) statement found in a chunk
type claim struct {
	subject string
	value   string
	negated bool
	text    string
}

var (
	sentenceSplitRe = regexp.MustCompile(`[.!?;\n]+`)
	numericClaimRe  = regexp.MustCompile(
		`(?i)([a-z][a-z0-9 _-]{2,60}?)\s+(?:is|are|was|were|equals|of|=|:|set to|defaults to|limited to|at|uses)\s+(\d+(?:\.\d+)?)\s*(%|ms|kb|mb|gb|seconds?|minutes?|hours?|days?|tokens?|requests?)?`)
	negationRe = regexp.MustCompile(`(?i)\b(not|never|no longer|doesn't|does not|isn't|cannot|can't|don't|won't)\b`)
)

// extractClaims finds numeric claims and records negation per sentence
func extractClaims(text string) []claim {
	var out []claim
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		negated := negationRe.MatchString(sentence)

		if m := numericClaimRe.FindStringSubmatch(sentence); m != nil {
			if subject := subjectKey(m[1], 3); subject != "" {
				out = append(out, claim{
					subject: subject,
					value:   strings.ToLower(strings.TrimSpace(m[2] + " " + m[3])),
					negated: negated,
					text:    sentence,
				})
				continue
			}
		}

		// non-numeric statement: the claim is the sentence minus its negation
		if subject := subjectKey(negationRe.ReplaceAllString(sentence, " "), 6); subject != "" {
			out = append(out, claim{subject: subject, negated: negated, text: sentence})
		}
	}
	return out
}

// subjectKey normalises a phrase to its last max content words with a plural "s" trimmed
func subjectKey(phrase string, max int) string {
	words := util.ContentWords(phrase, 3)
	if len(words) == 0 {
		return ""
	}
	if len(words) > max {
		words = words[len(words)-max:]
	}
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}

// findContradictions compares the new draft's claims with those of earlier drafts from
// other sources
func findContradictions(existing []*draft, d *draft, src models.ContextSource) []Contradiction {
	var out []Contradiction
	seen := map[string]bool{}
	for _, other := range existing {
		otherSrc := other.block.Sources[0]
		if otherSrc.SourceID == src.SourceID {
			continue
		}
		for _, a := range other.claims {
			for _, b := range d.claims {
				if a.subject != b.subject {
					continue
				}
				desc := ""
				switch {
				case a.value != "" && b.value != "" && a.value != b.value:
					desc = fmt.Sprintf("%q states %s but %q states %s", otherSrc.Title, a.value, src.Title, b.value)
				case a.value == b.value && a.negated != b.negated:
					desc = fmt.Sprintf("%q and %q disagree on whether this holds", otherSrc.Title, src.Title)
				default:
					continue
				}
				key := a.subject + "|" + otherSrc.SourceID
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Contradiction{
					Claim:       a.subject,
					SourceA:     otherSrc.SourceID,
					SourceB:     src.SourceID,
					Description: desc,
				})
			}
		}
	}
	return out
}

// Contradictions flattens the contradictions of all blocks
func Contradictions(blocks []Block) []Contradiction {
	var out []Contradiction
	for _, b := range blocks {
		out = append(out, b.Contradictions...)
	}
	return out
}
