package degradation

import "fmt"

// Stage names one step of the tailoring pipeline
type Stage string

const (
	StageAnalyze    Stage = "analyze"
	StageRetrieve   Stage = "retrieve"
	StageRerank     Stage = "rerank"
	StageGaps       Stage = "gaps"
	StageWebSearch  Stage = "web_search"
	StageCompress   Stage = "compress"
	StageSummarize  Stage = "summarize"
	StageSynthesize Stage = "synthesize"
	StageCite       Stage = "cite"
	StageQuality    Stage = "quality"
	StagePersist    Stage = "persist"
)

// FallbackBehavior is what the pipeline does instead of a failed stage
type FallbackBehavior string

const (
	// FallbackProxyScore uses the bi-encoder score in place of the cross-encoder
	FallbackProxyScore FallbackBehavior = "proxy_score"
	// FallbackRawContent uses truncated original text in place of a summary
	FallbackRawContent FallbackBehavior = "raw_content"
	// FallbackSkip continues without the stage's contribution
	FallbackSkip FallbackBehavior = "skip"
	// FallbackDefault substitutes a neutral default value
	FallbackDefault FallbackBehavior = "default"
	// FallbackEmpty continues with an empty result
	FallbackEmpty FallbackBehavior = "empty"
)

var stageFallbacks = map[Stage]FallbackBehavior{
	StageAnalyze:    FallbackDefault,
	StageRetrieve:   FallbackEmpty,
	StageRerank:     FallbackProxyScore,
	StageGaps:       FallbackSkip,
	StageWebSearch:  FallbackSkip,
	StageCompress:   FallbackEmpty,
	StageSummarize:  FallbackRawContent,
	StageSynthesize: FallbackEmpty,
	StageCite:       FallbackEmpty,
	StageQuality:    FallbackDefault,
	StagePersist:    FallbackSkip,
}

// FallbackFor returns the fallback behavior of stage
func FallbackFor(stage Stage) FallbackBehavior {
	if b, ok := stageFallbacks[stage]; ok {
		return b
	}
	return FallbackSkip
}

// critical stages leave the response without content when they fail
func (s Stage) critical() bool {
	switch s {
	case StageRetrieve, StageCompress, StageSynthesize:
		return true
	default:
		return false
	}
}

// Level represents the severity of degradation
type Level int

const (
	LevelNone     Level = iota
	LevelMinor          // one non-critical failure
	LevelModerate       // several non-critical failures
	LevelSevere         // a critical stage failed
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelMinor:
		return "minor"
	case LevelModerate:
		return "moderate"
	case LevelSevere:
		return "severe"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name in JSON
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText parses a level name written by MarshalText
func (l *Level) UnmarshalText(text []byte) error {
	for _, candidate := range []Level{LevelNone, LevelMinor, LevelModerate, LevelSevere} {
		if candidate.String() == string(text) {
			*l = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown degradation level %q", text)
}
