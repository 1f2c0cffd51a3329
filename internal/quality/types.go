package quality

import "time"

// Variant names the weight set a score was computed with
type Variant string

const (
	VariantDocument    Variant = "document"
	VariantAgentConfig Variant = "agent_config"
)

// SubScores are the four dimensions, each in [0,1]. The agent-config variant reuses the
// shape: Relevance holds specificity, Diversity holds source diversity and Compression holds
// context depth.
type SubScores struct {
	Coverage    float64 `json:"coverage"`
	Diversity   float64 `json:"diversity"`
	Relevance   float64 `json:"relevance"`
	Compression float64 `json:"compression"`
}

// Weights of the four dimensions; they sum to 1
type Weights struct {
	Coverage    float64
	Relevance   float64
	Diversity   float64
	Compression float64
}

var (
	DocumentWeights    = Weights{Coverage: 0.35, Relevance: 0.30, Diversity: 0.20, Compression: 0.15}
	AgentConfigWeights = Weights{Coverage: 0.30, Relevance: 0.25, Diversity: 0.20, Compression: 0.25}
)

// Score is the composite quality of an assembled context
type Score struct {
	Overall     int       `json:"overall"`
	SubScores   SubScores `json:"sub_scores"`
	Suggestions []string  `json:"suggestions"`
	Variant     Variant   `json:"variant"`
	ScoredAt    time.Time `json:"scored_at"`
}

// Normalized is Overall scaled to [0,1]
func (s Score) Normalized() float64 {
	return float64(s.Overall) / 100
}
