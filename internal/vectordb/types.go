package vectordb

import "time"

// Distance is the metric a collection was created with
type Distance string

const (
	DistanceCosine    Distance = "Cosine"
	DistanceDot       Distance = "Dot"
	DistanceEuclidean Distance = "Euclid"
)

// Config controls Qdrant client behavior
type Config struct {
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Search params
	TopK      int     `mapstructure:"top_k"`
	Threshold float64 `mapstructure:"threshold"`
	// Distance decides how raw scores become similarities
	Distance Distance `mapstructure:"distance"`
	// ExpectedEmbeddingDim is checked against collections when > 0
	ExpectedEmbeddingDim int `mapstructure:"expected_embedding_dim"`
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6333
	}
	if c.TopK == 0 {
		c.TopK = 10
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.Distance == "" {
		c.Distance = DistanceCosine
	}
	return c
}

// PayloadIDKey holds the caller's item id; Qdrant point ids must be UUIDs
const PayloadIDKey = "_id"

type qdrantPoint struct {
	ID      interface{}            `json:"id"`
	Score   float64                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type upsertPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector"`
	Payload map[string]interface{} `json:"payload"`
}

// qdrantStatus is the envelope of write responses
type qdrantStatus struct {
	Status string  `json:"status"`
	Time   float64 `json:"time"`
}
