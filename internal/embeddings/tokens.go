package embeddings

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Kocoro-lab/Shannon/go/tailor/internal/util"
)

const (
	TokenizerSimple   = "simple"
	TokenizerTiktoken = "tiktoken"
)

// encoder splits text into a token sequence that can be cut back into text
type encoder interface {
	tokenize(text string) tokenized
}

type tokenized interface {
	Len() int
	Slice(i, j int) string
}

// wordEncoder treats each whitespace separated word as one token
type wordEncoder struct{}

type wordTokens []string

func (wordEncoder) tokenize(text string) tokenized { return wordTokens(strings.Fields(text)) }

func (w wordTokens) Len() int { return len(w) }

func (w wordTokens) Slice(i, j int) string { return strings.Join(w[i:j], " ") }

type tiktokenEncoder struct {
	tkm *tiktoken.Tiktoken
}

type bpeTokens struct {
	tkm *tiktoken.Tiktoken
	ids []int
}

func (t tiktokenEncoder) tokenize(text string) tokenized {
	return bpeTokens{tkm: t.tkm, ids: t.tkm.Encode(text, nil, nil)}
}

func (b bpeTokens) Len() int { return len(b.ids) }

func (b bpeTokens) Slice(i, j int) string { return b.tkm.Decode(b.ids[i:j]) }

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// loadEncoding caches tiktoken encodings per model; loading one reads the BPE ranks
func loadEncoding(model string) (*tiktoken.Tiktoken, error) {
	encodingsMu.Lock()
	defer encodingsMu.Unlock()
	if tkm, ok := encodings[model]; ok {
		return tkm, nil
	}
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, err
	}
	encodings[model] = tkm
	return tkm, nil
}

func encoderFor(mode, model string) encoder {
	if mode == TokenizerTiktoken {
		if tkm, err := loadEncoding(model); err == nil {
			return tiktokenEncoder{tkm: tkm}
		}
	}
	return wordEncoder{}
}

// NewTokenCounter returns a counter for the compressor. simple mode (and any tiktoken load
// failure) uses the 1.3 tokens per word estimate.
func NewTokenCounter(mode, model string) func(string) int {
	if mode == TokenizerTiktoken {
		if tkm, err := loadEncoding(model); err == nil {
			return func(text string) int {
				return len(tkm.Encode(text, nil, nil))
			}
		}
	}
	return util.EstimateTokens
}
