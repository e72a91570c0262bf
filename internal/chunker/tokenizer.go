package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer maps text to model token ids and back. Chunk boundaries are
// always token boundaries so decoding a window never corrupts text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// DefaultEncoding matches the embedding and chat models in use.
const DefaultEncoding = "cl100k_base"

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken returns a Tokenizer backed by the named tiktoken encoding.
func NewTiktoken(encoding string) (Tokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Normalize collapses runs of whitespace and trims. All extracted and
// transcribed text passes through here before chunking.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
