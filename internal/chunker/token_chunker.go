package chunker

import (
	"fmt"

	"ragbot/internal/domain"
)

// TokenChunker splits text into overlapping windows of at most maxTokens
// tokens. Consecutive chunks from one document share overlap tokens so
// retrieval keeps context across boundaries.
type TokenChunker struct {
	tok       Tokenizer
	maxTokens int
	overlap   int
}

// NewTokenChunker validates the window parameters up front; an overlap
// that is not strictly smaller than the window would never terminate.
func NewTokenChunker(tok Tokenizer, maxTokens, overlap int) (*TokenChunker, error) {
	if tok == nil {
		return nil, fmt.Errorf("nil tokenizer")
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, maxTokens)
	}
	return &TokenChunker{tok: tok, maxTokens: maxTokens, overlap: overlap}, nil
}

// Chunk walks a sliding window over the document's token stream. The same
// input always produces the same boundaries. Empty input yields no chunks;
// input shorter than one window yields exactly one.
func (c *TokenChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	tokens := c.tok.Encode(doc.Text)
	if len(tokens) == 0 {
		return nil, nil
	}
	step := c.maxTokens - c.overlap
	var chunks []domain.Chunk
	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		window := tokens[start:end]
		chunks = append(chunks, domain.Chunk{
			DocumentName: doc.Name,
			Source:       doc.Kind,
			Index:        len(chunks),
			Text:         c.tok.Decode(window),
			TokenCount:   len(window),
		})
		if end == len(tokens) {
			break
		}
	}
	return chunks, nil
}
