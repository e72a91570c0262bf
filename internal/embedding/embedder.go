package embedding

import "context"

// Embedder converts batches of text into fixed-dimension vectors via a
// remote model. Output order and length always match the input.
type Embedder interface {
	// Model returns the embedding model identifier. One collection never
	// mixes vectors from different models; the check happens once at
	// startup, not per call.
	Model() string
	// Dimension is the vector size, known after the first successful call.
	Dimension() int
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}
