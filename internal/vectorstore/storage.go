package vectorstore

import (
	"context"

	"ragbot/internal/domain"
)

// Filter restricts a query to points whose payload matches every key
// exactly. A nil filter matches everything.
type Filter map[string]string

// Store persists embedded chunks and supports similarity search.
type Store interface {
	// EnsureCollection creates the collection for the given vector size if
	// it does not exist, and fails with a CollectionMismatchError if it
	// exists with a different size.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert writes points by id, replacing any point with the same id.
	Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error

	// Query returns up to topK results ordered by descending similarity.
	Query(ctx context.Context, vector []float64, topK int, filter Filter) ([]domain.SearchResult, error)
}
