package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ragbot/internal/embedding"
	"ragbot/internal/llm"
	"ragbot/internal/vectorstore"
)

// NoResults is returned when the knowledge base has nothing for a query.
// The system prompt tells the model to fall back to web search on it.
const NoResults = "No results found."

// VectorSearch embeds the query and searches the knowledge base.
type VectorSearch struct {
	embedder     embedding.Embedder
	store        vectorstore.Store
	defaultLimit int
}

func NewVectorSearch(embedder embedding.Embedder, store vectorstore.Store, defaultLimit int) *VectorSearch {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &VectorSearch{embedder: embedder, store: store, defaultLimit: defaultLimit}
}

func (v *VectorSearch) Name() string { return "vector_search" }

func (v *VectorSearch) Schema() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionSchema{
			Name:        "vector_search",
			Description: "Search the knowledge base for text chunks relevant to a query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query text."},
					"limit": map[string]any{"type": "integer", "description": "Maximum number of chunks to return."},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (v *VectorSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("vector_search: parse arguments: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("vector_search: query is required")
	}
	if params.Limit <= 0 {
		params.Limit = v.defaultLimit
	}

	vectors, err := v.embedder.EmbedBatch(ctx, []string{params.Query})
	if err != nil {
		return "", fmt.Errorf("vector_search: embed query: %w", err)
	}
	results, err := v.store.Query(ctx, vectors[0], params.Limit, nil)
	if err != nil {
		return "", fmt.Errorf("vector_search: query store: %w", err)
	}
	if len(results) == 0 {
		return NoResults, nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("[source=%s file=%s chunk=%d score=%.4f] %s",
			r.Source, r.Filename, r.ChunkIndex, r.Score, r.Text))
	}
	return strings.Join(lines, "\n"), nil
}
