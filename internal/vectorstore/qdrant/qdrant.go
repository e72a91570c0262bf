// Package qdrant is a REST client for the Qdrant vector database. It
// speaks both point query APIs: the consolidated /points/query endpoint
// of newer servers and the legacy /points/search endpoint, picking one
// on the first query and sticking with it.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"ragbot/internal/domain"
	"ragbot/internal/retryable"
	"ragbot/internal/vectorstore"
)

// Store is a Qdrant-backed vector store over one collection.
// Cosine distance is assumed throughout.
type Store struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
	retry      retryable.Policy
	legacy     atomic.Bool
}

type Config struct {
	URL        string
	APIKeyEnv  string
	Collection string
	Timeout    time.Duration
	Retry      retryable.Policy
}

func NewStore(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retryable.Policy{MaxAttempts: 3, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
	}
	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     apiKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
		retry:      cfg.Retry,
	}, nil
}

// EnsureCollection creates the collection if absent. If it already exists
// its vector size must match, otherwise the caller must not write to it.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("qdrant: invalid dimension")
	}
	var existingSize int
	exists := false
	err := retryable.Do(ctx, s.retry, retryable.Transient, func(ctx context.Context) error {
		var info struct {
			Result struct {
				Config struct {
					Params struct {
						Vectors struct {
							Size int `json:"size"`
						} `json:"vectors"`
					} `json:"params"`
				} `json:"config"`
			} `json:"result"`
		}
		status, err := s.doJSON(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
		switch {
		case err == nil && status == http.StatusOK:
			exists = true
			existingSize = info.Result.Config.Params.Vectors.Size
			return nil
		case status == http.StatusNotFound:
			body := map[string]any{
				"vectors": map[string]any{"size": dimension, "distance": "Cosine"},
			}
			_, err := s.doJSON(ctx, http.MethodPut, s.collectionURL(""), body, nil)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return err
	}
	if exists && existingSize != dimension {
		return &domain.CollectionMismatchError{
			Collection: s.collection,
			Want:       dimension,
			Got:        existingSize,
		}
	}
	return nil
}

// Upsert writes points by id with wait=true so a successful return means
// the points are queryable.
func (s *Store) Upsert(ctx context.Context, chunks []domain.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("qdrant: chunk %d of %s has no point id", c.Chunk.Index, c.Chunk.DocumentName)
		}
		points[i] = map[string]any{
			"id":     c.ID,
			"vector": c.Vector,
			"payload": map[string]any{
				"text":     c.Chunk.Text,
				"source":   string(c.Chunk.Source),
				"filename": c.Chunk.DocumentName,
				"chunk_id": c.Chunk.Index,
			},
		}
	}
	body := map[string]any{"points": points}
	return retryable.Do(ctx, s.retry, retryable.Transient, func(ctx context.Context) error {
		_, err := s.doJSON(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
		return err
	})
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Query runs a similarity search. The first call probes the consolidated
// query API; a 404 there switches the client to the legacy search API for
// the rest of its lifetime.
func (s *Store) Query(ctx context.Context, vector []float64, topK int, filter vectorstore.Filter) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	var points []scoredPoint
	err := retryable.Do(ctx, s.retry, retryable.Transient, func(ctx context.Context) (err error) {
		if s.legacy.Load() {
			points, err = s.searchLegacy(ctx, vector, topK, filter)
			return err
		}
		points, err = s.queryNew(ctx, vector, topK, filter)
		var httpErr *retryable.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound {
			s.legacy.Store(true)
			points, err = s.searchLegacy(ctx, vector, topK, filter)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		results = append(results, resultFromPayload(p))
	}
	return results, nil
}

func (s *Store) queryNew(ctx context.Context, vector []float64, topK int, filter vectorstore.Filter) ([]scoredPoint, error) {
	body := map[string]any{
		"query":        vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := filterClause(filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result struct {
			Points []scoredPoint `json:"points"`
		} `json:"result"`
	}
	if _, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/query"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Result.Points, nil
}

func (s *Store) searchLegacy(ctx context.Context, vector []float64, topK int, filter vectorstore.Filter) ([]scoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if f := filterClause(filter); f != nil {
		body["filter"] = f
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if _, err := s.doJSON(ctx, http.MethodPost, s.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func filterClause(filter vectorstore.Filter) map[string]any {
	if len(filter) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(filter))
	for k, v := range filter {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": v},
		})
	}
	return map[string]any{"must": must}
}

func resultFromPayload(p scoredPoint) domain.SearchResult {
	r := domain.SearchResult{Score: p.Score}
	if v, ok := p.Payload["text"].(string); ok {
		r.Text = v
	}
	if v, ok := p.Payload["source"].(string); ok {
		r.Source = domain.SourceKind(v)
	}
	if v, ok := p.Payload["filename"].(string); ok {
		r.Filename = v
	}
	if v, ok := p.Payload["chunk_id"].(float64); ok {
		r.ChunkIndex = int(v)
	}
	return r
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// doJSON issues one request and decodes the response into out. Non-2xx
// statuses are returned both as the status value and as an HTTPError so
// callers can branch on specific codes.
func (s *Store) doJSON(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return resp.StatusCode, &retryable.HTTPError{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("qdrant: decode %s %s: %w", method, url, err)
		}
	}
	return resp.StatusCode, nil
}
