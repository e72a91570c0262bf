// Package openai is an OpenAI-compatible embeddings client with batching,
// request pacing and the shared retry discipline.
package openai

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

	"golang.org/x/time/rate"

	"ragbot/internal/domain"
	"ragbot/internal/retryable"
)

// Client implements embedding.Embedder against /v1/embeddings. It is
// safe for concurrent use; the ingestion pipeline shares one client
// across its workers.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	batchSize int
	dimension atomic.Int64
	client    *http.Client
	limiter   *rate.Limiter
	retry     retryable.Policy
}

// Config configures the embeddings client. The API key is read from the
// environment variable named by APIKeyEnv.
type Config struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	BatchSize         int
	RequestsPerSecond float64
	Retry             retryable.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-large"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 5
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    key,
		model:     cfg.Model,
		batchSize: cfg.BatchSize,
		client:    &http.Client{Timeout: t},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		retry:     cfg.Retry,
	}, nil
}

func (c *Client) Model() string { return c.model }

// Dimension is zero until the first successful call fixes it.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// EmbedBatch returns one vector per input text, in input order. Inputs
// larger than the provider batch limit are split; each sub-batch is
// retried independently and a failed sub-batch aborts the whole call with
// an EmbeddingError naming it.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(texts))
	for batch := 0; batch*c.batchSize < len(texts); batch++ {
		lo := batch * c.batchSize
		hi := lo + c.batchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		vectors, err := c.embedOnce(ctx, texts[lo:hi])
		if err != nil {
			return nil, &domain.EmbeddingError{Batch: batch, Size: hi - lo, Err: err}
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float64, error) {
	var vectors [][]float64
	err := retryable.Do(ctx, c.retry, retryable.Transient, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := c.request(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (c *Client) request(ctx context.Context, texts []string) ([][]float64, error) {
	body := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: c.model, Input: texts}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &retryable.HTTPError{Status: resp.StatusCode, Body: string(payload)}
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}
	vectors := make([][]float64, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return nil, errors.New("provider returned an empty embedding")
		}
	}
	c.dimension.CompareAndSwap(0, int64(len(vectors[0])))
	return vectors, nil
}
