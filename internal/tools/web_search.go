package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ragbot/internal/llm"
)

// WebSearchUnavailable is the tool result when no SerpAPI key is
// configured. The turn still completes; the model is told why.
const WebSearchUnavailable = "Web search unavailable: SERPAPI_API_KEY not set."

// WebSearch queries SerpAPI's Google engine for public-web snippets.
// A zero-value key makes the tool present but unavailable.
type WebSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWebSearch(apiKey string) *WebSearch {
	return &WebSearch{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com/search.json",
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (w *WebSearch) Name() string { return "web_search" }

func (w *WebSearch) Schema() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionSchema{
			Name:        "web_search",
			Description: "Search the public web when knowledge-base context is missing.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query":       map[string]any{"type": "string", "description": "Search query text."},
					"num_results": map[string]any{"type": "integer", "description": "Maximum number of results to return."},
				},
				"required": []string{"query"},
			},
		},
	}
}

// Invoke never fails the turn: key, transport and provider problems all
// come back as explanatory tool results for the model to read.
func (w *WebSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Query      string `json:"query"`
		NumResults int    `json:"num_results"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("web_search: parse arguments: %w", err)
	}
	if params.Query == "" {
		return "", fmt.Errorf("web_search: query is required")
	}
	if w.apiKey == "" {
		return WebSearchUnavailable, nil
	}
	if params.NumResults <= 0 {
		params.NumResults = 5
	}

	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", params.Query)
	q.Set("num", strconv.Itoa(params.NumResults))
	q.Set("hl", "en")
	q.Set("gl", "us")
	q.Set("google_domain", "google.com")
	q.Set("safe", "active")
	q.Set("api_key", w.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Sprintf("SerpAPI exception: %v", err), nil
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Sprintf("SerpAPI exception: %v", err), nil
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Sprintf("SerpAPI exception: %v", err), nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("SerpAPI exception: http %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil
	}

	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Sprintf("SerpAPI exception: decode response: %v", err), nil
	}
	if len(parsed.Organic) == 0 {
		return NoResults, nil
	}
	lines := make([]string, 0, len(parsed.Organic))
	for _, r := range parsed.Organic {
		lines = append(lines, fmt.Sprintf("[web %s] %s: %s", r.Link, r.Title, r.Snippet))
	}
	return strings.Join(lines, "\n"), nil
}
