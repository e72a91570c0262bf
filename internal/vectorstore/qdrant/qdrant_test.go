package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragbot/internal/domain"
	"ragbot/internal/retryable"
	"ragbot/internal/vectorstore"
)

func fastRetry() retryable.Policy {
	return retryable.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
}

func newTestStore(t *testing.T, url string) *Store {
	t.Helper()
	s, err := NewStore(Config{URL: url, Collection: "notes", Retry: fastRetry()})
	require.NoError(t, err)
	return s
}

func collectionInfo(size int) map[string]any {
	return map[string]any{
		"result": map[string]any{
			"config": map[string]any{
				"params": map[string]any{
					"vectors": map[string]any{"size": size},
				},
			},
		},
	}
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/collections/notes":
			if created.Load() {
				_ = json.NewEncoder(w).Encode(collectionInfo(3))
				return
			}
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/notes":
			var body struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 3, body.Vectors.Size)
			assert.Equal(t, "Cosine", body.Vectors.Distance)
			created.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	require.NoError(t, s.EnsureCollection(context.Background(), 3))
	// second call is idempotent against the now-existing collection
	require.NoError(t, s.EnsureCollection(context.Background(), 3))
	assert.True(t, created.Load())
}

func TestEnsureCollection_SizeMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(collectionInfo(1536))
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	err := s.EnsureCollection(context.Background(), 3072)
	var mismatch *domain.CollectionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "notes", mismatch.Collection)
	assert.Equal(t, 3072, mismatch.Want)
	assert.Equal(t, 1536, mismatch.Got)
}

func TestUpsert_PayloadShape(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float64      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/collections/notes/points", r.URL.Path)
		require.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	err := s.Upsert(context.Background(), []domain.EmbeddedChunk{{
		ID:     "11111111-2222-3333-4444-555555555555",
		Vector: []float64{0.1, 0.2},
		Chunk: domain.Chunk{
			DocumentName: "lecture.pdf",
			Source:       domain.SourcePDF,
			Index:        7,
			Text:         "hello world",
		},
	}})
	require.NoError(t, err)
	require.Len(t, got.Points, 1)
	p := got.Points[0]
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", p.ID)
	assert.Equal(t, "hello world", p.Payload["text"])
	assert.Equal(t, "pdf", p.Payload["source"])
	assert.Equal(t, "lecture.pdf", p.Payload["filename"])
	assert.Equal(t, float64(7), p.Payload["chunk_id"])
}

func TestUpsert_RequiresPointID(t *testing.T) {
	s := newTestStore(t, "http://unused")
	err := s.Upsert(context.Background(), []domain.EmbeddedChunk{{Vector: []float64{1}}})
	require.Error(t, err)
}

func scoredResponse(points []map[string]any, wrapped bool) map[string]any {
	if wrapped {
		return map[string]any{"result": map[string]any{"points": points}}
	}
	return map[string]any{"result": points}
}

func TestQuery_ConsolidatedAPI(t *testing.T) {
	var queryCalls, searchCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/notes/points/query":
			queryCalls.Add(1)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "query")
			assert.NotContains(t, body, "vector")
			_ = json.NewEncoder(w).Encode(scoredResponse([]map[string]any{{
				"score": 0.91,
				"payload": map[string]any{
					"text": "chunk text", "source": "audio", "filename": "talk.mp3", "chunk_id": 2,
				},
			}}, true))
		default:
			searchCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	results, err := s.Query(context.Background(), []float64{0.5}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk text", results[0].Text)
	assert.Equal(t, domain.SourceAudio, results[0].Source)
	assert.Equal(t, "talk.mp3", results[0].Filename)
	assert.Equal(t, 2, results[0].ChunkIndex)
	assert.InDelta(t, 0.91, results[0].Score, 1e-9)
	assert.Equal(t, int64(0), searchCalls.Load())
}

func TestQuery_FallsBackToLegacyOnce(t *testing.T) {
	var queryCalls, searchCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/collections/notes/points/query":
			queryCalls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		case "/collections/notes/points/search":
			searchCalls.Add(1)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Contains(t, body, "vector")
			_ = json.NewEncoder(w).Encode(scoredResponse([]map[string]any{{
				"score":   0.4,
				"payload": map[string]any{"text": "legacy hit", "source": "pdf", "filename": "a.pdf", "chunk_id": 0},
			}}, false))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	results, err := s.Query(context.Background(), []float64{0.5}, 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "legacy hit", results[0].Text)

	// detection happens once: the second query goes straight to legacy
	_, err = s.Query(context.Background(), []float64{0.5}, 5, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), queryCalls.Load())
	assert.Equal(t, int64(2), searchCalls.Load())
}

func TestQuery_FilterClause(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Filter.Must, 1)
		assert.Equal(t, "source", body.Filter.Must[0].Key)
		assert.Equal(t, "pdf", body.Filter.Must[0].Match.Value)
		_ = json.NewEncoder(w).Encode(scoredResponse(nil, true))
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	_, err := s.Query(context.Background(), []float64{0.5}, 5, vectorstore.Filter{"source": "pdf"})
	require.NoError(t, err)
}

func TestQuery_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(scoredResponse(nil, true))
	}))
	defer srv.Close()

	s := newTestStore(t, srv.URL)
	results, err := s.Query(context.Background(), []float64{0.5}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int64(2), calls.Load())
}
