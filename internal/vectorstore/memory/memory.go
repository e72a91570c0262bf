// Package memory is an in-process vector store used when the
// configured location is ":memory:". Search is brute-force cosine
// similarity, which is plenty for the corpus sizes a single ingest run
// produces.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"ragbot/internal/domain"
	"ragbot/internal/vectorstore"
)

type point struct {
	vector []float64
	seq    int
	result domain.SearchResult
}

// Store keeps points in memory, keyed by point id so re-upserting the
// same id replaces the point, matching server-side semantics. Insertion
// order breaks score ties so queries stay deterministic.
type Store struct {
	mu        sync.RWMutex
	dimension int
	nextSeq   int
	points    map[string]point
}

func NewStore() *Store {
	return &Store{points: make(map[string]point)}
}

func (s *Store) EnsureCollection(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return errors.New("memory: invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = dimension
		return nil
	}
	if s.dimension != dimension {
		return &domain.CollectionMismatchError{Collection: ":memory:", Want: dimension, Got: s.dimension}
	}
	return nil
}

func (s *Store) Upsert(_ context.Context, chunks []domain.EmbeddedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		return errors.New("memory: collection not initialized")
	}
	for _, c := range chunks {
		if c.ID == "" {
			return errors.New("memory: chunk has no point id")
		}
		if len(c.Vector) != s.dimension {
			return errors.New("memory: vector dimension mismatch")
		}
	}
	for _, c := range chunks {
		seq := s.nextSeq
		if existing, ok := s.points[c.ID]; ok {
			seq = existing.seq
		} else {
			s.nextSeq++
		}
		s.points[c.ID] = point{
			vector: c.Vector,
			seq:    seq,
			result: domain.SearchResult{
				Text:       c.Chunk.Text,
				Source:     c.Chunk.Source,
				Filename:   c.Chunk.DocumentName,
				ChunkIndex: c.Chunk.Index,
			},
		}
	}
	return nil
}

func (s *Store) Query(_ context.Context, vector []float64, topK int, filter vectorstore.Filter) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	type scored struct {
		seq    int
		result domain.SearchResult
	}
	hits := make([]scored, 0, len(s.points))
	for _, p := range s.points {
		if !matches(p.result, filter) {
			continue
		}
		r := p.result
		r.Score = cosine(p.vector, vector)
		hits = append(hits, scored{seq: p.seq, result: r})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].result.Score != hits[j].result.Score {
			return hits[i].result.Score > hits[j].result.Score
		}
		return hits[i].seq < hits[j].seq
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	results := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = h.result
	}
	return results, nil
}

func matches(r domain.SearchResult, filter vectorstore.Filter) bool {
	for k, v := range filter {
		switch k {
		case "source":
			if string(r.Source) != v {
				return false
			}
		case "filename":
			if r.Filename != v {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
