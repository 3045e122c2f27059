package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/minho-song/ragpipe/internal/api"
)

// MemoryStore is a flat-scan in-process store. It backs local
// development and tests; search semantics (cosine similarity, score
// ordering, recency tie-break) match the persistent stores.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	dims   int
	points map[string]*Point
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memCollection),
	}
}

func (s *MemoryStore) EnsureCollection(_ context.Context, name string, dims int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		s.collections[name] = &memCollection{
			dims:   dims,
			points: make(map[string]*Point),
		}
	}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, points []*Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return fmt.Errorf("collection %q does not exist", collection)
	}

	for _, p := range points {
		if len(p.Vector) != col.dims {
			return fmt.Errorf("%w: point %s has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, p.ID, len(p.Vector), collection, col.dims)
		}
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, collection string, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	for id, p := range col.points {
		if p.DocumentID == documentID {
			delete(col.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, params *SearchParams) ([]*api.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[params.collection]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", params.collection)
	}
	if len(params.query) != col.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, collection %s expects %d",
			ErrDimensionMismatch, len(params.query), params.collection, col.dims)
	}

	var scored []*api.ScoredChunk
	for _, p := range col.points {
		if !matches(p, params) {
			continue
		}
		scored = append(scored, &api.ScoredChunk{
			Chunk: p.chunk(),
			Score: cosine(params.query, p.Vector),
		})
	}

	// equal scores rank the most recently ingested chunk first
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.IngestedAt.After(scored[j].Chunk.IngestedAt)
	})

	if params.limit > 0 && uint(len(scored)) > params.limit {
		scored = scored[:params.limit]
	}
	return scored, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func matches(p *Point, params *SearchParams) bool {
	if len(params.documentIDs) > 0 {
		found := false
		for _, id := range params.documentIDs {
			if p.DocumentID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !params.since.IsZero() && p.IngestedAt.Before(params.since) {
		return false
	}
	return true
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
