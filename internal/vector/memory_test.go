package vector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minho-song/ragpipe/internal/vector"
)

const collection = "chunks"

func newStore(t *testing.T) *vector.MemoryStore {
	t.Helper()
	s := vector.NewMemoryStore()
	if err := s.EnsureCollection(context.Background(), collection, 3); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return s
}

func point(id, docID string, ordinal int, vec []float32, at time.Time) *vector.Point {
	return &vector.Point{
		ID:         id,
		Vector:     vec,
		DocumentID: docID,
		Ordinal:    ordinal,
		Text:       "chunk " + id,
		IngestedAt: at,
	}
}

func TestMemoryStoreSearchOrdersByScore(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.Upsert(ctx, collection, []*vector.Point{
		point("a", "doc1", 0, []float32{1, 0, 0}, now),
		point("b", "doc1", 1, []float32{0.9, 0.1, 0}, now),
		point("c", "doc2", 0, []float32{0, 1, 0}, now),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0, 0}, vector.WithLimit(2)))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].Chunk.ID != "a" || res[1].Chunk.ID != "b" {
		t.Errorf("order = [%s %s], want [a b]", res[0].Chunk.ID, res[1].Chunk.ID)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Score > res[i-1].Score {
			t.Errorf("scores not non-increasing at %d", i)
		}
	}
}

func TestMemoryStoreTieBreaksOnRecency(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(24 * time.Hour)

	err := s.Upsert(ctx, collection, []*vector.Point{
		point("old", "doc1", 0, []float32{1, 0, 0}, old),
		point("new", "doc2", 0, []float32{1, 0, 0}, recent),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0, 0}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res[0].Chunk.ID != "new" {
		t.Errorf("first result = %s, want the most recently ingested", res[0].Chunk.ID)
	}
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.Upsert(ctx, collection, []*vector.Point{
		point("a", "doc1", 0, []float32{1, 0}, time.Now()),
	})
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("Upsert err = %v, want ErrDimensionMismatch", err)
	}

	_, err = s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0}))
	if !errors.Is(err, vector.ErrDimensionMismatch) {
		t.Fatalf("Search err = %v, want ErrDimensionMismatch", err)
	}
}

func TestMemoryStoreUpsertIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	p := point("a", "doc1", 0, []float32{1, 0, 0}, time.Now())
	for range 2 {
		if err := s.Upsert(ctx, collection, []*vector.Point{p}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	res, err := s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0, 0}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("got %d results, want 1 after repeated upsert", len(res))
	}
}

func TestMemoryStoreFilters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	err := s.Upsert(ctx, collection, []*vector.Point{
		point("a", "doc1", 0, []float32{1, 0, 0}, old),
		point("b", "doc2", 0, []float32{1, 0, 0}, recent),
		point("c", "doc3", 0, []float32{1, 0, 0}, recent),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	res, err := s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0, 0},
		vector.WithDocumentIDs([]string{"doc1", "doc2"}),
		vector.WithSince(old.Add(time.Hour)),
	))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.DocumentID != "doc2" {
		t.Fatalf("got %v, want exactly doc2", res)
	}
}

func TestMemoryStoreDeleteDocument(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	now := time.Now()

	err := s.Upsert(ctx, collection, []*vector.Point{
		point("a", "doc1", 0, []float32{1, 0, 0}, now),
		point("b", "doc1", 1, []float32{0, 1, 0}, now),
		point("c", "doc2", 0, []float32{0, 0, 1}, now),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.DeleteDocument(ctx, collection, "doc1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}

	res, err := s.Search(ctx, vector.NewSearchParams(collection, []float32{1, 0, 0}))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Chunk.DocumentID != "doc2" {
		t.Fatalf("got %d results, want only doc2 to remain", len(res))
	}
}
