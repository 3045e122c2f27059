package retriever_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/retriever"
	"github.com/minho-song/ragpipe/internal/vector"
)

const collection = "chunks"

// fakeEmbedder maps known query strings onto fixed unit vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, q string) ([]float32, error) {
	v, ok := f.vectors[q]
	if !ok {
		return nil, errors.New("unknown query")
	}
	return v, nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("unknown text")
		}
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeReranker struct {
	ranked []api.RerankedDocument
	err    error
	calls  int
}

func (f *fakeReranker) Rerank(_ context.Context, _ string, _ []string, _ int) ([]api.RerankedDocument, error) {
	f.calls++
	return f.ranked, f.err
}

func seedStore(t *testing.T) vector.Store {
	t.Helper()
	s := vector.NewMemoryStore()
	ctx := context.Background()
	if err := s.EnsureCollection(ctx, collection, 3); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	now := time.Now()
	points := []*vector.Point{
		{ID: "rev-1", DocumentID: "report", Ordinal: 0, Text: "revenue grew 20% year over year", Vector: []float32{1, 0, 0}, IngestedAt: now},
		{ID: "rev-2", DocumentID: "report", Ordinal: 1, Text: "quarterly revenue breakdown by region", Vector: []float32{0.9, 0.1, 0}, IngestedAt: now},
		{ID: "hr-1", DocumentID: "handbook", Ordinal: 0, Text: "vacation policy for new hires", Vector: []float32{0, 1, 0}, IngestedAt: now},
	}
	if err := s.Upsert(ctx, collection, points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return s
}

func queryEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"how did revenue develop": {1, 0, 0},
		"something unrelated":     {0, 0, 1},
	}}
}

func TestRetrieveRanksBySimilarity(t *testing.T) {
	r := retriever.New(queryEmbedder(), seedStore(t), collection, retriever.WithTopK(2))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: "how did revenue develop"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(res.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(res.Chunks))
	}
	if res.Chunks[0].Chunk.ID != "rev-1" || res.Chunks[1].Chunk.ID != "rev-2" {
		t.Errorf("order = [%s %s], want [rev-1 rev-2]",
			res.Chunks[0].Chunk.ID, res.Chunks[1].Chunk.ID)
	}
}

func TestRetrieveEmptyBelowThreshold(t *testing.T) {
	r := retriever.New(queryEmbedder(), seedStore(t), collection,
		retriever.WithTopK(5), retriever.WithMinScore(0.5))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: "something unrelated"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !res.Empty() {
		t.Errorf("got %d chunks, want empty result below threshold", len(res.Chunks))
	}
}

func TestRetrieveRejectsEmptyQuery(t *testing.T) {
	r := retriever.New(queryEmbedder(), seedStore(t), collection)

	_, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: ""})
	if !errors.Is(err, retriever.ErrEmptyQuery) {
		t.Fatalf("err = %v, want ErrEmptyQuery", err)
	}
}

func TestRetrievePerDocumentCap(t *testing.T) {
	r := retriever.New(queryEmbedder(), seedStore(t), collection,
		retriever.WithTopK(3), retriever.WithPerDocumentCap(1))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: "how did revenue develop"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	seen := make(map[string]int)
	for _, c := range res.Chunks {
		seen[c.Chunk.DocumentID]++
	}
	for doc, n := range seen {
		if n > 1 {
			t.Errorf("document %s appears %d times, cap is 1", doc, n)
		}
	}
}

func TestRetrieveDocumentFilter(t *testing.T) {
	r := retriever.New(queryEmbedder(), seedStore(t), collection, retriever.WithTopK(5))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{
		Text:        "how did revenue develop",
		DocumentIDs: []string{"handbook"},
	})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, c := range res.Chunks {
		if c.Chunk.DocumentID != "handbook" {
			t.Errorf("chunk %s from document %s, want handbook only", c.Chunk.ID, c.Chunk.DocumentID)
		}
	}
}

func TestRetrieveRerankerReorders(t *testing.T) {
	rr := &fakeReranker{ranked: []api.RerankedDocument{
		{Index: 1, Score: 0.99},
		{Index: 0, Score: 0.42},
	}}
	r := retriever.New(queryEmbedder(), seedStore(t), collection,
		retriever.WithTopK(2), retriever.WithReranker(rr))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: "how did revenue develop"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if rr.calls != 1 {
		t.Fatalf("reranker called %d times, want 1", rr.calls)
	}
	if res.Chunks[0].Chunk.ID != "rev-2" {
		t.Errorf("first chunk = %s, want the reranked winner rev-2", res.Chunks[0].Chunk.ID)
	}
	if res.Chunks[0].Score != 0.99 {
		t.Errorf("score = %v, want rerank score 0.99", res.Chunks[0].Score)
	}
}

func TestRetrieveRerankerFailureFallsBack(t *testing.T) {
	rr := &fakeReranker{err: errors.New("rerank service down")}
	r := retriever.New(queryEmbedder(), seedStore(t), collection,
		retriever.WithTopK(2), retriever.WithReranker(rr))

	res, err := r.Retrieve(context.Background(), &api.QueryRequest{Text: "how did revenue develop"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if res.Chunks[0].Chunk.ID != "rev-1" {
		t.Errorf("first chunk = %s, want similarity order preserved", res.Chunks[0].Chunk.ID)
	}
}
