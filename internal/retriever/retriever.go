// Package retriever turns a natural-language query into a ranked,
// deduplicated set of candidate chunks.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/provider"
	"github.com/minho-song/ragpipe/internal/vector"
)

var ErrEmptyQuery = errors.New("query text must not be empty")

const (
	DefaultTopK         = 5
	DefaultMinScore     = 0.0
	DefaultPerDocument  = 0
	candidateMultiplier = 3
)

// Retriever embeds the query, searches the store and filters the
// candidates down to the final top-k. A reranker, when configured,
// reorders the candidate set before the top-k cut.
type Retriever struct {
	embedder   provider.Embedder
	store      vector.Store
	collection string

	topK     int
	minScore float64
	// perDocument caps how many chunks of a single document may appear
	// in the result; zero means no cap.
	perDocument int
	reranker    provider.Reranker
}

type Option func(*Retriever)

func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithMinScore drops candidates scoring below the threshold. Crossing
// it empties the result; an empty result is an answer, not an error.
func WithMinScore(score float64) Option {
	return func(r *Retriever) {
		r.minScore = score
	}
}

func WithPerDocumentCap(n int) Option {
	return func(r *Retriever) {
		r.perDocument = n
	}
}

func WithReranker(rr provider.Reranker) Option {
	return func(r *Retriever) {
		r.reranker = rr
	}
}

func New(embedder provider.Embedder, store vector.Store, collection string, opts ...Option) *Retriever {
	r := &Retriever{
		embedder:    embedder,
		store:       store,
		collection:  collection,
		topK:        DefaultTopK,
		minScore:    DefaultMinScore,
		perDocument: DefaultPerDocument,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Retriever) Retrieve(ctx context.Context, req *api.QueryRequest) (*api.RetrievalResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyQuery
	}

	topK := r.topK
	if req.TopK > 0 {
		topK = req.TopK
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// over-fetch so threshold, per-document cap and rerank still leave
	// enough candidates to fill top-k
	fetch := topK
	if r.minScore > 0 || r.perDocument > 0 || r.reranker != nil {
		fetch = topK * candidateMultiplier
	}

	opts := []vector.SearchParamsOption{vector.WithLimit(uint(fetch))}
	if len(req.DocumentIDs) > 0 {
		opts = append(opts, vector.WithDocumentIDs(req.DocumentIDs))
	}
	if !req.Since.IsZero() {
		opts = append(opts, vector.WithSince(req.Since))
	}

	candidates, err := r.store.Search(ctx, vector.NewSearchParams(r.collection, queryVec, opts...))
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	candidates = r.threshold(candidates)
	candidates = r.capPerDocument(candidates)

	if r.reranker != nil && len(candidates) > 0 {
		candidates = r.rerank(ctx, req.Text, candidates, topK)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	slog.Debug("retrieval complete",
		"query_len", len(req.Text),
		"top_k", topK,
		"candidates", len(candidates),
	)
	return &api.RetrievalResult{Chunks: candidates}, nil
}

func (r *Retriever) threshold(candidates []*api.ScoredChunk) []*api.ScoredChunk {
	if r.minScore <= 0 {
		return candidates
	}
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Score >= r.minScore {
			kept = append(kept, c)
		}
	}
	return kept
}

func (r *Retriever) capPerDocument(candidates []*api.ScoredChunk) []*api.ScoredChunk {
	if r.perDocument <= 0 {
		return candidates
	}
	seen := make(map[string]int)
	kept := candidates[:0]
	for _, c := range candidates {
		if seen[c.Chunk.DocumentID] >= r.perDocument {
			continue
		}
		seen[c.Chunk.DocumentID]++
		kept = append(kept, c)
	}
	return kept
}

// rerank reorders candidates by cross-encoder relevance. A rerank
// failure falls back to the similarity ordering; retrieval still
// answers.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []*api.ScoredChunk, limit int) []*api.ScoredChunk {
	docs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		docs = append(docs, c.Chunk.Text)
	}

	ranked, err := r.reranker.Rerank(ctx, query, docs, limit)
	if err != nil {
		slog.Warn("rerank failed, keeping similarity order", "error", err)
		return candidates
	}

	reordered := make([]*api.ScoredChunk, 0, len(ranked))
	for _, rd := range ranked {
		if rd.Index < 0 || rd.Index >= len(candidates) {
			continue
		}
		c := candidates[rd.Index]
		reordered = append(reordered, &api.ScoredChunk{
			Chunk: c.Chunk,
			Score: rd.Score,
		})
	}
	if len(reordered) == 0 {
		return candidates
	}
	return reordered
}
