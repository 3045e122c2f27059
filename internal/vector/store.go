// Package vector provides persistent storage and similarity search over
// embedded chunks.
package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minho-song/ragpipe/internal/api"
)

var (
	ErrInvalidStoreType      = errors.New("no vector store found for given type")
	ErrFailedStoreInitialize = errors.New("failed to initialise vector store")

	// ErrDimensionMismatch rejects a whole upsert when any vector does
	// not match the collection's configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

const (
	StoreTypeQdrant = iota
	StoreTypeMemory
)

var storeTypeMap = map[string]StoreType{
	"qdrant": StoreTypeQdrant,
	"memory": StoreTypeMemory,
}

type StoreType int

// Store persists embedded chunks and answers nearest-neighbour queries.
// Upsert is atomic per point and idempotent on point ID; re-ingesting a
// document overwrites its previous chunks rather than duplicating them.
type Store interface {
	EnsureCollection(ctx context.Context, name string, dims int) error

	Upsert(ctx context.Context, collection string, points []*Point) error
	DeleteDocument(ctx context.Context, collection string, documentID string) error

	Search(ctx context.Context, params *SearchParams) ([]*api.ScoredChunk, error)

	Close() error
}

func NewStore(storeName string, addr string) (Store, error) {
	storeType, ok := storeTypeMap[storeName]
	if !ok {
		return nil, ErrInvalidStoreType
	}

	switch storeType {
	case StoreTypeQdrant:
		store, err := NewQdrantStore(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedStoreInitialize, err)
		}
		return store, nil
	case StoreTypeMemory:
		return NewMemoryStore(), nil
	default:
		return nil, ErrInvalidStoreType
	}
}

// Point is a stored chunk: the embedding plus everything needed to
// reconstruct the chunk for citation without consulting another system.
type Point struct {
	ID         string
	Vector     []float32
	DocumentID string
	Ordinal    int
	Text       string
	TokenCount int
	Start      int
	End        int
	IngestedAt time.Time
}

// CreatePoints converts embedded chunks into storable points. Chunks
// without a vector are skipped; they belong to a failed batch.
func CreatePoints(chunks []*api.Chunk) []*Point {
	points := make([]*Point, 0, len(chunks))
	for _, c := range chunks {
		if c.Status != api.ChunkStatusEmbedded || len(c.Vector) == 0 {
			continue
		}
		points = append(points, &Point{
			ID:         c.ID,
			Vector:     c.Vector,
			DocumentID: c.DocumentID,
			Ordinal:    c.Ordinal,
			Text:       c.Text,
			TokenCount: c.TokenCount,
			Start:      c.Start,
			End:        c.End,
			IngestedAt: c.IngestedAt,
		})
	}
	return points
}

func (p *Point) chunk() *api.Chunk {
	return &api.Chunk{
		ID:         p.ID,
		DocumentID: p.DocumentID,
		Ordinal:    p.Ordinal,
		Text:       p.Text,
		TokenCount: p.TokenCount,
		Start:      p.Start,
		End:        p.End,
		Status:     api.ChunkStatusEmbedded,
		IngestedAt: p.IngestedAt,
	}
}

type SearchParams struct {
	collection  string
	query       []float32
	limit       uint
	documentIDs []string
	since       time.Time
}

type SearchParamsOption func(*SearchParams)

func NewSearchParams(collection string, query []float32, opts ...SearchParamsOption) *SearchParams {
	sp := &SearchParams{
		collection: collection,
		query:      query,
	}
	for _, opt := range opts {
		opt(sp)
	}
	return sp
}

func WithLimit(limit uint) SearchParamsOption {
	return func(sp *SearchParams) {
		sp.limit = limit
	}
}

// WithDocumentIDs restricts results to chunks of the given documents.
func WithDocumentIDs(ids []string) SearchParamsOption {
	return func(sp *SearchParams) {
		sp.documentIDs = ids
	}
}

// WithSince restricts results to chunks ingested at or after t.
func WithSince(t time.Time) SearchParamsOption {
	return func(sp *SearchParams) {
		sp.since = t
	}
}
