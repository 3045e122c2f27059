package vector

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/minho-song/ragpipe/internal/api"
)

type QdrantStore struct {
	client     *qdrant.Client
	waitUpsert bool

	mu   sync.Mutex
	dims map[string]int
}

func NewQdrantStore(addr string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant port %q: %w", portStr, err)
	}

	c, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, err
	}

	return &QdrantStore{
		client:     c,
		waitUpsert: true,
		dims:       make(map[string]int),
	}, nil
}

func NewQdrantStoreDefault() (*QdrantStore, error) {
	return NewQdrantStore("localhost:6334")
}

func (s *QdrantStore) EnsureCollection(ctx context.Context, name string, dims int) error {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return err
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.dims[name] = dims
	s.mu.Unlock()
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []*Point) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	dims := s.dims[collection]
	s.mu.Unlock()

	upsertPoints := make([]*qdrant.PointStruct, 0, len(points))
	for _, point := range points {
		if dims > 0 && len(point.Vector) != dims {
			return fmt.Errorf("%w: point %s has %d dimensions, collection %s expects %d",
				ErrDimensionMismatch, point.ID, len(point.Vector), collection, dims)
		}
		upsertPoints = append(upsertPoints, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(point.ID),
			Vectors: qdrant.NewVectors(point.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":      point.DocumentID,
				"ordinal":     int64(point.Ordinal),
				"text":        point.Text,
				"token_count": int64(point.TokenCount),
				"start":       int64(point.Start),
				"end":         int64(point.End),
				"ingested_at": point.IngestedAt.Unix(),
			}),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           &s.waitUpsert,
		Points:         upsertPoints,
	})
	return err
}

func (s *QdrantStore) DeleteDocument(ctx context.Context, collection string, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("doc_id", documentID),
			},
		}),
	})
	return err
}

func (s *QdrantStore) Search(ctx context.Context, params *SearchParams) ([]*api.ScoredChunk, error) {
	queryPoints := &qdrant.QueryPoints{
		CollectionName: params.collection,
		Query:          qdrant.NewQuery(params.query...),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if params.limit > 0 {
		limit := uint64(params.limit)
		queryPoints.Limit = &limit
	}

	var conds []*qdrant.Condition
	if len(params.documentIDs) > 0 {
		conds = append(conds, qdrant.NewMatchKeywords("doc_id", params.documentIDs...))
	}
	if !params.since.IsZero() {
		conds = append(conds, qdrant.NewRange("ingested_at", &qdrant.Range{
			Gte: qdrant.PtrOf(float64(params.since.Unix())),
		}))
	}
	if len(conds) > 0 {
		queryPoints.Filter = &qdrant.Filter{Must: conds}
	}

	res, err := s.client.Query(ctx, queryPoints)
	if err != nil {
		return nil, err
	}

	scored := make([]*api.ScoredChunk, 0, len(res))
	for _, sp := range res {
		scored = append(scored, &api.ScoredChunk{
			Chunk: chunkFromPayload(sp.Id.GetUuid(), sp.Payload),
			Score: float64(sp.Score),
		})
	}
	return scored, nil
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) *api.Chunk {
	c := &api.Chunk{
		ID:     id,
		Status: api.ChunkStatusEmbedded,
	}
	if v, ok := payload["doc_id"]; ok {
		c.DocumentID = v.GetStringValue()
	}
	if v, ok := payload["ordinal"]; ok {
		c.Ordinal = int(v.GetIntegerValue())
	}
	if v, ok := payload["text"]; ok {
		c.Text = v.GetStringValue()
	}
	if v, ok := payload["token_count"]; ok {
		c.TokenCount = int(v.GetIntegerValue())
	}
	if v, ok := payload["start"]; ok {
		c.Start = int(v.GetIntegerValue())
	}
	if v, ok := payload["end"]; ok {
		c.End = int(v.GetIntegerValue())
	}
	if v, ok := payload["ingested_at"]; ok {
		c.IngestedAt = unixTime(v.GetIntegerValue())
	}
	return c
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (s *QdrantStore) Close() error {
	return s.client.Close()
}
