// Package provider abstracts the external embedding and generation
// model services behind uniform clients with shared batching and retry
// discipline.
package provider

import (
	"context"
	"errors"

	"github.com/minho-song/ragpipe/internal/api"
)

var (
	ErrInvalidEmbedderType  = errors.New("no embedding provider found for given type")
	ErrInvalidGeneratorType = errors.New("no generation provider found for given type")
	ErrInvalidRerankerType  = errors.New("no reranker provider found for given type")
)

const (
	EmbedderTypeOpenAI = iota
	EmbedderTypeGemini
)

const (
	GeneratorTypeOpenAI = iota
	GeneratorTypeGemini
)

const (
	RerankerTypeCohere = iota
)

type EmbedderType int
type GeneratorType int
type RerankerType int

// Embedder converts batches of texts into dense vectors. EmbedBatch
// guarantees one output vector per input text in input order, or fails
// the affected sub-batch atomically.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, q string) ([]float32, error)
	Dimensions() int
}

// Generator sends an assembled prompt to a completion model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, docs []string, limit int) ([]api.RerankedDocument, error)
}

// EmbedBackend is the raw single-request surface a model provider
// implements; the batching embedder splits work across it.
type EmbedBackend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	MaxBatchSize() int
	MaxPayloadBytes() int
}
