package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/prompt"
	"github.com/minho-song/ragpipe/internal/provider"
	"github.com/minho-song/ragpipe/internal/retriever"
)

const (
	DefaultRetrieveTimeout = 10 * time.Second
	DefaultGenerateTimeout = 60 * time.Second
)

// NoContextAnswer is returned when retrieval finds nothing relevant.
// The generator is never called in that case.
const NoContextAnswer = "I could not find any relevant information to answer this question."

// Querier runs retrieve, assemble and generate under per-phase timeout
// budgets.
type Querier struct {
	retriever *retriever.Retriever
	assembler *prompt.Assembler
	generator provider.Generator

	retrieveTimeout time.Duration
	generateTimeout time.Duration
}

type QuerierOption func(*Querier)

func WithRetrieveTimeout(d time.Duration) QuerierOption {
	return func(q *Querier) {
		if d > 0 {
			q.retrieveTimeout = d
		}
	}
}

func WithGenerateTimeout(d time.Duration) QuerierOption {
	return func(q *Querier) {
		if d > 0 {
			q.generateTimeout = d
		}
	}
}

func NewQuerier(r *retriever.Retriever, a *prompt.Assembler, g provider.Generator, opts ...QuerierOption) *Querier {
	q := &Querier{
		retriever:       r,
		assembler:       a,
		generator:       g,
		retrieveTimeout: DefaultRetrieveTimeout,
		generateTimeout: DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Querier) Answer(ctx context.Context, req *api.QueryRequest) (*api.GenerationAnswer, error) {
	rctx, cancel := context.WithTimeout(ctx, q.retrieveTimeout)
	result, err := q.retriever.Retrieve(rctx, req)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	if result.Empty() {
		slog.Info("query matched no chunks", "query_len", len(req.Text))
		return &api.GenerationAnswer{
			Text:   NoContextAnswer,
			Status: api.GenerationStatusComplete,
		}, nil
	}

	p, err := q.assembler.Assemble(req.Text, result)
	if err != nil {
		return nil, fmt.Errorf("prompt assembly failed: %w", err)
	}

	gctx, cancel := context.WithTimeout(ctx, q.generateTimeout)
	defer cancel()
	text, err := q.generator.Generate(gctx, p.Text)
	if err != nil {
		if errors.Is(err, api.ErrContentPolicyRejected) {
			return &api.GenerationAnswer{
				CitedChunks: p.CitedChunks,
				Status:      api.GenerationStatusFailed,
			}, err
		}
		return nil, err
	}

	return &api.GenerationAnswer{
		Text:        text,
		CitedChunks: p.CitedChunks,
		Status:      api.GenerationStatusComplete,
	}, nil
}
