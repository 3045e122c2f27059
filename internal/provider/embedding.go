package provider

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/retry"
)

const embedConcurrency = 4

// BatchEmbedder splits oversized inputs into sub-batches that respect
// the backend's batch-size and payload limits, embeds them in parallel
// and recombines the vectors preserving input order. Each sub-batch is
// retried under the shared policy and fails atomically: the backend
// either returns one vector per text or the whole sub-batch errors.
type BatchEmbedder struct {
	backend EmbedBackend
	policy  retry.Policy
}

func NewBatchEmbedder(backend EmbedBackend, policy retry.Policy) *BatchEmbedder {
	return &BatchEmbedder{
		backend: backend,
		policy:  policy,
	}
}

func (e *BatchEmbedder) Dimensions() int {
	return e.backend.Dimensions()
}

func (e *BatchEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{q})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batches := e.split(texts)
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	offset := 0
	for i, batch := range batches {
		start := offset
		offset += len(batch)

		g.Go(func() error {
			vecs, err := retry.Do(gctx, e.policy, Classify, func(ctx context.Context) ([][]float32, error) {
				return e.embedSubBatch(ctx, batch)
			})
			if err != nil {
				return fmt.Errorf("%w: sub-batch [%d:%d]: %w", api.ErrEmbeddingFailed, start, start+len(batch), err)
			}
			results[i] = vecs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for _, vecs := range results {
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *BatchEmbedder) embedSubBatch(ctx context.Context, batch []string) ([][]float32, error) {
	vecs, err := e.backend.Embed(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(batch) {
		// order can no longer be trusted, fail the sub-batch whole
		return nil, fmt.Errorf("backend returned %d vectors for %d texts", len(vecs), len(batch))
	}
	return vecs, nil
}

// split cuts the input on the backend's batch-size and payload limits.
// A single text above the payload limit still goes out alone; the
// backend decides whether to reject it.
func (e *BatchEmbedder) split(texts []string) [][]string {
	maxItems := e.backend.MaxBatchSize()
	if maxItems <= 0 {
		maxItems = len(texts)
	}
	maxBytes := e.backend.MaxPayloadBytes()

	var batches [][]string
	var cur []string
	curBytes := 0

	for _, t := range texts {
		over := len(cur) >= maxItems ||
			(maxBytes > 0 && curBytes+len(t) > maxBytes && len(cur) > 0)
		if over {
			batches = append(batches, cur)
			cur = nil
			curBytes = 0
		}
		cur = append(cur, t)
		curBytes += len(t)
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}

	if len(batches) > 1 {
		slog.Debug("split embedding input", "texts", len(texts), "sub_batches", len(batches))
	}
	return batches
}
