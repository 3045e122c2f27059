// Package pipeline orchestrates the ingestion and query flows across
// the loader, normalizer, chunker, providers and the vector store.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/chunker"
	"github.com/minho-song/ragpipe/internal/loader"
	"github.com/minho-song/ragpipe/internal/normalizer"
	"github.com/minho-song/ragpipe/internal/provider"
	"github.com/minho-song/ragpipe/internal/transport"
	"github.com/minho-song/ragpipe/internal/vector"
)

// Ingestor runs a document through load, normalize, chunk, embed and
// store. Stage transitions are written to the job trace as they happen;
// a failure keeps the stage it occurred in. Nothing is persisted to the
// vector store until every chunk has embedded, so a failed run leaves a
// previously ingested version of the document intact.
type Ingestor struct {
	normalizer *normalizer.Normalizer
	chunker    *chunker.Chunker
	embedder   provider.Embedder
	store      vector.Store
	transport  transport.Transport
	collection string
}

type IngestResult struct {
	DocumentID string
	ChunkCount int
	Partial    bool
}

func NewIngestor(
	n *normalizer.Normalizer,
	c *chunker.Chunker,
	embedder provider.Embedder,
	store vector.Store,
	tp transport.Transport,
	collection string,
) *Ingestor {
	return &Ingestor{
		normalizer: n,
		chunker:    c,
		embedder:   embedder,
		store:      store,
		transport:  tp,
		collection: collection,
	}
}

func (in *Ingestor) Ingest(ctx context.Context, jobID string, doc *api.Document) (*IngestResult, error) {
	trace := transport.NewJobTrace(jobID, doc.ID)
	in.setTrace(ctx, trace)

	fail := func(stage transport.Stage, err error) (*IngestResult, error) {
		doc.Status = api.DocumentStatusFailed
		trace.Fail(err.Error())
		in.setTrace(ctx, trace)
		return nil, fmt.Errorf("ingestion of document %s failed in stage %s: %w", doc.ID, stage, err)
	}

	// the attempted stage goes on the trace before the cancellation
	// check so a cancelled job reports the stage it failed in
	advance := func(stage transport.Stage) error {
		trace.Advance(stage)
		in.setTrace(ctx, trace)
		return ctx.Err()
	}

	if err := advance(transport.StageLoading); err != nil {
		return fail(transport.StageLoading, err)
	}
	content, err := loader.Load(ctx, doc.Raw, doc.Format)
	if err != nil {
		return fail(transport.StageLoading, err)
	}
	doc.Status = api.DocumentStatusParsed
	trace.Partial = content.Partial

	if err := advance(transport.StageNormalizing); err != nil {
		return fail(transport.StageNormalizing, err)
	}
	text := in.normalizer.Normalize(content.Text)

	if err := advance(transport.StageChunking); err != nil {
		return fail(transport.StageChunking, err)
	}
	chunks := in.buildChunks(doc, text)
	trace.ChunkCount = len(chunks)

	// a document with no extractable text ingests as zero chunks
	if len(chunks) == 0 {
		if err := advance(transport.StageStored); err != nil {
			return fail(transport.StageStored, err)
		}
		slog.Info("document ingested empty", "document_id", doc.ID, "job_id", jobID)
		return &IngestResult{DocumentID: doc.ID, Partial: content.Partial}, nil
	}

	if err := advance(transport.StageEmbedding); err != nil {
		return fail(transport.StageEmbedding, err)
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	vecs, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		for _, c := range chunks {
			c.Status = api.ChunkStatusFailed
		}
		return fail(transport.StageEmbedding, err)
	}
	for i, c := range chunks {
		c.Vector = vecs[i]
		c.Status = api.ChunkStatusEmbedded
	}

	if err := in.persist(ctx, chunks); err != nil {
		return fail(transport.StageEmbedding, err)
	}
	if err := advance(transport.StageStored); err != nil {
		return fail(transport.StageStored, err)
	}

	slog.Info("document ingested",
		"document_id", doc.ID,
		"job_id", jobID,
		"chunks", len(chunks),
		"partial", content.Partial,
	)
	return &IngestResult{
		DocumentID: doc.ID,
		ChunkCount: len(chunks),
		Partial:    content.Partial,
	}, nil
}

// buildChunks materializes the chunk sequence. Chunk IDs derive from
// document ID and ordinal, so re-ingesting a document overwrites its
// previous chunks point for point.
func (in *Ingestor) buildChunks(doc *api.Document, text string) []*api.Chunk {
	now := time.Now().UTC()
	var chunks []*api.Chunk
	for seg := range in.chunker.Chunk(text) {
		chunks = append(chunks, &api.Chunk{
			ID:         chunkID(doc.ID, seg.Ordinal),
			DocumentID: doc.ID,
			Ordinal:    seg.Ordinal,
			Text:       seg.Text,
			TokenCount: seg.TokenCount,
			Start:      seg.Start,
			End:        seg.End,
			Status:     api.ChunkStatusTextReady,
			IngestedAt: now,
		})
	}
	return chunks
}

// persist replaces the document's chunks in the store. The delete
// clears stale chunks from an earlier, longer version of the document.
func (in *Ingestor) persist(ctx context.Context, chunks []*api.Chunk) error {
	dims := in.embedder.Dimensions()
	if err := in.store.EnsureCollection(ctx, in.collection, dims); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", in.collection, err)
	}
	if err := in.store.DeleteDocument(ctx, in.collection, chunks[0].DocumentID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}
	if err := in.store.Upsert(ctx, in.collection, vector.CreatePoints(chunks)); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

// Delete removes a document's chunks from the store.
func (in *Ingestor) Delete(ctx context.Context, documentID string) error {
	return in.store.DeleteDocument(ctx, in.collection, documentID)
}

func (in *Ingestor) setTrace(ctx context.Context, trace *transport.JobTrace) {
	if in.transport == nil {
		return
	}
	if err := in.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", trace.ID, "err", err)
	}
}

func chunkID(documentID string, ordinal int) string {
	name := fmt.Sprintf("%s:%d", documentID, ordinal)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
