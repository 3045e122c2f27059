package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/pipeline"
	"github.com/minho-song/ragpipe/internal/transport"
)

type TaskHandler struct {
	ingestor      *pipeline.Ingestor
	transport     transport.Transport
	ingestTimeout time.Duration
}

func NewTaskHandler(ingestor *pipeline.Ingestor, tp transport.Transport, ingestTimeout time.Duration) *TaskHandler {
	return &TaskHandler{
		ingestor:      ingestor,
		transport:     tp,
		ingestTimeout: ingestTimeout,
	}
}

func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	switch t.Type() {
	case TypeIngest:
		return h.processIngest(ctx, t)
	case TypeDelete:
		return h.processDelete(ctx, t)
	default:
		return fmt.Errorf("unrecognized task type %q (%w)", t.Type(), asynq.SkipRetry)
	}
}

func (h TaskHandler) processIngest(ctx context.Context, t *asynq.Task) error {
	var p ingestTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed ingest payload: %v (%w)", err, asynq.SkipRetry)
	}

	id := t.ResultWriter().TaskID()
	slog.Info("received ingest task", "id", id, "document_id", p.DocumentID, "format", p.Format, "size", len(p.Raw))

	if h.ingestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.ingestTimeout)
		defer cancel()
	}

	doc := &api.Document{
		ID:         p.DocumentID,
		Format:     p.Format,
		Raw:        p.Raw,
		Status:     api.DocumentStatusPending,
		IngestedAt: time.Now().UTC(),
	}

	res, err := h.ingestor.Ingest(ctx, id, doc)
	if err != nil {
		slog.Error("ingest task failed", "id", id, "document_id", p.DocumentID, "err", err)
		// the trace already records the failure; retrying the task
		// would re-run a deterministic failure for corrupt input
		return fmt.Errorf("ingest failed: %v (%w)", err, asynq.SkipRetry)
	}

	slog.Info("ingest task finished", "id", id, "document_id", res.DocumentID, "chunks", res.ChunkCount)
	return nil
}

func (h TaskHandler) processDelete(ctx context.Context, t *asynq.Task) error {
	var p deleteTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("malformed delete payload: %v (%w)", err, asynq.SkipRetry)
	}

	slog.Info("received delete task", "id", p.JobID, "document_id", p.DocumentID)

	trace := transport.NewJobTrace(p.JobID, p.DocumentID)
	if h.transport != nil {
		if existing, err := h.transport.GetTrace(ctx, p.JobID); err == nil {
			trace = existing
		}
	}
	trace.Advance(transport.StageDeleting)
	h.setTrace(ctx, trace)

	if err := h.ingestor.Delete(ctx, p.DocumentID); err != nil {
		trace.Fail(err.Error())
		h.setTrace(ctx, trace)
		return fmt.Errorf("delete failed: %w", err)
	}

	trace.Advance(transport.StageDeleted)
	h.setTrace(ctx, trace)
	return nil
}

func (h TaskHandler) setTrace(ctx context.Context, trace *transport.JobTrace) {
	if h.transport == nil {
		return
	}
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", trace.ID, "err", err)
	}
}
