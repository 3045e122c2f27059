// Package transport persists ingestion job traces so callers can follow
// a document through the pipeline stages.
package transport

import (
	"context"
	"errors"
	"time"
)

var TraceExpiry = time.Hour * 24

var ErrTraceNotFound = errors.New("job trace not found")

type Transport interface {
	SetTrace(ctx context.Context, trace *JobTrace) error
	GetTrace(ctx context.Context, traceID string) (*JobTrace, error)
}

// JobTrace records where an ingestion job currently stands. Stage moves
// strictly forward; a job that fails keeps the stage it failed in and
// carries the reason.
type JobTrace struct {
	ID         string `redis:"id"`
	DocumentID string `redis:"document_id"`
	Stage      Stage  `redis:"stage"`
	Failed     bool   `redis:"failed"`
	FailReason string `redis:"fail_reason"`
	ChunkCount int    `redis:"chunk_count"`
	Partial    bool   `redis:"partial"`
	StartedAt  int64  `redis:"started_at"`
	UpdatedAt  int64  `redis:"updated_at"`
}

type Stage string

const (
	StageReceived    Stage = "received"
	StageLoading     Stage = "loading"
	StageNormalizing Stage = "normalizing"
	StageChunking    Stage = "chunking"
	StageEmbedding   Stage = "embedding"
	StageStored      Stage = "stored"

	// deletion jobs move received -> deleting -> deleted
	StageDeleting Stage = "deleting"
	StageDeleted  Stage = "deleted"
)

func NewJobTrace(id, documentID string) *JobTrace {
	now := time.Now().UnixNano()
	return &JobTrace{
		ID:         id,
		DocumentID: documentID,
		Stage:      StageReceived,
		StartedAt:  now,
		UpdatedAt:  now,
	}
}

// Advance moves the trace to the next stage.
func (t *JobTrace) Advance(stage Stage) {
	t.Stage = stage
	t.UpdatedAt = time.Now().UnixNano()
}

// Fail marks the trace failed in its current stage.
func (t *JobTrace) Fail(reason string) {
	t.Failed = true
	t.FailReason = reason
	t.UpdatedAt = time.Now().UnixNano()
}

func (t *JobTrace) Done() bool {
	return t.Failed || t.Stage == StageStored || t.Stage == StageDeleted
}
