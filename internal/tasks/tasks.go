// Package tasks defines the asynq task types and payloads for
// background ingestion.
package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/minho-song/ragpipe/internal/api"
)

const (
	TypeIngest = "ragpipe:ingest"
	TypeDelete = "ragpipe:delete"
)

type ingestTaskPayload struct {
	DocumentID string             `json:"document_id"`
	Format     api.DocumentFormat `json:"format"`
	Raw        []byte             `json:"raw"`
}

func NewIngestTask(doc *api.Document) (*asynq.Task, error) {
	tp := ingestTaskPayload{
		DocumentID: doc.ID,
		Format:     doc.Format,
		Raw:        doc.Raw,
	}
	payload, err := json.Marshal(tp)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngest, payload), nil
}

type deleteTaskPayload struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
}

// NewDeleteTask carries the caller-assigned job identifier so the
// deletion is pollable through the same trace endpoint as ingestion.
func NewDeleteTask(jobID, documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(deleteTaskPayload{
		JobID:      jobID,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDelete, payload), nil
}
