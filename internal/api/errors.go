package api

import "errors"

// External-service error taxonomy shared by the provider clients and
// the orchestrator. Embedding and generation failures may wrap a
// transient cause that was already retried; policy rejections are
// terminal and never retried.
var (
	ErrEmbeddingFailed       = errors.New("embedding request failed")
	ErrGenerationFailed      = errors.New("generation request failed")
	ErrContentPolicyRejected = errors.New("generation rejected by content policy")
)

// RerankedDocument references an input document by position together
// with its relevance score.
type RerankedDocument struct {
	Index int
	Score float64
}
