// Package api holds the shared data model passed between pipeline stages.
package api

import "time"

type DocumentFormat string

const (
	FormatPDF  DocumentFormat = "pdf"
	FormatDOCX DocumentFormat = "docx"
	FormatHTML DocumentFormat = "html"
	FormatText DocumentFormat = "text"
)

type DocumentStatus string

const (
	DocumentStatusPending DocumentStatus = "pending"
	DocumentStatusParsed  DocumentStatus = "parsed"
	DocumentStatusFailed  DocumentStatus = "failed"
)

// Document is the unit of ingestion. Raw holds the uploaded payload
// until the loader has produced text; it is never persisted past that.
type Document struct {
	ID         string
	Format     DocumentFormat
	Raw        []byte
	Status     DocumentStatus
	IngestedAt time.Time
}

// DocumentContent is the loader output: extracted plain text plus an
// optional page map used later for citation. Partial is set when parts
// of the payload could not be extracted but the rest degraded gracefully.
type DocumentContent struct {
	Text    string
	Pages   []PageSpan
	Partial bool
}

// PageSpan maps a page (or structural unit) onto a byte range of Text.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

type ChunkStatus string

const (
	ChunkStatusTextReady ChunkStatus = "text-ready"
	ChunkStatusEmbedded  ChunkStatus = "embedded"
	ChunkStatusFailed    ChunkStatus = "failed"
)

// Chunk is the atomic unit of embedding and retrieval. Start and End are
// offsets into the normalized document text; consecutive chunks of one
// document overlap by the configured window except at document boundaries.
type Chunk struct {
	ID         string
	DocumentID string
	Ordinal    int
	Text       string
	TokenCount int
	Start      int
	End        int
	Vector     []float32
	Status     ChunkStatus
	IngestedAt time.Time
}

// QueryRequest is transient; it is never persisted.
type QueryRequest struct {
	Text        string
	TopK        int
	DocumentIDs []string
	Since       time.Time
}

type ScoredChunk struct {
	Chunk *Chunk
	Score float64
}

// RetrievalResult is an ordered, deduplicated candidate set capped at top-k.
type RetrievalResult struct {
	Chunks []*ScoredChunk
}

func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Chunks) == 0
}

type GenerationStatus string

const (
	GenerationStatusComplete GenerationStatus = "complete"
	GenerationStatusFailed   GenerationStatus = "failed"
)

// GenerationAnswer is the final query-time product. CitedChunks lists the
// identifiers of every chunk that was actually included in the prompt.
type GenerationAnswer struct {
	Text        string
	CitedChunks []string
	Status      GenerationStatus
}
