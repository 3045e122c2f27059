package server

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/retriever"
	"github.com/minho-song/ragpipe/internal/tasks"
	"github.com/minho-song/ragpipe/internal/transport"
)

type uploadResponse struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	resp, err := s.enqueueDocument(c, file, header)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// handleBulkUpload accepts several files in one request and enqueues an
// independent ingestion job for each.
func (s *Server) handleBulkUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	var accepted []uploadResponse
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open " + header.Filename})
			return
		}
		resp, err := s.enqueueDocument(c, file, header)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		accepted = append(accepted, *resp)
	}
	c.JSON(http.StatusAccepted, gin.H{"documents": accepted})
}

func (s *Server) enqueueDocument(c *gin.Context, file multipart.File, header *multipart.FileHeader) (*uploadResponse, error) {
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}

	doc := &api.Document{
		ID:     uuid.NewString(),
		Format: detectFormat(header),
		Raw:    raw,
		Status: api.DocumentStatusPending,
	}

	task, err := tasks.NewIngestTask(doc)
	if err != nil {
		return nil, err
	}
	info, err := s.queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		return nil, errors.New("failed to enqueue ingestion")
	}

	return &uploadResponse{JobID: info.ID, DocumentID: doc.ID}, nil
}

func (s *Server) handleDelete(c *gin.Context) {
	id := c.Param("id")
	jobID := uuid.NewString()

	task, err := tasks.NewDeleteTask(jobID, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.queue.EnqueueContext(c.Request.Context(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue deletion"})
		return
	}

	// deletions are pollable through the same job endpoint as uploads
	if err := s.transport.SetTrace(c.Request.Context(), transport.NewJobTrace(jobID, id)); err != nil {
		slog.Error("failed to set trace", "id", jobID, "err", err)
	}

	c.JSON(http.StatusAccepted, uploadResponse{JobID: jobID, DocumentID: id})
}

func (s *Server) handleJobStatus(c *gin.Context) {
	trace, err := s.transport.GetTrace(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, transport.ErrTraceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job_id":      trace.ID,
		"document_id": trace.DocumentID,
		"stage":       trace.Stage,
		"failed":      trace.Failed,
		"fail_reason": trace.FailReason,
		"chunk_count": trace.ChunkCount,
		"partial":     trace.Partial,
	})
}

type queryRequest struct {
	Query       string   `json:"query" binding:"required"`
	TopK        int      `json:"top_k"`
	DocumentIDs []string `json:"document_ids"`
	Since       string   `json:"since"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	var since time.Time
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC 3339"})
			return
		}
		since = t
	}

	ans, err := s.querier.Answer(c.Request.Context(), &api.QueryRequest{
		Text:        req.Query,
		TopK:        req.TopK,
		DocumentIDs: req.DocumentIDs,
		Since:       since,
	})
	if err != nil {
		switch {
		case errors.Is(err, retriever.ErrEmptyQuery):
			c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		case errors.Is(err, api.ErrContentPolicyRejected):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "query rejected by content policy"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"answer":       ans.Text,
		"cited_chunks": ans.CitedChunks,
		"status":       ans.Status,
	})
}

func detectFormat(header *multipart.FileHeader) api.DocumentFormat {
	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf":
		return api.FormatPDF
	case ".docx":
		return api.FormatDOCX
	case ".html", ".htm":
		return api.FormatHTML
	default:
		ct := header.Header.Get("Content-Type")
		switch {
		case strings.Contains(ct, "pdf"):
			return api.FormatPDF
		case strings.Contains(ct, "wordprocessingml"):
			return api.FormatDOCX
		case strings.Contains(ct, "html"):
			return api.FormatHTML
		}
		return api.FormatText
	}
}
