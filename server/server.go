// Package server exposes the HTTP API for document ingestion and
// querying.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/minho-song/ragpipe/internal/pipeline"
	"github.com/minho-song/ragpipe/internal/transport"
)

const maxUploadBytes = 32 << 20

type Server struct {
	listenAddr string

	queue     *asynq.Client
	transport transport.Transport
	querier   *pipeline.Querier

	httpServer *http.Server
}

func New(listenAddr string, queue *asynq.Client, tp transport.Transport, querier *pipeline.Querier) *Server {
	return &Server{
		listenAddr: listenAddr,
		queue:      queue,
		transport:  tp,
		querier:    querier,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	v1 := r.Group("/v1")
	{
		v1.POST("/documents", s.handleUpload)
		v1.POST("/documents/bulk", s.handleBulkUpload)
		v1.DELETE("/documents/:id", s.handleDelete)
		v1.GET("/jobs/:id", s.handleJobStatus)
		v1.POST("/query", s.handleQuery)
	}
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Run serves until the context is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.listenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
