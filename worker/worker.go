// Package worker runs the background ingestion workers.
package worker

import (
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/minho-song/ragpipe/internal/chunker"
	"github.com/minho-song/ragpipe/internal/config"
	"github.com/minho-song/ragpipe/internal/normalizer"
	"github.com/minho-song/ragpipe/internal/pipeline"
	"github.com/minho-song/ragpipe/internal/provider"
	"github.com/minho-song/ragpipe/internal/tasks"
	"github.com/minho-song/ragpipe/internal/transport"
	"github.com/minho-song/ragpipe/internal/vector"
)

type Worker struct {
	cfg config.Config
}

func New(cfg config.Config) *Worker {
	return &Worker{cfg: cfg}
}

func (w *Worker) Start() error {
	rdb := redis.NewClient(&redis.Options{
		Addr: w.cfg.RedisAddr,
	})
	defer rdb.Close()

	srv := asynq.NewServerFromRedisClient(
		rdb,
		asynq.Config{
			Concurrency: w.cfg.Worker.Concurrency,
		},
	)

	store, err := vector.NewStore(w.cfg.Store, w.cfg.QdrantAddr)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer store.Close()

	embedder, err := NewEmbedder(w.cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var copts []chunker.Option
	if tc, err := chunker.NewTiktokenCounter("cl100k_base"); err != nil {
		slog.Warn("token encoder unavailable, using approximate counts", "err", err)
	} else {
		copts = append(copts, chunker.WithTokenCounter(tc))
	}
	ch, err := chunker.New(w.cfg.Chunker.MaxLen, w.cfg.Chunker.Overlap, copts...)
	if err != nil {
		return fmt.Errorf("failed to initialize chunker: %w", err)
	}

	tp := transport.NewRedisTransport(rdb)
	ingestor := pipeline.NewIngestor(
		normalizer.New(),
		ch,
		embedder,
		store,
		tp,
		w.cfg.Collection,
	)

	mux := asynq.NewServeMux()
	handler := tasks.NewTaskHandler(ingestor, tp, w.cfg.Timeouts.Ingest)
	mux.Handle(tasks.TypeIngest, handler)
	mux.Handle(tasks.TypeDelete, handler)

	slog.Info("worker starting",
		"concurrency", w.cfg.Worker.Concurrency,
		"store", w.cfg.Store,
		"collection", w.cfg.Collection,
	)
	return srv.Run(mux)
}

// NewEmbedder builds the configured embedding client.
func NewEmbedder(cfg config.Config) (provider.Embedder, error) {
	ptype, err := embedderType(cfg.Embedder.Provider)
	if err != nil {
		return nil, err
	}
	return provider.NewEmbedder(ptype, provider.EmbedderParams{
		Model:      cfg.Embedder.Model,
		Dimensions: cfg.Embedder.Dimensions,
	})
}

func embedderType(name string) (provider.EmbedderType, error) {
	switch name {
	case "openai":
		return provider.EmbedderTypeOpenAI, nil
	case "gemini":
		return provider.EmbedderTypeGemini, nil
	default:
		return 0, fmt.Errorf("unknown embedder provider %q", name)
	}
}
