package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/minho-song/ragpipe/internal/config"
	"github.com/minho-song/ragpipe/internal/pipeline"
	"github.com/minho-song/ragpipe/internal/prompt"
	"github.com/minho-song/ragpipe/internal/provider"
	"github.com/minho-song/ragpipe/internal/retriever"
	"github.com/minho-song/ragpipe/internal/transport"
	"github.com/minho-song/ragpipe/internal/vector"
	"github.com/minho-song/ragpipe/server"
	"github.com/minho-song/ragpipe/worker"
)

const (
	ProgramName = "ragpipe"
	Version     = "v0.1.0"
)

type serveCmd struct{}

type workerCmd struct{}

type args struct {
	Server *serveCmd  `arg:"subcommand:serve" help:"start the HTTP server"`
	Worker *workerCmd `arg:"subcommand:work" help:"start the ingestion worker"`
	Config string     `arg:"--config,-c" default:"config.yaml" help:"path to the config file"`
	Debug  bool       `arg:"--debug" help:"enable debug logging"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func main() {
	var args args

	p, err := arg.NewParser(arg.Config{Program: strings.ToLower(ProgramName)}, &args)
	if err != nil {
		log.Fatalf("there was an error in the definition of the Go struct: %v", err)
	}
	p.MustParse(os.Args[1:])

	if p.Subcommand() == nil {
		p.WriteUsage(os.Stdout)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if args.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg, err := config.Read(args.Config)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	switch p.Subcommand().(type) {
	case *serveCmd:
		err = startServer(cfg)
	case *workerCmd:
		err = worker.New(cfg).Start()
	default:
		p.FailSubcommand("unrecognized command", p.SubcommandNames()...)
	}

	if err != nil {
		slog.Error("exited with error", "err", err)
		os.Exit(1)
	}
}

func startServer(cfg config.Config) error {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	queue := asynq.NewClientFromRedisClient(rdb)
	tp := transport.NewRedisTransport(rdb)

	store, err := vector.NewStore(cfg.Store, cfg.QdrantAddr)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	defer store.Close()

	querier, err := buildQuerier(cfg, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.New(cfg.ListenAddr, queue, tp, querier).Run(ctx)
}

func buildQuerier(cfg config.Config, store vector.Store) (*pipeline.Querier, error) {
	embedder, err := worker.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	generator, err := buildGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize generator: %w", err)
	}

	ropts := []retriever.Option{
		retriever.WithTopK(cfg.Retriever.TopK),
		retriever.WithMinScore(cfg.Retriever.MinScore),
		retriever.WithPerDocumentCap(cfg.Retriever.PerDocument),
	}
	if cfg.Reranker.Enabled {
		rr, err := provider.NewReranker(provider.RerankerTypeCohere, cfg.Reranker.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize reranker: %w", err)
		}
		ropts = append(ropts, retriever.WithReranker(rr))
	}
	r := retriever.New(embedder, store, cfg.Collection, ropts...)

	aopts := []prompt.Option{prompt.WithMaxPromptLen(cfg.Prompt.MaxLen)}
	if cfg.Prompt.TemplatePath != "" {
		text, err := os.ReadFile(cfg.Prompt.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt template: %w", err)
		}
		opt, err := prompt.WithTemplate(string(text))
		if err != nil {
			return nil, err
		}
		aopts = append(aopts, opt)
	}
	assembler := prompt.NewAssembler(aopts...)

	return pipeline.NewQuerier(r, assembler, generator,
		pipeline.WithRetrieveTimeout(cfg.Timeouts.Retrieve),
		pipeline.WithGenerateTimeout(cfg.Timeouts.Generate),
	), nil
}

func buildGenerator(cfg config.Config) (provider.Generator, error) {
	var ptype provider.GeneratorType
	switch cfg.Generator.Provider {
	case "openai":
		ptype = provider.GeneratorTypeOpenAI
	case "gemini":
		ptype = provider.GeneratorTypeGemini
	default:
		return nil, fmt.Errorf("unknown generator provider %q", cfg.Generator.Provider)
	}
	return provider.NewGenerator(ptype, provider.GeneratorParams{
		Model: cfg.Generator.Model,
	})
}
