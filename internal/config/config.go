// Package config reads and validates the service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

var (
	ErrInvalidChunkerConfig = errors.New("invalid chunker configuration")
	ErrInvalidProvider      = errors.New("invalid provider name")
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	RedisAddr  string `yaml:"redis_addr"`
	QdrantAddr string `yaml:"qdrant_addr"`

	Store      string `yaml:"store"`
	Collection string `yaml:"collection"`

	Embedder  EmbedderConfig  `yaml:"embedder"`
	Generator GeneratorConfig `yaml:"generator"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Worker    WorkerConfig    `yaml:"worker"`
	Timeouts  TimeoutConfig   `yaml:"timeouts"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

type GeneratorConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type RerankerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
}

type ChunkerConfig struct {
	MaxLen  int `yaml:"max_len"`
	Overlap int `yaml:"overlap"`
}

type RetrieverConfig struct {
	TopK        int     `yaml:"top_k"`
	MinScore    float64 `yaml:"min_score"`
	PerDocument int     `yaml:"per_document"`
}

type PromptConfig struct {
	MaxLen       int    `yaml:"max_len"`
	TemplatePath string `yaml:"template_path"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type TimeoutConfig struct {
	Retrieve time.Duration `yaml:"retrieve"`
	Generate time.Duration `yaml:"generate"`
	Ingest   time.Duration `yaml:"ingest"`
}

func Default() Config {
	return Config{
		ListenAddr: ":8080",
		RedisAddr:  "localhost:6379",
		QdrantAddr: "localhost:6334",
		Store:      "qdrant",
		Collection: "documents",
		Embedder: EmbedderConfig{
			Provider:   "openai",
			Dimensions: 1536,
		},
		Generator: GeneratorConfig{
			Provider: "openai",
		},
		Chunker: ChunkerConfig{
			MaxLen:  1000,
			Overlap: 100,
		},
		Retriever: RetrieverConfig{
			TopK: 5,
		},
		Prompt: PromptConfig{
			MaxLen: 12000,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
		},
		Timeouts: TimeoutConfig{
			Retrieve: 10 * time.Second,
			Generate: 60 * time.Second,
			Ingest:   10 * time.Minute,
		},
	}
}

// Read loads the configuration file over the defaults. Validation
// failures are returned, not deferred; a misconfigured chunker must
// stop the process before it accepts work.
func Read(path string) (Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Chunker.MaxLen <= 0 {
		return fmt.Errorf("%w: max_len must be positive, got %d", ErrInvalidChunkerConfig, c.Chunker.MaxLen)
	}
	if c.Chunker.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkerConfig, c.Chunker.Overlap)
	}
	if c.Chunker.Overlap >= c.Chunker.MaxLen {
		return fmt.Errorf("%w: overlap %d must be smaller than max_len %d",
			ErrInvalidChunkerConfig, c.Chunker.Overlap, c.Chunker.MaxLen)
	}

	switch c.Embedder.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: unknown embedder %q", ErrInvalidProvider, c.Embedder.Provider)
	}
	switch c.Generator.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("%w: unknown generator %q", ErrInvalidProvider, c.Generator.Provider)
	}
	return nil
}
