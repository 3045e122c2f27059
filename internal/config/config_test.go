package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minho-song/ragpipe/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "collection: resumes\n")

	cfg, err := config.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Collection != "resumes" {
		t.Errorf("Collection = %q, want resumes", cfg.Collection)
	}
	if cfg.Chunker.MaxLen != 1000 || cfg.Chunker.Overlap != 100 {
		t.Errorf("chunker defaults = %+v", cfg.Chunker)
	}
	if cfg.Timeouts.Generate != 60*time.Second {
		t.Errorf("Timeouts.Generate = %v, want 60s", cfg.Timeouts.Generate)
	}
}

func TestReadOverrides(t *testing.T) {
	path := writeConfig(t, `
store: memory
embedder:
  provider: gemini
  model: gemini-embedding-001
  dimensions: 768
chunker:
  max_len: 500
  overlap: 50
retriever:
  top_k: 8
  min_score: 0.35
`)

	cfg, err := config.Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q", cfg.Store)
	}
	if cfg.Embedder.Provider != "gemini" || cfg.Embedder.Dimensions != 768 {
		t.Errorf("Embedder = %+v", cfg.Embedder)
	}
	if cfg.Chunker.MaxLen != 500 || cfg.Chunker.Overlap != 50 {
		t.Errorf("Chunker = %+v", cfg.Chunker)
	}
	if cfg.Retriever.TopK != 8 || cfg.Retriever.MinScore != 0.35 {
		t.Errorf("Retriever = %+v", cfg.Retriever)
	}
}

func TestReadRejectsInvalidChunker(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero max_len", "chunker:\n  max_len: 0\n"},
		{"negative overlap", "chunker:\n  max_len: 100\n  overlap: -1\n"},
		{"overlap at max_len", "chunker:\n  max_len: 100\n  overlap: 100\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Read(writeConfig(t, tt.body))
			if !errors.Is(err, config.ErrInvalidChunkerConfig) {
				t.Fatalf("err = %v, want ErrInvalidChunkerConfig", err)
			}
		})
	}
}

func TestReadRejectsUnknownProvider(t *testing.T) {
	_, err := config.Read(writeConfig(t, "embedder:\n  provider: acme\n"))
	if !errors.Is(err, config.ErrInvalidProvider) {
		t.Fatalf("err = %v, want ErrInvalidProvider", err)
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := config.Read(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
