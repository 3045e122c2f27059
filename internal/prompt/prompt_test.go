package prompt_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/prompt"
)

func scored(id, docID string, ordinal int, text string) *api.ScoredChunk {
	return &api.ScoredChunk{
		Chunk: &api.Chunk{
			ID:         id,
			DocumentID: docID,
			Ordinal:    ordinal,
			Text:       text,
		},
		Score: 1.0 - float64(ordinal)*0.1,
	}
}

func TestAssembleIncludesQueryAndSources(t *testing.T) {
	a := prompt.NewAssembler()
	res := &api.RetrievalResult{Chunks: []*api.ScoredChunk{
		scored("c1", "report", 0, "revenue grew 20%"),
		scored("c2", "report", 1, "growth was driven by exports"),
	}}

	p, err := a.Assemble("how did revenue develop", res)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.Contains(p.Text, "how did revenue develop") {
		t.Error("prompt does not contain the query")
	}
	if !strings.Contains(p.Text, "[source 1]") || !strings.Contains(p.Text, "[source 2]") {
		t.Error("prompt does not carry provenance markers")
	}
	if !strings.Contains(p.Text, "revenue grew 20%") {
		t.Error("prompt does not contain chunk text")
	}
	if len(p.CitedChunks) != 2 || p.CitedChunks[0] != "c1" || p.CitedChunks[1] != "c2" {
		t.Errorf("cited = %v, want [c1 c2]", p.CitedChunks)
	}
}

func TestAssembleDeterministic(t *testing.T) {
	a := prompt.NewAssembler()
	res := &api.RetrievalResult{Chunks: []*api.ScoredChunk{
		scored("c1", "report", 0, "alpha"),
		scored("c2", "report", 1, "beta"),
	}}

	p1, err := a.Assemble("query", res)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	p2, err := a.Assemble("query", res)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if p1.Text != p2.Text {
		t.Error("identical input produced different prompts")
	}
}

func TestAssembleDropsLeastRelevantUnderBudget(t *testing.T) {
	long := strings.Repeat("x", 400)
	a := prompt.NewAssembler(prompt.WithMaxPromptLen(900))
	res := &api.RetrievalResult{Chunks: []*api.ScoredChunk{
		scored("best", "report", 0, long),
		scored("second", "report", 1, long),
		scored("third", "report", 2, long),
	}}

	p, err := a.Assemble("query", res)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len([]rune(p.Text)) > 900 {
		t.Errorf("prompt length %d exceeds budget 900", len([]rune(p.Text)))
	}
	if len(p.CitedChunks) == 0 || p.CitedChunks[0] != "best" {
		t.Fatalf("cited = %v, most relevant chunk must survive", p.CitedChunks)
	}
	for _, id := range p.CitedChunks {
		if id == "third" {
			t.Error("least relevant chunk survived a tight budget")
		}
	}
}

func TestAssembleTruncatesLastChunk(t *testing.T) {
	a := prompt.NewAssembler(prompt.WithMaxPromptLen(400))
	res := &api.RetrievalResult{Chunks: []*api.ScoredChunk{
		scored("only", "report", 0, strings.Repeat("y", 2000)),
	}}

	p, err := a.Assemble("query", res)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len([]rune(p.Text)) > 400 {
		t.Errorf("prompt length %d exceeds budget 400", len([]rune(p.Text)))
	}
	if !strings.Contains(p.Text, "query") {
		t.Error("query must survive truncation")
	}
	if !strings.Contains(p.Text, "yyy") {
		t.Error("some chunk text must survive truncation")
	}
	if len(p.CitedChunks) != 1 || p.CitedChunks[0] != "only" {
		t.Errorf("cited = %v, want [only]", p.CitedChunks)
	}
}

func TestAssembleEmptyResult(t *testing.T) {
	a := prompt.NewAssembler()

	_, err := a.Assemble("query", &api.RetrievalResult{})
	if !errors.Is(err, prompt.ErrNoContext) {
		t.Fatalf("err = %v, want ErrNoContext", err)
	}
}

func TestAssembleCustomTemplate(t *testing.T) {
	opt, err := prompt.WithTemplate("Q: {{.Query}}\n{{range .Sections}}<{{.Number}}> {{.Text}}\n{{end}}")
	if err != nil {
		t.Fatalf("WithTemplate: %v", err)
	}
	a := prompt.NewAssembler(opt)

	p, err := a.Assemble("why", &api.RetrievalResult{Chunks: []*api.ScoredChunk{
		scored("c1", "doc", 0, "because"),
	}})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.Contains(p.Text, "Q: why") || !strings.Contains(p.Text, "<1> because") {
		t.Errorf("unexpected prompt: %q", p.Text)
	}

	if _, err := prompt.WithTemplate("{{.Broken"); err == nil {
		t.Error("expected parse error for broken template")
	}
}
