// Package prompt assembles retrieved chunks and the user query into the
// final generation prompt.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/minho-song/ragpipe/internal/api"
)

var ErrNoContext = errors.New("no chunks available for prompt assembly")

const DefaultMaxPromptLen = 12000

const defaultTemplate = `You are a careful assistant answering strictly from the provided context.
If the context does not contain the answer, say that you do not know.
Cite sources using the [source N] markers.

Context:
{{- range .Sections}}
[source {{.Number}}] (document {{.DocumentID}}, part {{.Ordinal}})
{{.Text}}
{{- end}}

Question: {{.Query}}

Answer:`

type section struct {
	Number     int
	DocumentID string
	Ordinal    int
	Text       string
}

type templateData struct {
	Query    string
	Sections []section
}

// Prompt is the assembled generation input together with the chunks it
// actually cites, in inclusion order.
type Prompt struct {
	Text        string
	CitedChunks []string
}

// Assembler renders chunks into a prompt under a length budget. When
// the budget is tight, whole chunks are dropped from the least relevant
// end; the query and the most relevant chunk always survive, the
// latter truncated if it alone exceeds the budget. Assembly is
// deterministic for identical input.
type Assembler struct {
	tmpl         *template.Template
	maxPromptLen int
}

type Option func(*Assembler)

// WithMaxPromptLen bounds the rendered prompt in runes.
func WithMaxPromptLen(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxPromptLen = n
		}
	}
}

func WithTemplate(text string) (Option, error) {
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid prompt template: %w", err)
	}
	return func(a *Assembler) {
		a.tmpl = tmpl
	}, nil
}

func NewAssembler(opts ...Option) *Assembler {
	a := &Assembler{
		tmpl:         template.Must(template.New("prompt").Parse(defaultTemplate)),
		maxPromptLen: DefaultMaxPromptLen,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) Assemble(query string, result *api.RetrievalResult) (*Prompt, error) {
	if result.Empty() {
		return nil, ErrNoContext
	}

	chunks := result.Chunks
	for len(chunks) > 0 {
		p, err := a.render(query, chunks)
		if err != nil {
			return nil, err
		}
		if len([]rune(p.Text)) <= a.maxPromptLen {
			return p, nil
		}
		if len(chunks) == 1 {
			return a.renderTruncated(query, chunks[0])
		}
		chunks = chunks[:len(chunks)-1]
	}
	return nil, ErrNoContext
}

func (a *Assembler) render(query string, chunks []*api.ScoredChunk) (*Prompt, error) {
	data := templateData{
		Query:    query,
		Sections: make([]section, 0, len(chunks)),
	}
	cited := make([]string, 0, len(chunks))
	for i, c := range chunks {
		data.Sections = append(data.Sections, section{
			Number:     i + 1,
			DocumentID: c.Chunk.DocumentID,
			Ordinal:    c.Chunk.Ordinal,
			Text:       c.Chunk.Text,
		})
		cited = append(cited, c.Chunk.ID)
	}

	var sb strings.Builder
	if err := a.tmpl.Execute(&sb, data); err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}
	return &Prompt{Text: sb.String(), CitedChunks: cited}, nil
}

// renderTruncated shortens the single remaining chunk until the
// rendered prompt fits. The prompt must always carry the query and at
// least part of the best chunk.
func (a *Assembler) renderTruncated(query string, c *api.ScoredChunk) (*Prompt, error) {
	empty, err := a.render(query, []*api.ScoredChunk{{
		Chunk: &api.Chunk{
			ID:         c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Ordinal:    c.Chunk.Ordinal,
		},
		Score: c.Score,
	}})
	if err != nil {
		return nil, err
	}

	budget := a.maxPromptLen - len([]rune(empty.Text))
	text := []rune(c.Chunk.Text)
	if budget < 1 {
		budget = 1
	}
	if budget < len(text) {
		text = text[:budget]
	}

	truncated := *c.Chunk
	truncated.Text = string(text)
	return a.render(query, []*api.ScoredChunk{{Chunk: &truncated, Score: c.Score}})
}
