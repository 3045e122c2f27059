// Package chunker splits normalized text into overlapping bounded-length
// segments, the retrieval units of the pipeline.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Segment is one chunk of a document. Start and End are rune offsets
// into the source text; consecutive segments share the configured
// overlap window except at document boundaries.
type Segment struct {
	Ordinal    int
	Text       string
	Start      int
	End        int
	TokenCount int
}

// TokenCounter reports the model token count of a text. The pipeline
// wires a tiktoken-backed counter; the default approximates.
type TokenCounter interface {
	Count(text string) int
}

type Chunker struct {
	maxLen  int
	overlap int
	counter TokenCounter
}

type Option func(*Chunker)

func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Chunker) {
		c.counter = tc
	}
}

// New validates the chunk configuration. An overlap equal to or larger
// than the window cannot make progress and is rejected outright; this
// is checked once at startup.
func New(maxLen, overlap int, opts ...Option) (*Chunker, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: maxLen must be positive, got %d", ErrInvalidChunkConfig, maxLen)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidChunkConfig, overlap)
	}
	if overlap >= maxLen {
		return nil, fmt.Errorf("%w: overlap (%d) must be smaller than maxLen (%d)", ErrInvalidChunkConfig, overlap, maxLen)
	}

	c := &Chunker{
		maxLen:  maxLen,
		overlap: overlap,
		counter: approxCounter{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Chunk returns a lazy, finite, restartable sequence of segments.
// Ranging over it twice yields identical segments, so re-chunking
// after a config change is a matter of building a new Chunker.
func (c *Chunker) Chunk(text string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		runes := []rune(text)
		n := len(runes)
		ordinal := 0

		for start := 0; start < n; {
			end := start + c.maxLen
			if end >= n {
				end = n
			} else {
				end = c.boundary(runes, start, end)
			}

			seg := Segment{
				Ordinal: ordinal,
				Text:    string(runes[start:end]),
				Start:   start,
				End:     end,
			}
			seg.TokenCount = c.counter.Count(seg.Text)

			if !yield(seg) {
				return
			}

			if end == n {
				return
			}
			start = end - c.overlap
			ordinal++
		}
	}
}

// ChunkAll collects the full sequence.
func (c *Chunker) ChunkAll(text string) []Segment {
	var segs []Segment
	for seg := range c.Chunk(text) {
		segs = append(segs, seg)
	}
	return segs
}

// boundary backs the cut point off to the nearest sentence or word
// boundary at or before limit. A floor keeps chunks from degenerating;
// when a single unbroken run exceeds the window the split is forced at
// the limit, the one case a mid-word cut is unavoidable.
func (c *Chunker) boundary(runes []rune, start, limit int) int {
	floor := start + (c.maxLen+1)/2
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}

	wordCut := 0
	for b := limit; b > floor; b-- {
		prev := runes[b-1]
		if prev != ' ' && prev != '\n' && prev != '\t' {
			continue
		}
		if b >= 2 && isSentenceEnd(runes[b-2]) {
			return b
		}
		if wordCut == 0 {
			wordCut = b
		}
	}
	if wordCut > 0 {
		return wordCut
	}
	return limit
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// approxCounter estimates tokens as whitespace-delimited words; good
// enough for budget accounting when no encoder is configured.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// TiktokenCounter counts with a real BPE encoding so segment budgets
// line up with what the embedding model sees.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoding '%s': %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
