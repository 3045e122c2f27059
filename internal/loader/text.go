package loader

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/minho-song/ragpipe/internal/api"
)

// TextLoader passes plain text through, replacing invalid UTF-8
// sequences instead of failing on them.
type TextLoader struct{}

func (l *TextLoader) Load(ctx context.Context, raw []byte) (*api.DocumentContent, error) {
	partial := false
	text := string(raw)

	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
		partial = true
	}

	return &api.DocumentContent{
		Text:    text,
		Partial: partial,
	}, nil
}
