package loader

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/minho-song/ragpipe/internal/api"
)

// PDFLoader extracts text page by page. Pages holding only images or
// malformed content streams are skipped and flagged as a partial
// extraction rather than failing the document.
type PDFLoader struct{}

func (l *PDFLoader) Load(ctx context.Context, raw []byte) (content *api.DocumentContent, err error) {
	// the pdf reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			content = nil
			err = CorruptDocumentError{Format: api.FormatPDF, Reason: fmt.Sprintf("reader panic: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, CorruptDocumentError{Format: api.FormatPDF, Reason: err.Error()}
	}

	var sb strings.Builder
	pages := make([]api.PageSpan, 0, reader.NumPage())
	partial := false

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			partial = true
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("skipping unreadable pdf page", "page", i, "err", err)
			partial = true
			continue
		}

		start := sb.Len()
		sb.WriteString(text)
		if !strings.HasSuffix(text, "\n") {
			sb.WriteString("\n")
		}
		pages = append(pages, api.PageSpan{Page: i, Start: start, End: sb.Len()})
	}

	if sb.Len() == 0 && reader.NumPage() > 0 && partial {
		return nil, CorruptDocumentError{Format: api.FormatPDF, Reason: "no extractable text on any page"}
	}

	return &api.DocumentContent{
		Text:    sb.String(),
		Pages:   pages,
		Partial: partial,
	}, nil
}
