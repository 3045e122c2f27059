// Package loader converts raw document bytes of a supported format into
// plain text plus an optional page map used later for citation.
package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/minho-song/ragpipe/internal/api"
)

var ErrUnsupportedFormat = errors.New("unsupported document format")

// CorruptDocumentError signals a payload that was entirely unparseable.
// Malformed fragments inside an otherwise readable document do not raise
// it; those degrade to a partial extraction instead.
type CorruptDocumentError struct {
	Format api.DocumentFormat
	Reason string
}

func (e CorruptDocumentError) Error() string {
	return fmt.Sprintf("corrupt %s document: %s", e.Format, e.Reason)
}

type Loader interface {
	Load(ctx context.Context, raw []byte) (*api.DocumentContent, error)
}

func New(format api.DocumentFormat) (Loader, error) {
	switch format {
	case api.FormatPDF:
		return &PDFLoader{}, nil
	case api.FormatDOCX:
		return &DocxLoader{}, nil
	case api.FormatHTML:
		return &HTMLLoader{}, nil
	case api.FormatText:
		return &TextLoader{}, nil
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedFormat, format)
	}
}

// Load resolves the loader for the declared format and runs it.
func Load(ctx context.Context, raw []byte, format api.DocumentFormat) (*api.DocumentContent, error) {
	l, err := New(format)
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, raw)
}
