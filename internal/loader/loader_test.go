package loader_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/loader"
)

func TestNewUnsupportedFormat(t *testing.T) {
	_, err := loader.New(api.DocumentFormat("xlsx"))
	if !errors.Is(err, loader.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestNewSupportedFormats(t *testing.T) {
	for _, f := range []api.DocumentFormat{api.FormatPDF, api.FormatDOCX, api.FormatHTML, api.FormatText} {
		if _, err := loader.New(f); err != nil {
			t.Errorf("expected loader for format '%s', got error: %v", f, err)
		}
	}
}

func TestTextLoader(t *testing.T) {
	content, err := loader.Load(context.Background(), []byte("hello world"), api.FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if content.Text != "hello world" {
		t.Errorf("got '%s', expected 'hello world'", content.Text)
	}
	if content.Partial {
		t.Error("valid utf-8 input flagged as partial extraction")
	}
}

func TestTextLoaderInvalidUTF8(t *testing.T) {
	raw := append([]byte("valid prefix "), 0xff, 0xfe)
	content, err := loader.Load(context.Background(), raw, api.FormatText)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !content.Partial {
		t.Error("invalid utf-8 input not flagged as partial extraction")
	}
	if !strings.HasPrefix(content.Text, "valid prefix") {
		t.Errorf("lost valid prefix, got '%s'", content.Text)
	}
}

func TestHTMLLoader(t *testing.T) {
	raw := []byte(`<html><head><style>p{color:red}</style></head>
		<body><h1>Title</h1><p>First paragraph.</p><script>alert(1)</script>
		<p>Second paragraph.</p></body></html>`)

	content, err := loader.Load(context.Background(), raw, api.FormatHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Title", "First paragraph.", "Second paragraph."} {
		if !strings.Contains(content.Text, want) {
			t.Errorf("extracted text missing '%s': %q", want, content.Text)
		}
	}
	for _, reject := range []string{"alert(1)", "color:red"} {
		if strings.Contains(content.Text, reject) {
			t.Errorf("extracted text contains non-content '%s'", reject)
		}
	}
}

func TestHTMLLoaderMalformedMarkupDegrades(t *testing.T) {
	// unclosed tags must not fail the document
	raw := []byte("<html><body><p>broken <b>markup<p>still text")
	content, err := loader.Load(context.Background(), raw, api.FormatHTML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(content.Text, "still text") {
		t.Errorf("lost text after malformed tag: %q", content.Text)
	}
}

func TestDocxLoader(t *testing.T) {
	raw := buildDocx(t, `<?xml version="1.0"?>
		<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
		<w:body>
			<w:p><w:r><w:t>First paragraph.</w:t></w:r></w:p>
			<w:p><w:r><w:t>Second</w:t></w:r><w:r><w:t xml:space="preserve"> run.</w:t></w:r></w:p>
		</w:body>
		</w:document>`)

	content, err := loader.Load(context.Background(), raw, api.FormatDOCX)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(content.Text, "First paragraph.") {
		t.Errorf("missing first paragraph: %q", content.Text)
	}
	if !strings.Contains(content.Text, "Second run.") {
		t.Errorf("adjacent runs not joined: %q", content.Text)
	}
}

func TestDocxLoaderNotAZip(t *testing.T) {
	_, err := loader.Load(context.Background(), []byte("plain text, not an archive"), api.FormatDOCX)
	var corrupt loader.CorruptDocumentError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptDocumentError, got %v", err)
	}
	if corrupt.Format != api.FormatDOCX {
		t.Errorf("error reports wrong format '%s'", corrupt.Format)
	}
}

func TestDocxLoaderMissingDocumentPart(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/styles.xml")
	w.Write([]byte("<styles/>"))
	zw.Close()

	_, err := loader.Load(context.Background(), buf.Bytes(), api.FormatDOCX)
	var corrupt loader.CorruptDocumentError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptDocumentError, got %v", err)
	}
}

func TestPDFLoaderCorruptPayload(t *testing.T) {
	_, err := loader.Load(context.Background(), []byte("%PDF-1.4 garbage"), api.FormatPDF)
	var corrupt loader.CorruptDocumentError
	if !errors.As(err, &corrupt) {
		t.Fatalf("expected CorruptDocumentError, got %v", err)
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("failed to build docx fixture: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("failed to build docx fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to build docx fixture: %v", err)
	}
	return buf.Bytes()
}
