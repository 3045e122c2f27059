package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/minho-song/ragpipe/internal/api"
)

// DocxLoader reads the main document part of an OOXML archive and
// collects the text runs. Embedded objects, images and unknown parts
// are ignored; a truncated XML stream degrades to whatever text was
// decoded before the break.
type DocxLoader struct{}

func (l *DocxLoader) Load(ctx context.Context, raw []byte) (*api.DocumentContent, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, CorruptDocumentError{Format: api.FormatDOCX, Reason: err.Error()}
	}

	var docPart *zip.File
	for _, f := range archive.File {
		if f.Name == "word/document.xml" {
			docPart = f
			break
		}
	}
	if docPart == nil {
		return nil, CorruptDocumentError{Format: api.FormatDOCX, Reason: "missing word/document.xml part"}
	}

	rc, err := docPart.Open()
	if err != nil {
		return nil, CorruptDocumentError{Format: api.FormatDOCX, Reason: err.Error()}
	}
	defer rc.Close()

	text, partial, err := decodeDocumentXML(rc)
	if err != nil && strings.TrimSpace(text) == "" {
		return nil, CorruptDocumentError{Format: api.FormatDOCX, Reason: err.Error()}
	}

	return &api.DocumentContent{
		Text:    text,
		Partial: partial,
	}, nil
}

// decodeDocumentXML walks the token stream collecting character data of
// <w:t> runs, emitting paragraph breaks on </w:p> and tab/break elements.
func decodeDocumentXML(r io.Reader) (string, bool, error) {
	decoder := xml.NewDecoder(r)

	var sb strings.Builder
	var inText bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return sb.String(), false, nil
		}
		if err != nil {
			// truncated or invalid markup: keep what we have
			return sb.String(), true, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
}
