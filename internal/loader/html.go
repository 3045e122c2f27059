package loader

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/minho-song/ragpipe/internal/api"
)

// HTMLLoader extracts visible text from markup. Scripts, styles and
// other non-content elements are dropped; block elements become line
// breaks so downstream chunking can find paragraph boundaries.
type HTMLLoader struct{}

var htmlSkipSelectors = []string{"script", "style", "noscript", "iframe", "svg", "head"}

var htmlBlockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
}

func (l *HTMLLoader) Load(ctx context.Context, raw []byte) (*api.DocumentContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, CorruptDocumentError{Format: api.FormatHTML, Reason: err.Error()}
	}

	for _, sel := range htmlSkipSelectors {
		doc.Find(sel).Remove()
	}

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var sb strings.Builder
	root.Each(func(_ int, s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			writeNodeText(c, &sb)
		})
	})

	text := sb.String()
	if strings.TrimSpace(text) == "" && len(bytes.TrimSpace(raw)) > 0 {
		return nil, CorruptDocumentError{Format: api.FormatHTML, Reason: "no extractable text content"}
	}

	return &api.DocumentContent{Text: text}, nil
}

func writeNodeText(s *goquery.Selection, sb *strings.Builder) {
	node := s.Get(0)
	if node == nil {
		return
	}

	if node.Type == html.TextNode {
		sb.WriteString(node.Data)
		return
	}

	s.Contents().Each(func(_ int, c *goquery.Selection) {
		writeNodeText(c, sb)
	})

	if htmlBlockTags[node.Data] {
		sb.WriteString("\n")
	}
}
