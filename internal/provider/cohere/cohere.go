// Package cohere implements the rerank backend on the Cohere API.
package cohere

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"github.com/minho-song/ragpipe/internal/api"
)

const DefaultRerankModel = "rerank-v3.5"

type Provider struct {
	client *cohereclient.Client
	model  string
}

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

func New(opts ...Option) *Provider {
	c := cohereclient.NewClient(
		cohereclient.WithToken(os.Getenv("COHERE_API_KEY")),
		cohereclient.WithHTTPClient(
			&http.Client{
				Timeout: 60 * time.Second,
			},
		),
	)
	p := &Provider{
		client: c,
		model:  DefaultRerankModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Rerank(ctx context.Context, query string, docs []string, limit int) ([]api.RerankedDocument, error) {
	if query == "" {
		return nil, fmt.Errorf("rerank request failed: missing query")
	}
	if len(docs) == 0 {
		return nil, nil
	}

	req := &cohere.V2RerankRequest{
		Query:     query,
		Documents: docs,
		Model:     p.model,
	}
	if limit > 0 {
		req.TopN = &limit
	}

	resp, err := p.client.V2.Rerank(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}

	ranked := make([]api.RerankedDocument, 0, len(resp.Results))
	for _, r := range resp.Results {
		ranked = append(ranked, api.RerankedDocument{
			Index: r.Index,
			Score: r.RelevanceScore,
		})
	}
	return ranked, nil
}
