// Package openai implements the embedding and generation backends on
// the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"

	"github.com/minho-song/ragpipe/internal/api"
)

const (
	DefaultEmbeddingModel  = "text-embedding-3-small"
	DefaultGenerationModel = openai.GPT4Dot1Mini

	embedMaxBatchSize    = 2048
	embedMaxPayloadBytes = 1 << 20
)

type Provider struct {
	client          *openai.Client
	embeddingModel  string
	generationModel string
	vectorDims      int
}

type Option func(*Provider)

func WithEmbeddingModel(model string) Option {
	return func(p *Provider) {
		p.embeddingModel = model
	}
}

func WithGenerationModel(model string) Option {
	return func(p *Provider) {
		p.generationModel = model
	}
}

func WithDimensions(dims int) Option {
	return func(p *Provider) {
		p.vectorDims = dims
	}
}

func New(opts ...Option) *Provider {
	c := openai.NewClient(os.Getenv("OPENAI_API_KEY"))
	p := &Provider{
		client:          c,
		embeddingModel:  DefaultEmbeddingModel,
		generationModel: DefaultGenerationModel,
		vectorDims:      1536,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := &openai.EmbeddingRequestStrings{
		Input:          texts,
		Model:          openai.EmbeddingModel(p.embeddingModel),
		EncodingFormat: "float",
		Dimensions:     p.vectorDims,
	}

	res, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, d := range res.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing vector for input %d", i)
		}
	}
	return vecs, nil
}

func (p *Provider) Dimensions() int {
	return p.vectorDims
}

func (p *Provider) MaxBatchSize() int {
	return embedMaxBatchSize
}

func (p *Provider) MaxPayloadBytes() int {
	return embedMaxPayloadBytes
}

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: p.generationModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	res, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 400 {
			if code, ok := apiErr.Code.(string); ok && code == "content_policy_violation" {
				return "", fmt.Errorf("%w: %s", api.ErrContentPolicyRejected, apiErr.Message)
			}
		}
		return "", err
	}

	if len(res.Choices) == 0 {
		return "", errors.New("completion response contains no choices")
	}

	choice := res.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", fmt.Errorf("%w: completion stopped by content filter", api.ErrContentPolicyRejected)
	}

	return choice.Message.Content, nil
}
