// Package gemini implements the embedding and generation backends on
// the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/minho-song/ragpipe/internal/api"
)

const (
	DefaultEmbeddingModel  = "gemini-embedding-001"
	DefaultGenerationModel = "gemini-2.0-flash"

	embedMaxBatchSize    = 100
	embedMaxPayloadBytes = 1 << 20
)

type Provider struct {
	client          *genai.Client
	embeddingModel  string
	generationModel string
	vectorDims      *int32
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
		*p.vectorDims = int32(dims)
	}
}

func New(opts ...Option) (*Provider, error) {
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	p := &Provider{
		client:          c,
		embeddingModel:  DefaultEmbeddingModel,
		generationModel: DefaultGenerationModel,
		vectorDims:      new(int32),
	}
	*p.vectorDims = 1536
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	config := &genai.EmbedContentConfig{
		TaskType:             "RETRIEVAL_DOCUMENT",
		OutputDimensionality: p.vectorDims,
	}

	res, err := p.client.Models.EmbedContent(ctx, p.embeddingModel, contents, config)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, 0, len(res.Embeddings))
	for _, e := range res.Embeddings {
		vecs = append(vecs, e.Values)
	}
	return vecs, nil
}

func (p *Provider) Dimensions() int {
	return int(*p.vectorDims)
}

func (p *Provider) MaxBatchSize() int {
	return embedMaxBatchSize
}

func (p *Provider) MaxPayloadBytes() int {
	return embedMaxPayloadBytes
}

func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := p.client.Models.GenerateContent(ctx, p.generationModel, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}

	if len(res.Candidates) == 0 {
		if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked (%s)", api.ErrContentPolicyRejected, res.PromptFeedback.BlockReason)
		}
		return "", errors.New("generation response contains no candidates")
	}

	if res.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: completion stopped on safety grounds", api.ErrContentPolicyRejected)
	}

	return res.Text(), nil
}
