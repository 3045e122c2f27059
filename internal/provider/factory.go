package provider

import (
	"github.com/minho-song/ragpipe/internal/provider/cohere"
	"github.com/minho-song/ragpipe/internal/provider/gemini"
	"github.com/minho-song/ragpipe/internal/provider/openai"
	"github.com/minho-song/ragpipe/internal/retry"
)

// EmbedderParams selects a backend and its model settings. A zero
// Dimensions keeps the backend default.
type EmbedderParams struct {
	Model      string
	Dimensions int
	Policy     *retry.Policy
}

func NewEmbedder(ptype EmbedderType, params EmbedderParams) (Embedder, error) {
	policy := retry.DefaultPolicy()
	if params.Policy != nil {
		policy = *params.Policy
	}

	var backend EmbedBackend
	switch ptype {
	case EmbedderTypeOpenAI:
		var opts []openai.Option
		if params.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(params.Model))
		}
		if params.Dimensions > 0 {
			opts = append(opts, openai.WithDimensions(params.Dimensions))
		}
		backend = openai.New(opts...)
	case EmbedderTypeGemini:
		var opts []gemini.Option
		if params.Model != "" {
			opts = append(opts, gemini.WithEmbeddingModel(params.Model))
		}
		if params.Dimensions > 0 {
			opts = append(opts, gemini.WithDimensions(params.Dimensions))
		}
		p, err := gemini.New(opts...)
		if err != nil {
			return nil, err
		}
		backend = p
	default:
		return nil, ErrInvalidEmbedderType
	}

	return NewBatchEmbedder(backend, policy), nil
}

type GeneratorParams struct {
	Model  string
	Policy *retry.Policy
}

func NewGenerator(ptype GeneratorType, params GeneratorParams) (Generator, error) {
	policy := retry.DefaultPolicy()
	if params.Policy != nil {
		policy = *params.Policy
	}

	var backend GenerateBackend
	switch ptype {
	case GeneratorTypeOpenAI:
		var opts []openai.Option
		if params.Model != "" {
			opts = append(opts, openai.WithGenerationModel(params.Model))
		}
		backend = openai.New(opts...)
	case GeneratorTypeGemini:
		var opts []gemini.Option
		if params.Model != "" {
			opts = append(opts, gemini.WithGenerationModel(params.Model))
		}
		p, err := gemini.New(opts...)
		if err != nil {
			return nil, err
		}
		backend = p
	default:
		return nil, ErrInvalidGeneratorType
	}

	return NewRetryingGenerator(backend, policy), nil
}

func NewReranker(ptype RerankerType, model string) (Reranker, error) {
	switch ptype {
	case RerankerTypeCohere:
		var opts []cohere.Option
		if model != "" {
			opts = append(opts, cohere.WithModel(model))
		}
		return cohere.New(opts...), nil
	default:
		return nil, ErrInvalidRerankerType
	}
}
