package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/retry"
)

// GenerateBackend is the raw completion surface a model provider
// implements.
type GenerateBackend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RetryingGenerator wraps a generation backend with the shared retry
// policy. Content-policy rejections surface unchanged after a single
// attempt; every other failure is retried while transient and wrapped
// once exhausted.
type RetryingGenerator struct {
	backend GenerateBackend
	policy  retry.Policy
}

func NewRetryingGenerator(backend GenerateBackend, policy retry.Policy) *RetryingGenerator {
	return &RetryingGenerator{
		backend: backend,
		policy:  policy,
	}
}

func (g *RetryingGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := retry.Do(ctx, g.policy, Classify, func(ctx context.Context) (string, error) {
		return g.backend.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, api.ErrContentPolicyRejected) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", api.ErrGenerationFailed, err)
	}
	return text, nil
}
