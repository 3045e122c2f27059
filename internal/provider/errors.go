package provider

import (
	"context"
	"errors"
	"net"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/minho-song/ragpipe/internal/api"
	"github.com/minho-song/ragpipe/internal/retry"
)

// Classify maps provider errors onto the shared retry policy. Rate
// limits, server errors and timeouts are transient; everything else
// (auth, malformed input, policy rejections) is terminal.
func Classify(err error) retry.Classification {
	if err == nil {
		return retry.Terminal
	}

	if errors.Is(err, api.ErrContentPolicyRejected) {
		return retry.Terminal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return retry.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return classifyStatus(genaiErr.Code)
	}

	return retry.Terminal
}

func classifyStatus(status int) retry.Classification {
	if status == 429 || status == 408 || (status >= 500 && status <= 599) {
		return retry.Transient
	}
	return retry.Terminal
}
