// Package retry provides the single retry-with-backoff policy shared by
// the embedding and generation clients. Callers parameterize it with an
// error classifier; terminal errors surface immediately, transient ones
// are retried with exponential backoff up to a bounded attempt count.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

type Classification int

const (
	// Transient errors (rate limits, timeouts) are expected to succeed
	// on retry.
	Transient Classification = iota
	// Terminal errors (malformed input, auth, policy rejections) will
	// not succeed on retry and are surfaced at once.
	Terminal
)

type Classifier func(error) Classification

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		Jitter:      0.2,
	}
}

// Do runs fn under the policy. The classifier decides which errors are
// worth another attempt; context cancellation always aborts between
// attempts regardless of classification.
func Do[T any](ctx context.Context, p Policy, classify Classifier, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.delay(attempt-1)); err != nil {
				return zero, err
			}
		}

		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if classify(err) == Terminal {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts, lastErr)
}

func (p Policy) delay(retries int) time.Duration {
	d := p.BaseDelay << retries
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := float64(d) * p.Jitter
		d = time.Duration(float64(d) - spread/2 + rand.Float64()*spread)
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
