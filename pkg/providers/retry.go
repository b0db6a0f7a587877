package providers

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds the retry wrapper.
type RetryConfig struct {
	MaxRetries int
	Delay      time.Duration
}

// DefaultRetryDelay is the fixed pause between completion attempts.
const DefaultRetryDelay = 1 * time.Second

// RetryingProvider wraps a CompletionProvider in bounded retry-with-delay.
// Any call failure is retried up to MaxRetries times; the first success or
// the last failure wins.
type RetryingProvider struct {
	inner CompletionProvider
	cfg   RetryConfig
}

// WithRetry wraps the given provider. maxRetries <= 0 disables retrying.
func WithRetry(inner CompletionProvider, cfg RetryConfig) *RetryingProvider {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultRetryDelay
	}

	return &RetryingProvider{inner: inner, cfg: cfg}
}

func (p *RetryingProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (*CompletionResult, error) {
	var lastErr error

	attempts := p.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := range attempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.Delay):
			}
		}

		result, err := p.inner.Complete(ctx, systemPrompt, userPrompt, opts)
		if err == nil && (result == nil || result.Error == "") {
			return result, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("completion failed: %s", result.Error)
		}
	}

	return nil, NewProviderError("completion", fmt.Errorf("all %d attempts failed: %w", attempts, lastErr))
}
