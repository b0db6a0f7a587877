package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryingProvider_FirstSuccessWins(t *testing.T) {
	inner := NewSimulationProvider("ok")
	provider := WithRetry(inner, RetryConfig{MaxRetries: 3, Delay: time.Millisecond})

	result, err := provider.Complete(context.Background(), "system", "user", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Len(t, inner.Calls(), 1)
}

func TestRetryingProvider_RecoversWithinBudget(t *testing.T) {
	inner := NewFailingProvider(3)
	provider := WithRetry(inner, RetryConfig{MaxRetries: 2, Delay: time.Millisecond})

	result, err := provider.Complete(context.Background(), "system", "user", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, 3, inner.Attempts())
}

func TestRetryingProvider_ExhaustsBudget(t *testing.T) {
	inner := NewFailingProvider(0)
	provider := WithRetry(inner, RetryConfig{MaxRetries: 2, Delay: time.Millisecond})

	_, err := provider.Complete(context.Background(), "system", "user", CompletionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, 3, inner.Attempts())
}

func TestRetryingProvider_ZeroRetriesMeansOneAttempt(t *testing.T) {
	inner := NewFailingProvider(0)
	provider := WithRetry(inner, RetryConfig{MaxRetries: 0, Delay: time.Millisecond})

	_, err := provider.Complete(context.Background(), "system", "user", CompletionOptions{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.Attempts())
}

func TestRetryingProvider_ResultErrorTriggersRetry(t *testing.T) {
	// A provider can report failure through the result body instead of the
	// error return.
	inner := &resultErrorProvider{}
	provider := WithRetry(inner, RetryConfig{MaxRetries: 1, Delay: time.Millisecond})

	_, err := provider.Complete(context.Background(), "system", "user", CompletionOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, 2, inner.attempts)
}

func TestRetryingProvider_CancelledBetweenAttempts(t *testing.T) {
	inner := NewFailingProvider(0)
	provider := WithRetry(inner, RetryConfig{MaxRetries: 5, Delay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Complete(ctx, "system", "user", CompletionOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.Attempts())
}

type resultErrorProvider struct {
	attempts int
}

func (p *resultErrorProvider) Complete(context.Context, string, string, CompletionOptions) (*CompletionResult, error) {
	p.attempts++

	return &CompletionResult{Error: "rate limited"}, nil
}

func TestSimulationProvider_CannedResponse(t *testing.T) {
	provider := NewSimulationProvider("")

	result, err := provider.Complete(context.Background(), "sys", "summarize the deal", CompletionOptions{})
	require.NoError(t, err)
	assert.Equal(t, "simulated completion", result.Content)
	require.NotNil(t, result.Usage)
	assert.Positive(t, result.Usage.TotalTokens)
	assert.Equal(t, []string{"summarize the deal"}, provider.Calls())
}
