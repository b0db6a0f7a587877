// Package providers defines the narrow interfaces through which the engine
// reaches its external collaborators: AI completion providers, the CRM
// record store, the notification dispatcher and the identity source.
package providers

import (
	"context"
)

// CompletionOptions tunes one completion call.
type CompletionOptions struct {
	Model       string         `json:"model,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// CompletionUsage reports token accounting for one call.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResult is the uniform output of any provider. A populated Error
// never carries Content alongside it.
type CompletionResult struct {
	Content string           `json:"content"`
	Usage   *CompletionUsage `json:"usage,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// CompletionProvider abstracts an AI completion backend.
type CompletionProvider interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompletionOptions) (*CompletionResult, error)
}

// ProviderError marks a failure of an external collaborator. Such failures
// are retryable before being reported as node handler errors.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "provider " + e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps an external failure with its provider name.
func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}
