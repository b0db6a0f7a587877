package providers

import (
	"context"
	"fmt"
	"sync"
)

// SimulationProvider returns canned completions without calling any
// external service. It is the provider wired in for test-mode runs.
type SimulationProvider struct {
	mu       sync.Mutex
	response string
	calls    []string
}

// NewSimulationProvider creates a provider answering with the given canned
// content for every call.
func NewSimulationProvider(response string) *SimulationProvider {
	if response == "" {
		response = "simulated completion"
	}

	return &SimulationProvider{response: response}
}

func (p *SimulationProvider) Complete(_ context.Context, systemPrompt, userPrompt string, _ CompletionOptions) (*CompletionResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, userPrompt)
	p.mu.Unlock()

	return &CompletionResult{
		Content: p.response,
		Usage: &CompletionUsage{
			PromptTokens:     len(systemPrompt) + len(userPrompt),
			CompletionTokens: len(p.response),
			TotalTokens:      len(systemPrompt) + len(userPrompt) + len(p.response),
		},
	}, nil
}

// Calls returns the user prompts seen so far.
func (p *SimulationProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.calls))
	copy(out, p.calls)

	return out
}

// FailingProvider always fails. Used to exercise the retry wrapper.
type FailingProvider struct {
	mu       sync.Mutex
	failures int
	succeed  int // succeed on the Nth call (1-based), 0 = never
	attempts int
}

// NewFailingProvider fails every call until call number succeedOn (0 means
// never succeed).
func NewFailingProvider(succeedOn int) *FailingProvider {
	return &FailingProvider{succeed: succeedOn}
}

func (p *FailingProvider) Complete(_ context.Context, _, _ string, _ CompletionOptions) (*CompletionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.attempts++
	if p.succeed > 0 && p.attempts >= p.succeed {
		return &CompletionResult{Content: "recovered"}, nil
	}

	p.failures++

	return nil, NewProviderError("failing", fmt.Errorf("attempt %d failed", p.attempts))
}

// Attempts returns how many calls have been made.
func (p *FailingProvider) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.attempts
}
