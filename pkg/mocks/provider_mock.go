package mocks

import (
	"context"

	"github.com/dealflow/dealflow/pkg/providers"
	"github.com/stretchr/testify/mock"
)

// MockCompletionProvider is a mock implementation of providers.CompletionProvider interface.
type MockCompletionProvider struct {
	mock.Mock
}

func (m *MockCompletionProvider) Complete(ctx context.Context, systemPrompt, userPrompt string, opts providers.CompletionOptions) (*providers.CompletionResult, error) {
	args := m.Called(ctx, systemPrompt, userPrompt, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*providers.CompletionResult), args.Error(1)
}
