package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/parley/server/provider"
)

// MockProvider implements provider.Provider for tests. It records every
// prompt it receives and delegates to GenerateFunc when set.
//
// Example usage:
//
//	mock := NewMockProvider(func(ctx context.Context, prompt string) (*provider.Completion, error) {
//	    return &provider.Completion{Text: "mocked response", HasText: true}, nil
//	})
type MockProvider struct {
	GenerateFunc func(ctx context.Context, prompt string) (*provider.Completion, error)
	ProviderName string

	mu      sync.Mutex
	prompts []string
}

// NewMockProvider creates a MockProvider named "mock". A nil generateFunc
// makes Generate return a completion without text.
func NewMockProvider(generateFunc func(ctx context.Context, prompt string) (*provider.Completion, error)) *MockProvider {
	return &MockProvider{
		GenerateFunc: generateFunc,
		ProviderName: "mock",
	}
}

// NewTextProvider returns a mock that always answers with text.
func NewTextProvider(text string) *MockProvider {
	return NewMockProvider(func(ctx context.Context, prompt string) (*provider.Completion, error) {
		return &provider.Completion{Text: text, HasText: true}, nil
	})
}

// NewErrorProvider returns a mock that always fails with err.
func NewErrorProvider(err error) *MockProvider {
	return NewMockProvider(func(ctx context.Context, prompt string) (*provider.Completion, error) {
		return nil, err
	})
}

// Generate implements provider.Provider.
func (m *MockProvider) Generate(ctx context.Context, prompt string) (*provider.Completion, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return &provider.Completion{}, nil
}

// Name implements provider.Provider.
func (m *MockProvider) Name() string {
	return m.ProviderName
}

// Prompts returns a copy of the prompts received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
