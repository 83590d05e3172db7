package router

import (
	"context"
	"sync"
)

// MockRouterService is a RouterService for tests. Overrides win; everything
// else goes through the real cascade.
type MockRouterService struct {
	mu              sync.Mutex
	IntentOverrides map[string]Intent
	calls           []string
}

// NewMockRouterService creates a new MockRouterService.
func NewMockRouterService() *MockRouterService {
	return &MockRouterService{
		IntentOverrides: make(map[string]Intent),
	}
}

// ClassifyIntent records the call and classifies the input.
func (m *MockRouterService) ClassifyIntent(_ context.Context, input string) (Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)
	if intent, ok := m.IntentOverrides[input]; ok {
		return intent, nil
	}
	return Classify(input), nil
}

// Calls returns the inputs seen so far.
func (m *MockRouterService) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var _ RouterService = (*MockRouterService)(nil)
