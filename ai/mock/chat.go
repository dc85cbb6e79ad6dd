package mock

import (
	"context"
	"sync"

	"github.com/poiesic/recall/ai"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Reply.
	CompleteFunc func(ctx context.Context, system, prompt string, opts ai.CompletionOptions) (string, error)

	// Reply is returned when CompleteFunc is nil.
	Reply string

	mu         sync.Mutex
	callCount  int
	lastPrompt string
	lastSystem string
	lastOpts   ai.CompletionOptions
}

// NewMockChatModel creates a mock chat model that always answers reply.
func NewMockChatModel(reply string) *MockChatModel {
	return &MockChatModel{Reply: reply}
}

// Complete records the call and returns the configured reply.
func (m *MockChatModel) Complete(ctx context.Context, system, prompt string, opts ai.CompletionOptions) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastPrompt = prompt
	m.lastSystem = system
	m.lastOpts = opts
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt, opts)
	}
	return m.Reply, nil
}

// CallCount returns the number of Complete calls.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the user prompt of the most recent call.
func (m *MockChatModel) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastSystem returns the system prompt of the most recent call.
func (m *MockChatModel) LastSystem() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem
}

// LastOptions returns the completion options of the most recent call.
func (m *MockChatModel) LastOptions() ai.CompletionOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastOpts
}
