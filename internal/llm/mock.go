package llm

import (
	"context"
	"fmt"
)

// MockProvider is a mock implementation of the Provider interface for testing
// and graceful degradation scenarios.
type MockProvider struct {
	responses     []string
	responseIndex int
	mode          MockMode
	errorAfter    int
	callCount     int
}

// MockMode defines the operation mode of the mock provider.
type MockMode int

const (
	// MockModeEcho returns the user's message back.
	MockModeEcho MockMode = iota

	// MockModeFixed returns a fixed response.
	MockModeFixed

	// MockModeFixtures returns pre-defined responses in order, repeating the
	// last one once exhausted.
	MockModeFixtures

	// MockModeError always returns an error.
	MockModeError
)

// MockConfig holds configuration for the mock provider.
type MockConfig struct {
	Mode       MockMode
	Responses  []string
	ErrorAfter int // Number of successful calls before returning errors
}

// NewMockProvider creates a new mock LLM provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	return &MockProvider{
		mode:       cfg.Mode,
		responses:  cfg.Responses,
		errorAfter: cfg.ErrorAfter,
	}
}

// NewEchoProvider creates a mock provider that echoes user messages.
func NewEchoProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeEcho})
}

// NewFixedProvider creates a mock provider that always returns a fixed response.
func NewFixedProvider(response string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixed, Responses: []string{response}})
}

// NewFixturesProvider creates a mock provider that replays pre-defined
// responses in order.
func NewFixturesProvider(responses []string) *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeFixtures, Responses: responses})
}

// NewErrorProvider creates a mock provider that always returns errors.
func NewErrorProvider() *MockProvider {
	return NewMockProvider(MockConfig{Mode: MockModeError})
}

// Chat implements the Provider interface.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.callCount++

	if m.errorAfter > 0 && m.callCount > m.errorAfter {
		return nil, fmt.Errorf("mock provider error after %d calls", m.errorAfter)
	}
	if m.mode == MockModeError {
		return nil, fmt.Errorf("mock provider error")
	}

	var userMessage string
	if len(req.Messages) > 0 {
		last := req.Messages[len(req.Messages)-1]
		if last.Role == RoleUser {
			userMessage = last.Content
		}
	}

	var response string
	switch m.mode {
	case MockModeEcho:
		response = fmt.Sprintf("Echo: %s", userMessage)
	case MockModeFixed:
		if len(m.responses) > 0 {
			response = m.responses[0]
		}
	case MockModeFixtures:
		if len(m.responses) > 0 {
			if m.responseIndex >= len(m.responses) {
				m.responseIndex = len(m.responses) - 1
			}
			response = m.responses[m.responseIndex]
			m.responseIndex++
		}
	}

	return &ChatResponse{
		Content:      response,
		Model:        req.Model,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     len(userMessage),
			CompletionTokens: len(response),
			TotalTokens:      len(userMessage) + len(response),
		},
	}, nil
}

// GetDefaultModel implements the Provider interface.
func (m *MockProvider) GetDefaultModel() string {
	return "mock-model"
}

// GetCallCount returns the number of Chat() calls made to this provider.
func (m *MockProvider) GetCallCount() int {
	return m.callCount
}

// ResetCallCount resets the call counter.
func (m *MockProvider) ResetCallCount() {
	m.callCount = 0
}

// SetResponses replaces the list of responses and rewinds the cursor.
func (m *MockProvider) SetResponses(responses []string) {
	m.responses = responses
	m.responseIndex = 0
}
