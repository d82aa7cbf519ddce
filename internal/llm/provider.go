package llm

import (
	"context"
)

// Provider defines the interface for LLM providers. The scheduler treats the
// model's output as untrusted text and never parses it as structured data
// directly.
type Provider interface {
	// Chat sends a chat completion request to the provider.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// GetDefaultModel returns the default model identifier for this provider.
	// Used when no specific model is requested.
	GetDefaultModel() string
}

// Role represents the role of a message sender in the conversation.
type Role string

const (
	RoleSystem    Role = "system"    // System message provides context/instructions
	RoleUser      Role = "user"      // User message represents user input
	RoleAssistant Role = "assistant" // Assistant message represents model response
)

// Message represents a single message in the chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage tracks token usage information for the request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

// ChatResponse represents a response from the LLM provider.
type ChatResponse struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`

	// Model is the actual model used for the completion (may differ from request).
	Model string `json:"model"`
}

// Ask is a convenience helper for the single-prompt, single-answer pattern
// used by the scheduler: one user message in, plain text out.
func Ask(ctx context.Context, p Provider, prompt string) (string, error) {
	resp, err := p.Chat(ctx, ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
		Model:    p.GetDefaultModel(),
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
