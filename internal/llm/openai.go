package llm

import (
	"bytes"
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aatumaykin/taskmind/internal/logger"
)

const (
	// OpenAIRequestTimeout is the default timeout for API requests
	OpenAIRequestTimeout = 60 * time.Second
	// OpenAIMaxRetries is the maximum number of retry attempts
	OpenAIMaxRetries = 3
	// OpenAIRetryDelay is the delay between retry attempts
	OpenAIRetryDelay = 1 * time.Second
)

// OpenAIConfig contains configuration for an OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey         string  `json:"api_key"`
	BaseURL        string  `json:"base_url"` // e.g. https://api.openai.com/v1
	Model          string  `json:"model"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSeconds int     `json:"timeout_seconds"`
}

// OpenAIProvider implements the Provider interface for OpenAI-compatible
// chat completion APIs.
type OpenAIProvider struct {
	client *http.Client
	config OpenAIConfig
	apiURL string
	logger *logger.Logger
}

type openaiRequest struct {
	Messages    []openaiMessage `json:"messages"`
	Model       string          `json:"model"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string          `json:"id"`
	Model   string          `json:"model"`
	Choices []openaiChoice  `json:"choices"`
	Usage   openaiUsage     `json:"usage"`
	Error   *openaiAPIError `json:"error,omitempty"`
}

type openaiChoice struct {
	Index        int           `json:"index"`
	Message      openaiMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openaiAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// openaiHTTPError represents a non-2xx HTTP response from the API.
type openaiHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openaiHTTPError) Error() string {
	return fmt.Sprintf("HTTP error: status=%d, body=%s", e.StatusCode, e.Body)
}

// NewOpenAIProvider creates a new OpenAIProvider instance.
func NewOpenAIProvider(cfg OpenAIConfig, log *logger.Logger) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = OpenAIRequestTimeout
	}

	return &OpenAIProvider{
		client: &http.Client{Timeout: timeout},
		config: cfg,
		apiURL: strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		logger: log,
	}
}

// Chat implements the Provider interface.
func (p *OpenAIProvider) Chat(ctx stdcontext.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = p.config.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = p.config.MaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = p.config.Temperature
	}

	body, err := json.Marshal(p.mapChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= OpenAIMaxRetries; attempt++ {
		resp, err := p.doRequest(ctx, body)
		if err == nil {
			return p.mapChatResponse(resp), nil
		}
		lastErr = err

		// Client errors (4xx other than 429) will not succeed on retry.
		var httpErr *openaiHTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			break
		}

		p.logger.WarnCtx(ctx, "LLM request failed, retrying",
			logger.Field{Key: "attempt", Value: attempt},
			logger.Field{Key: "error", Value: err.Error()})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(OpenAIRetryDelay * time.Duration(attempt)):
		}
	}

	return nil, fmt.Errorf("chat completion failed after %d attempts: %w", OpenAIMaxRetries, lastErr)
}

// GetDefaultModel implements the Provider interface.
func (p *OpenAIProvider) GetDefaultModel() string {
	return p.config.Model
}

func (p *OpenAIProvider) doRequest(ctx stdcontext.Context, reqBody []byte) (*openaiResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.config.APIKey))

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		p.logger.ErrorCtx(ctx, "LLM API returned error status", nil,
			logger.Field{Key: "status_code", Value: httpResp.StatusCode},
			logger.Field{Key: "response_body", Value: string(respBody)})
		return nil, &openaiHTTPError{StatusCode: httpResp.StatusCode, Body: string(respBody)}
	}

	var apiResp openaiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %s): %s",
			apiResp.Error.Type, apiResp.Error.Code, apiResp.Error.Message)
	}

	return &apiResp, nil
}

func (p *OpenAIProvider) mapChatRequest(req ChatRequest) openaiRequest {
	messages := make([]openaiMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openaiMessage{Role: string(msg.Role), Content: msg.Content}
	}
	return openaiRequest{
		Messages:    messages,
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
}

func (p *OpenAIProvider) mapChatResponse(apiResp *openaiResponse) *ChatResponse {
	resp := &ChatResponse{
		Model: apiResp.Model,
		Usage: Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		},
	}

	if len(apiResp.Choices) == 0 {
		resp.FinishReason = "stop"
		return resp
	}

	choice := apiResp.Choices[0]
	resp.Content = choice.Message.Content
	resp.FinishReason = choice.FinishReason
	if resp.FinishReason == "" {
		resp.FinishReason = "stop"
	}

	return resp
}
