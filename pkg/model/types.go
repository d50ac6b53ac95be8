// Package model implements the chat-completions client used to drive agents.
// It speaks the OpenAI-compatible API surface exposed by OpenRouter-style
// gateways: structured JSON output, token usage accounting, and typed error
// classification for the harness retry policy.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// JSONSchema names a schema the response must conform to.
type JSONSchema struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// ResponseFormat requests schema-constrained structured output.
type ResponseFormat struct {
	Type       string      `json:"type"` // "json_schema"
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// ChatRequest represents a request to the chat completion API.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stream         bool            `json:"stream"`
}

// ChatResponse represents a chat completion response.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice represents a completion choice.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates usage from another call.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is the result of one successful agent call.
type Completion struct {
	Content string
	Usage   Usage
	// Cost in USD; nil when the catalog has no pricing for the model.
	Cost    *float64
	Latency time.Duration
}

// ModelCatalog represents the list of available models.
type ModelCatalog struct {
	Data []ModelInfo `json:"data"`
}

// ModelInfo represents information about a model.
type ModelInfo struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	ContextLength int          `json:"context_length"`
	Pricing       ModelPricing `json:"pricing"`
}

// ModelPricing represents pricing for a model, normalized to per-million-tokens.
type ModelPricing struct {
	Prompt     float64 `json:"prompt"`
	Completion float64 `json:"completion"`
}

// UnmarshalJSON handles string or number pricing values from the API.
// Gateways report pricing per token; we normalize to per million tokens.
func (p *ModelPricing) UnmarshalJSON(data []byte) error {
	var raw struct {
		Prompt     any `json:"prompt"`
		Completion any `json:"completion"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	prompt, err := pricingValue(raw.Prompt)
	if err != nil {
		return err
	}
	completion, err := pricingValue(raw.Completion)
	if err != nil {
		return err
	}
	p.Prompt = prompt * 1_000_000
	p.Completion = completion * 1_000_000
	return nil
}

func pricingValue(v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseFloat(val, 64)
	case float64:
		return val, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unsupported pricing value %T", v)
	}
}

// ErrorResponse represents an API error response body.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// APIError represents a structured API error with retry classification.
// Rate limits and 5xx-equivalent server errors are retryable; other client
// errors are fatal for the step that issued the request.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       string
	Retryable  bool
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Type != "" && e.Code != "" {
		return fmt.Sprintf("HTTP %d: %s (type: %s, code: %s)", e.StatusCode, e.Message, e.Type, e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsRateLimitError returns true if this is a rate limit error.
func (e *APIError) IsRateLimitError() bool {
	return e.StatusCode == 429
}
