// Package provider implements text-generation provider clients and the
// prioritized failover pool that executes generation requests.
package provider

import (
	"context"
	"time"
)

// LLMProvider is the interface for text-generation API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// Config describes one provider in the pool. Only enabled providers
// participate; ordering is by ascending Priority.
type Config struct {
	Name          string        `json:"name"`
	Endpoint      string        `json:"endpoint"`
	APIKey        string        `json:"apiKey"`
	Model         string        `json:"model"`
	MaxTokens     int           `json:"maxTokens"`
	Temperature   float64       `json:"temperature"`
	Timeout       time.Duration `json:"timeout"`
	RetryAttempts int           `json:"retryAttempts"`
	Priority      int           `json:"priority"`
	Enabled       bool          `json:"enabled"`
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
