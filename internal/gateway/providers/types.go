package providers

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string
	System      string
	Messages    []openai.ChatCompletionMessage
	MaxTokens   int
	Temperature *float32
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID        string
	Model     string
	Content   string
	Usage     openai.Usage
	LatencyMs int
}

// Provider is the interface all LLM providers must implement
type Provider interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetProviderName() string
}

// StatusError is returned when a provider answers with a non-2xx status.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}
