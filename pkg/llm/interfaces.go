// Package llm provides the analyst agent's language-model clients:
// an OpenAI-compatible client, an Anthropic client, and the extraction
// and error-classification helpers the agent pipeline needs.
package llm

import (
	"context"
)

// GenerateResponseResult is one completed generation with usage stats.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the provider-agnostic generation interface.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse generates a chat completion response.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}
