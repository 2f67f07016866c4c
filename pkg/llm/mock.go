package llm

import (
	"context"
)

// MockCall records one GenerateResponse invocation.
type MockCall struct {
	Prompt        string
	SystemMessage string
	Temperature   float64
}

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set Responses (consumed in order) or GenerateResponseFunc to control
// behavior.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// Takes precedence over Responses.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error)

	// Responses are returned one per call, in order. After the last one
	// the final response repeats.
	Responses []string

	// Err, when set, is returned by every call.
	Err error

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	// Calls records every invocation for verification.
	Calls []MockCall
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient(responses ...string) *MockLLMClient {
	return &MockLLMClient{
		Model:     "mock-model",
		Endpoint:  "http://mock-endpoint",
		Responses: responses,
	}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	m.Calls = append(m.Calls, MockCall{Prompt: prompt, SystemMessage: systemMessage, Temperature: temperature})

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature)
	}
	if m.Err != nil {
		return nil, m.Err
	}

	content := ""
	if len(m.Responses) > 0 {
		idx := len(m.Calls) - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		content = m.Responses[idx]
	}
	return &GenerateResponseResult{Content: content}, nil
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Reset clears recorded calls.
func (m *MockLLMClient) Reset() {
	m.Calls = nil
}

// Ensure MockLLMClient implements LLMClient at compile time.
var _ LLMClient = (*MockLLMClient)(nil)
