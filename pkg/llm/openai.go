package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint  string // Base URL, e.g. "https://api.openai.com/v1"
	Model     string // Model name, e.g. "gpt-4o"
	APIKey    string // Optional for local endpoints
	MaxTokens int    // Completion token cap; 0 means provider default
}

// OpenAIClient talks to any OpenAI-compatible endpoint (OpenAI itself,
// vLLM, Ollama, LM Studio).
type OpenAIClient struct {
	client   *openai.Client
	endpoint string
	model    string
	maxTok   int
	logger   *zap.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(cfg *Config, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &OpenAIClient{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: clientConfig.BaseURL,
		model:    cfg.Model,
		maxTok:   cfg.MaxTokens,
		logger:   logger.Named("llm.openai"),
	}, nil
}

// GenerateResponse generates a chat completion response with usage stats.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            messages,
		Temperature:         float32(temperature),
		MaxCompletionTokens: c.maxTok,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *OpenAIClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *OpenAIClient) GetEndpoint() string {
	return c.endpoint
}

// Ensure OpenAIClient implements LLMClient at compile time.
var _ LLMClient = (*OpenAIClient)(nil)
