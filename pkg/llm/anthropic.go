package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// anthropicDefaultMaxTokens applies when the config leaves MaxTokens
// unset; the Anthropic API requires an explicit cap.
const anthropicDefaultMaxTokens = 1024

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	maxTok   int
	logger   *zap.Logger
}

// NewAnthropicClient creates an Anthropic client. Endpoint overrides the
// default API base URL, for proxies.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	maxTok := cfg.MaxTokens
	if maxTok <= 0 {
		maxTok = anthropicDefaultMaxTokens
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		maxTok:   maxTok,
		logger:   logger.Named("llm.anthropic"),
	}, nil
}

// GenerateResponse generates a completion via the Messages API.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64) (*GenerateResponseResult, error) {
	temp := float32(temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   c.maxTok,
		Temperature: &temp,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	content := resp.GetFirstContentText()
	if content == "" {
		return nil, fmt.Errorf("no text content in response")
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}

// Ensure AnthropicClient implements LLMClient at compile time.
var _ LLMClient = (*AnthropicClient)(nil)
