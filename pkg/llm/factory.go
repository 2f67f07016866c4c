package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/netsight-ai/netsight-engine/pkg/config"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// NewFromConfig builds the configured provider's client. "openai" covers
// any OpenAI-compatible endpoint (vLLM, Ollama), so it is the default.
func NewFromConfig(cfg *config.AIConfig, logger *zap.Logger) (LLMClient, error) {
	clientCfg := &Config{
		Endpoint:  cfg.BaseURL,
		Model:     cfg.Model,
		APIKey:    cfg.APIKey,
		MaxTokens: cfg.MaxTokens,
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAIClient(clientCfg, logger)
	case ProviderAnthropic:
		return NewAnthropicClient(clientCfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q (expected %s or %s)", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
}
