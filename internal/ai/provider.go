package ai

import (
	"context"
	"fmt"
	"time"

	"discordllmbot/internal/config"
)

// Usage is the normalized token accounting reported by a provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Reply is the normalized generation result.
type Reply struct {
	Text  string
	Usage Usage
}

// Provider is the uniform contract every text-generation backend shares.
type Provider interface {
	Generate(ctx context.Context, prompt string) (Reply, error)
	ListModels(ctx context.Context) ([]string, error)
}

// New builds the configured provider wrapped with the retry layer. An
// unknown provider name is a configuration error, never a silent fallback.
func New(cfg *config.Config) (Provider, error) {
	var inner Provider
	switch cfg.AIProvider {
	case "openai":
		inner = newOpenAIProvider(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)
	case "pollinations":
		inner = newPollinationsProvider(cfg.AIModel)
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %q", cfg.AIProvider)
	}
	return newRetrying(inner, cfg.AIRetryAttempts, time.Duration(cfg.AIRetryBackoffMs)*time.Millisecond), nil
}
