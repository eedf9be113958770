// Package llm builds the configured chat model behind eino's ToolCallingChatModel.
package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"

	"github.com/olusolaa/searchchat/foundation/anthropic"
	"github.com/olusolaa/searchchat/foundation/config"
	"github.com/olusolaa/searchchat/foundation/gemini"
	"github.com/olusolaa/searchchat/foundation/openai"
)

// NewChatModel returns the chat model for cfg.Provider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		cm, err := openai.NewChatModel(ctx, &openai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return cm, nil
	case config.ProviderAnthropic:
		cm, err := anthropic.NewChatModel(ctx, &anthropic.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Timeout:    cfg.RequestTimeout,
			MaxRetries: cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return cm, nil
	case config.ProviderGemini:
		return gemini.NewChatModel(ctx, &gemini.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.RequestTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
