package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/pkg/log"
)

const openAIBaseURL = "https://api.openai.com"

// NewProvider creates the appropriate AIProvider based on configuration.
func NewProvider(ctx context.Context, cfg *config.LLMConfig) (core.AIProvider, error) {
	log.FromCtx(ctx).Info().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Msg("starting llm provider")

	switch cfg.Provider {
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openAIBaseURL
		}
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    baseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	case "openrouter":
		return NewOpenRouter(cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "ollama":
		return NewOllama(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Timeout), nil
	case "custom":
		if cfg.BaseURL == "" {
			return nil, errors.New("custom llm provider requires LLM_BASE_URL")
		}
		return NewOpenAICompatible(OpenAICompatibleConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Timeout:    cfg.Timeout,
			AuthHeader: "Authorization",
			AuthPrefix: "Bearer ",
		}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
}
