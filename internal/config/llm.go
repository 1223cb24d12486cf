package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmail/pkg/log"
)

type LLMConfig struct {
	Provider string        `env:"LLM_PROVIDER" envDefault:"openrouter"`
	Model    string        `env:"LLM_MODEL" envDefault:"google/gemma-3-27b-it:free"`
	APIKey   string        `env:"LLM_API_KEY"`
	BaseURL  string        `env:"LLM_BASE_URL"`
	Timeout  time.Duration `env:"LLM_TIMEOUT" envDefault:"120s"`
}

func NewLLMConfig(ctx context.Context) *LLMConfig {
	c := &LLMConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse LLM config")
	}
	return c
}
