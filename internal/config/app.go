package config

import (
	"context"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmail/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"TUSKMAIL_RUNTIME_PATH" envDefault:".tuskmail"`

	// Classify incoming emails into speech acts while ingesting.
	ClassifyOnIngest bool `env:"TUSKMAIL_CLASSIFY" envDefault:"true"`

	// Address of the shared assistant identity. It is never treated as part of
	// the audience when checking what may be shared.
	AssistantAddress string `env:"TUSKMAIL_ASSISTANT_ADDRESS"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	if !filepath.IsAbs(c.RuntimePath) {
		c.RuntimePath = GetRuntimePath()
	}
	return c
}

func (c AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "tuskmail.db")
}

func (c AppConfig) GetEnvPath() string {
	return filepath.Join(c.RuntimePath, ".env")
}
