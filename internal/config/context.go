package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tuskmail/pkg/log"
)

const (
	TokenEstimatorHeuristic = "heuristic"
	TokenEstimatorTiktoken  = "tiktoken"
)

// ContextConfig drives hybrid context assembly. Values are fixed for the
// lifetime of an assembler.
type ContextConfig struct {
	RecentWindow     int      `env:"TUSKMAIL_RECENT_WINDOW" envDefault:"10"`
	SummaryBatchSize int      `env:"TUSKMAIL_SUMMARY_BATCH_SIZE" envDefault:"5"`
	MaxContextTokens int      `env:"TUSKMAIL_MAX_CONTEXT_TOKENS" envDefault:"32000"`
	DomainKeywords   []string `env:"TUSKMAIL_DOMAIN_KEYWORDS" envSeparator:","`
	SummaryCacheSize int      `env:"TUSKMAIL_SUMMARY_CACHE_SIZE" envDefault:"512"`
	TokenEstimator   string   `env:"TUSKMAIL_TOKEN_ESTIMATOR" envDefault:"heuristic"`

	// Upper bound of speech acts attached as relevant material per request.
	MaxRelevantSpeechActs int `env:"TUSKMAIL_MAX_RELEVANT_ACTS" envDefault:"20"`
}

func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		RecentWindow:          10,
		SummaryBatchSize:      5,
		MaxContextTokens:      32000,
		SummaryCacheSize:      512,
		TokenEstimator:        TokenEstimatorHeuristic,
		MaxRelevantSpeechActs: 20,
	}
}

func NewContextConfig(ctx context.Context) *ContextConfig {
	c, err := ParseContextConfig(nil)
	if err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Context config")
	}
	return c
}

// ParseContextConfig reads the config from environ, or from the process
// environment when environ is nil.
func ParseContextConfig(environ map[string]string) (*ContextConfig, error) {
	c := &ContextConfig{}
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, err
	}
	return c, nil
}
