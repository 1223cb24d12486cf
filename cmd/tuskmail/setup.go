package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/internal/providers/llm"
	"github.com/sandevgo/tuskmail/internal/service/assistant"
	"github.com/sandevgo/tuskmail/internal/service/memory"
	"github.com/sandevgo/tuskmail/internal/storage/sqlite"
	"github.com/sandevgo/tuskmail/pkg/log"
	"github.com/sandevgo/tuskmail/pkg/retry"
)

type app struct {
	cfg       *config.AppConfig
	ctxCfg    *config.ContextConfig
	llmCfg    *config.LLMConfig
	db        *sql.DB
	journal   *sqlite.JournalRepo
	assistant *assistant.Assistant
}

// newApp loads configuration, opens the journal and restores the assistant
// state from it.
func newApp(ctx context.Context) (*app, error) {
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return nil, fmt.Errorf("init env: %w", err)
	}

	a := &app{
		cfg:    config.NewAppConfig(ctx),
		ctxCfg: config.NewContextConfig(ctx),
		llmCfg: config.NewLLMConfig(ctx),
	}

	db, err := sqlite.NewDB(ctx, a.cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.db = db
	a.journal = sqlite.NewJournalRepo(db)

	ai, err := llm.NewProvider(ctx, a.llmCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init llm provider: %w", err)
	}
	retrier := retry.NewDefaultRetrier()

	estimator, err := memory.NewTokenEstimator(a.ctxCfg.TokenEstimator)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init token estimator: %w", err)
	}

	assembler, err := memory.NewHybridAssembler(*a.ctxCfg, memory.NewLLMSummarizer(ai, retrier),
		memory.WithTokenEstimator(estimator),
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init assembler: %w", err)
	}

	opts := []assistant.Option{
		assistant.WithJournal(a.journal),
		assistant.WithAssistantAddress(a.cfg.AssistantAddress),
		assistant.WithMaxRelevantActs(a.ctxCfg.MaxRelevantSpeechActs),
	}
	if a.cfg.ClassifyOnIngest {
		opts = append(opts, assistant.WithClassifier(assistant.NewLLMClassifier(ai, retrier)))
	}
	a.assistant = assistant.NewAssistant(assembler, opts...)

	if err := a.assistant.Restore(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
