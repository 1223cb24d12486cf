package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/pkg/log"
)

var (
	debug   bool
	logJSON bool
)

var rootCmd = &cobra.Command{
	Use:          "tuskmail",
	Short:        "TuskMail: privacy-scoped context for email assistants",
	Long:         `TuskMail ingests email threads and assembles LLM context that only contains what every recipient has already seen.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", config.IsDebug(), "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON lines")
}

func setupLogger(ctx context.Context) (context.Context, func()) {
	return log.NewContextWithOptions(ctx, log.Options{
		Debug: debug || config.IsDebug(),
		JSON:  logJSON,
	})
}

// commandContext returns an interruptible context carrying the logger.
func commandContext(cmd *cobra.Command) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	ctx, flushLog := setupLogger(ctx)
	return ctx, func() {
		flushLog()
		stop()
	}
}
