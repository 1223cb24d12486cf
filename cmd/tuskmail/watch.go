package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmail/internal/core"
	"github.com/sandevgo/tuskmail/internal/providers/mailbox"
	"github.com/sandevgo/tuskmail/internal/service/assistant"
	"github.com/sandevgo/tuskmail/pkg/log"
	"github.com/sandevgo/tuskmail/pkg/srv"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Ingest new mail files from a directory until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}

		watcher := mailbox.NewWatcher(args[0], watchInterval, ingestHandler(a.assistant))

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting tuskmail watcher")

		err = srv.Run(ctx, []srv.Service{
			srv.NewCleanup(a.Close),
			watcher,
		})

		logger.Info().Msg("tuskmail watcher has been shut down gracefully")
		return err
	},
}

// ingestHandler keeps emails whose classification failed. Other errors make
// the watcher retry the file.
func ingestHandler(a *assistant.Assistant) mailbox.Handler {
	return func(ctx context.Context, email core.Email) error {
		_, err := a.Ingest(ctx, email)
		if errors.Is(err, assistant.ErrClassification) {
			log.FromCtx(ctx).Warn().Err(err).Str("message_id", email.ID).Msg("email ingested without speech acts")
			return nil
		}
		return err
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 30*time.Second, "poll interval")
	rootCmd.AddCommand(watchCmd)
}
