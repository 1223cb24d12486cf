package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmail/internal/providers/mailbox"
	"github.com/sandevgo/tuskmail/internal/service/assistant"
	"github.com/sandevgo/tuskmail/pkg/log"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest emails from .eml files, JSON exports or directories",
	Long: `Ingest emails from .eml files, JSON exports or directories.

Emails already ingested are skipped. Emails whose speech acts could not be
extracted are classified again when ingested again.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		logger := log.FromCtx(ctx)
		var emails, acts, failed int

		for _, path := range args {
			loaded, err := mailbox.Load(ctx, path)
			if err != nil {
				return err
			}

			for _, email := range loaded {
				extracted, err := a.assistant.Ingest(ctx, email)
				switch {
				case errors.Is(err, assistant.ErrClassification):
					logger.Warn().Err(err).Str("message_id", email.ID).Msg("email ingested without speech acts")
					failed++
				case err != nil:
					return err
				}
				emails++
				acts += len(extracted)
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d emails, %d speech acts", emails, acts)
		if failed > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), ", %d without speech acts (run ingest again to retry)", failed)
		}
		fmt.Fprintln(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
