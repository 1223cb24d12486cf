package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmail/internal/service/assistant"
)

var (
	contextTo   []string
	contextJSON bool
)

var contextCmd = &cobra.Command{
	Use:   "context <thread-id>",
	Short: "Print the context of a thread that may be shown to the given recipients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.assistant.PrepareContext(ctx, assistant.Request{
			ThreadID:     args[0],
			Participants: contextTo,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if contextJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		}

		fmt.Fprint(out, p.Text)

		errOut := cmd.ErrOrStderr()
		if p.Degraded {
			fmt.Fprintln(errOut, "note: summaries unavailable, showing recent messages only")
		}
		if p.Withheld() {
			fmt.Fprintf(errOut, "note: withheld %d messages, %d speech acts, %d knowledge entries not seen by every recipient\n",
				p.WithheldMessages, p.WithheldSpeechActs, p.WithheldKnowledge)
		}
		return nil
	},
}

func init() {
	contextCmd.Flags().StringSliceVar(&contextTo, "to", nil, "recipients of the reply (repeatable or comma separated)")
	contextCmd.Flags().BoolVar(&contextJSON, "json", false, "print the assembled context as JSON")
	_ = contextCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(contextCmd)
}
