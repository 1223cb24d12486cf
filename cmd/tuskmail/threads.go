package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var threadsCmd = &cobra.Command{
	Use:   "threads",
	Short: "List ingested threads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		for _, id := range a.assistant.Threads() {
			emails := a.assistant.Thread(id)
			subject := ""
			if len(emails) > 0 {
				subject = emails[0].Subject
			}
			fmt.Fprintf(out, "%s\t%d\t%s\n", id, len(emails), strings.TrimSpace(subject))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(threadsCmd)
}
