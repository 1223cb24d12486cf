package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	accessSources []string
	accessTo      []string
)

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Check whether material from the given emails may be shared with recipients",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.assistant.CheckAccess(accessSources, accessTo)
		if res.Allowed {
			fmt.Fprintln(cmd.OutOrStdout(), "allowed")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "denied: %s\n", res.Reason)
		return fmt.Errorf("access denied for %d participant(s)", len(res.RestrictedParticipants))
	},
}

func init() {
	accessCmd.Flags().StringSliceVar(&accessSources, "source", nil, "source message ids")
	accessCmd.Flags().StringSliceVar(&accessTo, "to", nil, "recipients")
	_ = accessCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(accessCmd)
}
