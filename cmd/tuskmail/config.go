package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sandevgo/tuskmail/internal/config"
	"github.com/sandevgo/tuskmail/pkg/env"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration in .env format",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, done := commandContext(cmd)
		defer done()

		if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
			return err
		}

		for _, c := range []any{
			config.NewAppConfig(ctx),
			config.NewContextConfig(ctx),
			config.NewLLMConfig(ctx),
		} {
			out, err := env.MarshalEnv(c, "LLM_API_KEY")
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
