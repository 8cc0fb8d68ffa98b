package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <ad-id> <question...>",
	Short: "Ask a follow-up question about a listing",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, cfg, modeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Service.AskFollowup(ctx, args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
