package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ad-id>",
	Short: "Analyze a scraped listing with the configured backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx, cfg, modeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Service.Analyze(ctx, args[0])
		if err != nil {
			return err
		}
		if !rec.Success {
			zap.L().Warn("analysis failed, stored for retry", zap.String("ad_id", args[0]))
		}
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
