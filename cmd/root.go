package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "classifieds-cli",
	Short: "Kleinanzeigen listing scraper and analyst",
	Long:  "Scrapes Kleinanzeigen listings with their seller profile and images, analyzes them with an AI model, and answers follow-up questions per listing.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
