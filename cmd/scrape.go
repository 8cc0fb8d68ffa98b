package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/scrape"
)

var scrapeOutputDir string

var scrapeCmd = &cobra.Command{
	Use:   "scrape <url>",
	Short: "Scrape a single listing and store it with its images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		listingURL, err := scrape.NormalizeListingURL(args[0])
		if err != nil {
			return err
		}
		if scrapeOutputDir != "" {
			cfg.Store.OutputDir = scrapeOutputDir
		}

		env, err := initPipeline(ctx, cfg, modeScrape)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Scraper.Scrape(ctx, listingURL)
		if err != nil {
			return err
		}

		zap.L().Info("scrape complete",
			zap.String("ad_id", rec.ID),
			zap.String("output_dir", cfg.Store.OutputDir),
		)
		return printJSON(cmd.OutOrStdout(), rec)
	},
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeOutputDir, "output", "", "output directory (default from config)")
	rootCmd.AddCommand(scrapeCmd)
}
