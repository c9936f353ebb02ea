package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/internal/config"
)

func buildIndexCmd() *cobra.Command {
	var (
		parallelism int
		indexDir    string
	)

	cmd := &cobra.Command{
		Use:   "build-index <cards.csv>",
		Short: "Build the catalog index from a card list",
		Long: `Build the catalog index from a card list CSV.

The CSV header must name the columns "card name", "card id", "card number"
and "card image url". Each image is downloaded, preprocessed and embedded;
rows that fail are logged and skipped. If an index already exists at the
index directory it is kept and nothing is rebuilt.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var overrides []config.AppConfigOption
			if parallelism > 0 {
				overrides = append(overrides, config.WithBuildParallelism(parallelism))
			}
			if indexDir != "" {
				overrides = append(overrides, config.WithIndexDir(indexDir))
			}

			client, cfg, logger, err := openClient(cmd, overrides...)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)
			logSettings(logger, cfg, "building index")

			report, err := client.BuildIndexFromCSV(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			if report.Existing {
				logger.Info("index already exists, skipping build", slog.String("index_dir", client.IndexDir()))
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "Rows fetched and embedded at once (default: BUILD_PARALLELISM)")
	cmd.Flags().StringVar(&indexDir, "index-dir", "", "Index directory (default: INDEX_DIR or {data_dir}/index)")

	return cmd
}
