package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func importCardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-cards <cards.json>",
		Short: "Import card metadata into the card database",
		Long: `Import card metadata into the card database.

The file is a JSON array of cards in the public card API shape, or an API
page object with a "data" array. Cards are upserted by id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, logger, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			n, err := client.ImportCardsFile(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import cards: %w", err)
			}
			logger.Info("import complete", slog.String("file", args[0]), slog.Int("cards", n))
			return writeJSON(cmd.OutOrStdout(), map[string]int{"imported": n})
		},
	}
}
