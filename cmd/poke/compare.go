package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/application/service"
)

func compareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare <image a> <image b>",
		Short: "Print the cosine similarity of two images",
		Long: `Print the cosine similarity of two images, paths or URLs, in [-1, 1].
Neither image needs to be in the catalog.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, logger, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			score, err := client.Compare(cmd.Context(), service.ParseSource(args[0]), service.ParseSource(args[1]))
			if err != nil {
				return fmt.Errorf("compare: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", score)
			return err
		},
	}
}
