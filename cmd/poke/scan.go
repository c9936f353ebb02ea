package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/application/service"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <image path or URL>",
		Short: "Identify a card and print its metadata and reference price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, logger, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			src := service.ParseSource(args[0])
			result, err := client.Scan(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("scan %s: %w", src, err)
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
}
