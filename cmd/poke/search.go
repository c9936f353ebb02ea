package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/match"
)

// candidate is one ranked search result.
type candidate struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

func searchCmd() *cobra.Command {
	var (
		topK    int
		idsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "search <image path or URL>",
		Short: "Find the most similar catalog cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, logger, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			src := service.ParseSource(args[0])
			var results []match.Result
			if topK > 0 {
				results, err = client.IdentifyK(cmd.Context(), src, topK)
			} else {
				results, err = client.Identify(cmd.Context(), src)
			}
			if err != nil {
				return fmt.Errorf("search %s: %w", src, err)
			}

			if idsOnly {
				return writeJSON(cmd.OutOrStdout(), match.IDs(results))
			}
			out := make([]candidate, len(results))
			for i, r := range results {
				out[i] = candidate{ID: r.ID(), Score: r.Score()}
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of candidates (default: SEARCH_TOP_K)")
	cmd.Flags().BoolVar(&idsOnly, "ids", false, "Print identifiers only")

	return cmd
}
