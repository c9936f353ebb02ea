package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/internal/mcp"
)

func stdioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Start MCP server on stdio",
		Long: `Start the MCP (Model Context Protocol) server on stdio.

This lets AI assistants identify cards and look up card metadata.
Logs go to stderr so stdout carries only protocol messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, logger, err := openClient(cmd)
			if err != nil {
				return err
			}
			defer closeClient(client, logger)

			logger.Info("starting MCP server",
				slog.String("version", version),
				slog.String("data_dir", cfg.DataDir()),
				slog.Bool("index_exists", client.IndexExists()),
			)
			if !client.IndexExists() {
				logger.Warn("no catalog index found, identification will fail until one is built",
					slog.String("index_dir", client.IndexDir()))
			}

			opts := []mcp.Option{
				mcp.WithVersion(version),
				mcp.WithLogger(logger),
			}
			var cards mcp.CardLookup
			if store := client.Cards(); store != nil {
				cards = store
				opts = append(opts, mcp.WithScanner(client))
			}
			server := mcp.NewServer(client, cards, opts...)
			return server.ServeStdio()
		},
	}
}
