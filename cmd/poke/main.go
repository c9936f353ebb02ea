// Package main is the entry point for the poke CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke/internal/config"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "poke",
		Short:         "Trading card identification",
		Long:          `Poke identifies trading cards from photos by comparing image embeddings against a prebuilt catalog index.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(buildIndexCmd())
	cmd.AddCommand(searchCmd())
	cmd.AddCommand(scanCmd())
	cmd.AddCommand(compareCmd())
	cmd.AddCommand(importCardsCmd())
	cmd.AddCommand(stdioCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(cmd *cobra.Command) (config.AppConfig, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
