package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/internal/config"
	"github.com/yksoni-monk/poke/internal/log"
)

// openClient loads configuration, sets up logging and creates a client.
// Callers close the client.
func openClient(cmd *cobra.Command, overrides ...config.AppConfigOption) (*poke.Client, config.AppConfig, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, config.AppConfig{}, nil, err
	}
	cfg = cfg.Apply(overrides...)

	logger := log.Configure(cfg)
	client, err := poke.New(clientOptions(cfg, logger)...)
	if err != nil {
		return nil, config.AppConfig{}, nil, fmt.Errorf("create poke client: %w", err)
	}
	return client, cfg, logger, nil
}

// clientOptions returns the poke.Option slice derived from AppConfig.
func clientOptions(cfg config.AppConfig, logger *slog.Logger) []poke.Option {
	return []poke.Option{
		poke.WithConfig(cfg),
		poke.WithLogger(logger),
	}
}

func closeClient(client *poke.Client, logger *slog.Logger) {
	if err := client.Close(); err != nil {
		logger.Error("failed to close poke client", slog.Any("error", err))
	}
}

// logSettings logs the effective configuration at startup.
func logSettings(logger *slog.Logger, cfg config.AppConfig, msg string) {
	attrs := append([]slog.Attr{slog.String("version", version)}, cfg.LogAttrs()...)
	logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}
