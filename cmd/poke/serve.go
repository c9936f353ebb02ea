package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yksoni-monk/poke"
	"github.com/yksoni-monk/poke/infrastructure/api"
	apimiddleware "github.com/yksoni-monk/poke/infrastructure/api/middleware"
	"github.com/yksoni-monk/poke/internal/config"
)

func serveCmd() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  HOST                 Server host to bind to (default: 0.0.0.0)
  PORT                 Server port to listen on (default: 8080)
  DATA_DIR             Data directory (default: ~/.poke)
  DB_URL               Card database URL (default: sqlite:///{data_dir}/poke.db)
  LOG_LEVEL            Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT           Log format: pretty, json (default: pretty)
  API_KEYS             Comma-separated keys required for card imports

  INDEX_DIR            Catalog index directory (default: {data_dir}/index)
  CACHE_DIR            Embedding cache directory (default: {data_dir}/embeddings)
  HTTP_CACHE_DIR       On-disk cache for downloaded images (default: off)
  CACHE_VALIDATE       Re-validate cached embeddings on read (default: true)
  SEARCH_TOP_K         Candidates returned per query (default: 10)
  SEARCH_CHUNK_SIZE    Index rows scored per chunk (default: 100)

  ENCODER_*            CLIP inference service
    BASE_URL           Base URL (e.g., http://localhost:8000)
    TIMEOUT            Request timeout in seconds (default: 60)
    INPUT_SIZE         Model input edge in pixels (default: 224)
    MAX_RETRIES        Retry attempts (default: 3)

  FETCH_TIMEOUT        Image download timeout in seconds (default: 10)
  BUILD_PARALLELISM    Rows embedded at once during builds (default: 1)
  INDEX_RELOAD_INTERVAL  Seconds between checks for a rebuilt index (default: 30, 0 disables)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, host, port)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: 8080)")

	return cmd
}

func runServe(cmd *cobra.Command, host string, port int) error {
	client, cfg, logger, err := openClient(cmd, serveOverrides(host, port)...)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)
	logSettings(logger, cfg, "starting poke")

	if !client.IndexExists() {
		logger.Warn("no catalog index found, identification returns 503 until one is built",
			slog.String("index_dir", client.IndexDir()))
	}

	apiServer := api.NewAPIServer(client, cfg.APIKeys(), version)
	router := apiServer.Router()

	// Middleware must be added before MountRoutes.
	router.Use(apimiddleware.Logging(logger))
	router.Use(apimiddleware.CorrelationID)

	apiServer.MountRoutes()

	router.Get("/health", healthHandler)
	router.Get("/healthz", healthHandler)
	router.Get("/readyz", readyHandler(client))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{
			"name":    "poke",
			"version": version,
			"docs":    "/docs",
		})
	})

	docsRouter := apiServer.DocsRouter("/docs/openapi.json")
	router.Mount("/docs", docsRouter.Routes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	server := api.NewServer(cfg.Addr(), logger)
	server.Router().Mount("/", router)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		shutdownCtx, done := context.WithTimeout(ctx, 30*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", slog.Any("error", err))
		}
	}()

	if err := server.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readyHandler reports whether the index is built and the encoder service
// answers.
func readyHandler(client *poke.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !client.IndexExists() {
			apimiddleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no index"})
			return
		}
		if err := client.Ready(r.Context()); err != nil {
			apimiddleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "encoder unavailable", "error": err.Error()})
			return
		}
		apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// serveOverrides returns config options for the command line flags, which
// take precedence over the environment.
func serveOverrides(host string, port int) []config.AppConfigOption {
	var opts []config.AppConfigOption
	if host != "" {
		opts = append(opts, config.WithHost(host))
	}
	if port != 0 {
		opts = append(opts, config.WithPort(port))
	}
	return opts
}
