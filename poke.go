// Package poke identifies trading cards from photos by comparing image
// embeddings against a precomputed catalog index.
//
// Basic usage:
//
//	client, err := poke.New(
//	    poke.WithDataDir(".poke"),
//	    poke.WithSQLite(".poke/poke.db"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Build the catalog index once from the card list
//	rows, err := ingest.ReadCSVFile("cards.csv")
//	report, err := client.BuildIndex(ctx, rows)
//
//	// Identify a photo
//	ids, err := client.FindSimilar(ctx, service.FromPath("scan.jpg"))
//
//	// Best match with metadata and a reference price
//	result, err := client.Scan(ctx, service.FromPath("scan.jpg"))
package poke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/domain/match"
	"github.com/yksoni-monk/poke/infrastructure/cache"
	"github.com/yksoni-monk/poke/infrastructure/imageproc"
	"github.com/yksoni-monk/poke/infrastructure/ingest"
	"github.com/yksoni-monk/poke/infrastructure/persistence"
	"github.com/yksoni-monk/poke/infrastructure/provider"
	"github.com/yksoni-monk/poke/internal/config"
	"github.com/yksoni-monk/poke/internal/database"
)

// Client is the main entry point for the poke library.
//
// Access services via struct fields:
//
//	client.Matcher.IdentifyK(ctx, src, 5)
//	client.Builder.Build(ctx, rows)
//	client.Comparer.Compare(ctx, a, b)
type Client struct {
	Matcher  *service.Matcher
	Builder  *service.Builder
	Comparer *service.Comparer
	// Scanner is nil when no card database is configured.
	Scanner *service.Scanner

	db       *database.Database
	cards    *persistence.CardStore
	indexes  *persistence.IndexStore
	embedder *cache.FileCache
	encoder  embedding.Encoder
	reloader *service.IndexReloader
	closers  []io.Closer

	logger *slog.Logger
	closed atomic.Bool
	mu     sync.Mutex
}

// readier is implemented by encoders that can report service readiness.
type readier interface {
	Ready(ctx context.Context) error
}

// New creates a new Client with the given options. The card database is
// optional; without one, Scan and the card operations return ErrNoDatabase.
func New(opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = config.DefaultLogger()
	}

	dataDir, err := config.PrepareDataDir(cfg.dataDir)
	if err != nil {
		return nil, err
	}
	cfg.dataDir = dataDir

	fetcher := cfg.fetcher
	if fetcher == nil {
		fetchOpts := []provider.FetchOption{
			provider.WithFetchTimeout(cfg.fetchTimeout),
			provider.WithFetchLogger(logger),
		}
		if cfg.httpCacheDir != "" {
			transport, err := provider.NewCachingTransport(cfg.httpCacheDir, nil, logger)
			if err != nil {
				return nil, fmt.Errorf("http cache: %w", err)
			}
			fetchOpts = append(fetchOpts, provider.WithTransport(transport))
		}
		fetcher = provider.NewHTTPFetcher(fetchOpts...)
	}

	encoder := cfg.encoder
	if encoder == nil {
		ep := cfg.endpoint
		encoder = provider.NewCLIPEncoder(ep.BaseURL(),
			provider.WithTimeout(ep.Timeout()),
			provider.WithMaxRetries(ep.MaxRetries()),
			provider.WithInitialDelay(ep.InitialDelay()),
			provider.WithBackoffFactor(ep.BackoffFactor()),
			provider.WithEncoderLogger(logger),
		)
	}

	embedder, err := cache.NewFileCache(cfg.resolvedCacheDir(), encoder,
		cache.WithPreprocessor(imageproc.NewPreprocessor(imageproc.WithSize(cfg.endpoint.InputSize()))),
		cache.WithValidation(cfg.cacheValidate),
		cache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}

	indexes := persistence.NewIndexStore(cfg.resolvedIndexDir(), logger)

	client := &Client{
		indexes:  indexes,
		embedder: embedder,
		encoder:  encoder,
		closers:  cfg.closers,
		logger:   logger,
	}

	client.Matcher = service.NewMatcher(embedder, indexes,
		service.WithTopK(cfg.search.TopK()),
		service.WithChunkSize(cfg.search.ChunkSize()),
		service.WithFetcher(fetcher),
		service.WithMatcherLogger(logger),
	)
	client.Builder = service.NewBuilder(fetcher, embedder, indexes,
		service.WithParallelism(cfg.buildParallelism),
		service.WithBuildChunkSize(cfg.search.ChunkSize()),
		service.WithBuilderLogger(logger),
	)
	client.Comparer = service.NewComparer(embedder, fetcher)
	client.reloader = service.NewIndexReloader(cfg.indexReload, indexes, client.Matcher, logger)

	if cfg.dbURL != "" {
		db, err := openDatabase(context.Background(), cfg.dbURL)
		if err != nil {
			return nil, err
		}
		cards := persistence.NewCardStore(db)
		client.db = &db
		client.cards = &cards
		client.Scanner = service.NewScanner(client.Matcher, cards, logger)
	}

	client.reloader.Start(context.Background())

	return client, nil
}

func openDatabase(ctx context.Context, url string) (database.Database, error) {
	db, err := database.NewDatabase(ctx, url)
	if err != nil {
		return database.Database{}, fmt.Errorf("open database: %w", err)
	}
	if err := persistence.AutoMigrate(db); err != nil {
		errClose := db.Close()
		return database.Database{}, errors.Join(fmt.Errorf("auto migrate: %w", err), errClose)
	}
	if err := persistence.ValidateSchema(db); err != nil {
		errClose := db.Close()
		return database.Database{}, errors.Join(fmt.Errorf("validate schema: %w", err), errClose)
	}
	return db, nil
}

// Close releases the database and any registered resources.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return service.ErrClientClosed
	}

	c.reloader.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	c.logger.Info("poke client closed")
	return nil
}

func (c *Client) checkOpen() error {
	if c.closed.Load() {
		return service.ErrClientClosed
	}
	return nil
}

// FindSimilar returns catalog identifiers ranked by similarity to src.
func (c *Client) FindSimilar(ctx context.Context, src service.Source) ([]string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.Matcher.FindSimilar(ctx, src)
}

// Identify returns the top candidates for src with their scores.
func (c *Client) Identify(ctx context.Context, src service.Source) ([]match.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.Matcher.Identify(ctx, src)
}

// IdentifyK returns the k best candidates for src.
func (c *Client) IdentifyK(ctx context.Context, src service.Source, k int) ([]match.Result, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.Matcher.IdentifyK(ctx, src, k)
}

// Compare returns the cosine similarity of two images.
func (c *Client) Compare(ctx context.Context, a, b service.Source) (float64, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	return c.Comparer.Compare(ctx, a, b)
}

// BuildIndex embeds rows and persists the catalog index, then makes the
// matcher pick it up on the next query.
func (c *Client) BuildIndex(ctx context.Context, rows []catalog.SourceRow) (service.BuildReport, error) {
	if err := c.checkOpen(); err != nil {
		return service.BuildReport{}, err
	}
	report, err := c.Builder.Build(ctx, rows)
	if err != nil {
		return report, err
	}
	c.Matcher.Reset()
	return report, nil
}

// BuildIndexFromCSV reads the card list at path and builds the index.
func (c *Client) BuildIndexFromCSV(ctx context.Context, path string) (service.BuildReport, error) {
	rows, err := ingest.ReadCSVFile(path)
	if err != nil {
		return service.BuildReport{}, err
	}
	return c.BuildIndex(ctx, rows)
}

// IndexExists reports whether a catalog index has been built.
func (c *Client) IndexExists() bool {
	return c.indexes.Exists()
}

// Scan identifies src and returns the best match with its metadata and a
// reference price.
func (c *Client) Scan(ctx context.Context, src service.Source) (service.ScanResult, error) {
	if err := c.checkOpen(); err != nil {
		return service.ScanResult{}, err
	}
	if c.Scanner == nil {
		return service.ScanResult{}, ErrNoDatabase
	}
	return c.Scanner.Scan(ctx, src)
}

// Card returns the metadata for one catalog card.
func (c *Client) Card(ctx context.Context, id string) (catalog.Card, error) {
	if err := c.checkOpen(); err != nil {
		return catalog.Card{}, err
	}
	if c.cards == nil {
		return catalog.Card{}, ErrNoDatabase
	}
	return c.cards.Get(ctx, id)
}

// Cards returns the card store, or nil when no database is configured.
func (c *Client) Cards() catalog.CardStore {
	if c.cards == nil {
		return nil
	}
	return c.cards
}

// ImportCards upserts card metadata and returns how many records were
// written.
func (c *Client) ImportCards(ctx context.Context, cards []catalog.Card) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	if c.cards == nil {
		return 0, ErrNoDatabase
	}
	if err := c.cards.SaveAll(ctx, cards); err != nil {
		return 0, err
	}
	c.logger.Info("cards imported", slog.Int("count", len(cards)))
	return len(cards), nil
}

// ImportCardsFile reads a card JSON file and upserts its records.
func (c *Client) ImportCardsFile(ctx context.Context, path string) (int, error) {
	cards, err := ingest.ReadCardsFile(path)
	if err != nil {
		return 0, err
	}
	return c.ImportCards(ctx, cards)
}

// Ready checks that the encoder service is reachable, when the encoder
// supports it.
func (c *Client) Ready(ctx context.Context) error {
	if r, ok := c.encoder.(readier); ok {
		return r.Ready(ctx)
	}
	return nil
}

// CacheDir returns the embedding cache directory.
func (c *Client) CacheDir() string {
	return c.embedder.Dir()
}

// IndexDir returns the catalog index directory.
func (c *Client) IndexDir() string {
	return c.indexes.Dir()
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}
