package poke

import (
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/internal/config"
	"github.com/yksoni-monk/poke/internal/database"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	dataDir          string
	indexDir         string
	cacheDir         string
	httpCacheDir     string
	dbURL            string
	encoder          embedding.Encoder
	endpoint         config.Endpoint
	fetcher          service.Fetcher
	search           config.SearchConfig
	cacheValidate    bool
	fetchTimeout     time.Duration
	buildParallelism int
	indexReload      time.Duration
	logger           *slog.Logger
	closers          []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		dataDir:          config.DefaultDataDir(),
		endpoint:         config.NewEndpoint(),
		search:           config.NewSearchConfig(),
		cacheValidate:    config.DefaultCacheValidate,
		fetchTimeout:     config.DefaultFetchTimeout,
		buildParallelism: config.DefaultBuildParallelism,
		indexReload:      config.DefaultIndexReloadInterval,
	}
}

func (c *clientConfig) resolvedIndexDir() string {
	if c.indexDir != "" {
		return c.indexDir
	}
	return filepath.Join(c.dataDir, config.DefaultIndexSubdir)
}

func (c *clientConfig) resolvedCacheDir() string {
	if c.cacheDir != "" {
		return c.cacheDir
	}
	return filepath.Join(c.dataDir, config.DefaultCacheSubdir)
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig applies every setting of an application configuration,
// including its card database.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.dataDir = cfg.DataDir()
		c.indexDir = cfg.IndexDir()
		c.cacheDir = cfg.CacheDir()
		c.httpCacheDir = cfg.HTTPCacheDir()
		c.dbURL = cfg.DBURL()
		c.endpoint = cfg.Encoder()
		c.search = cfg.Search()
		c.cacheValidate = cfg.CacheValidate()
		c.fetchTimeout = cfg.FetchTimeout()
		c.buildParallelism = cfg.BuildParallelism()
		c.indexReload = cfg.IndexReloadInterval()
	}
}

// WithDataDir sets the directory holding the index, the embedding cache and
// the default SQLite database.
func WithDataDir(dir string) Option {
	return func(c *clientConfig) {
		c.dataDir = dir
	}
}

// WithIndexDir sets the catalog index directory.
// If not specified, defaults to {dataDir}/index.
func WithIndexDir(dir string) Option {
	return func(c *clientConfig) {
		c.indexDir = dir
	}
}

// WithCacheDir sets the embedding cache directory.
// If not specified, defaults to {dataDir}/embeddings.
func WithCacheDir(dir string) Option {
	return func(c *clientConfig) {
		c.cacheDir = dir
	}
}

// WithHTTPCacheDir caches downloaded images on disk so that catalog rebuilds
// do not fetch them again.
func WithHTTPCacheDir(dir string) Option {
	return func(c *clientConfig) {
		c.httpCacheDir = dir
	}
}

// WithSQLite stores card metadata in a SQLite file.
func WithSQLite(path string) Option {
	return func(c *clientConfig) {
		c.dbURL = database.SQLiteURL(path)
	}
}

// WithPostgres stores card metadata in PostgreSQL.
func WithPostgres(dsn string) Option {
	return func(c *clientConfig) {
		c.dbURL = dsn
	}
}

// WithEncoder replaces the CLIP HTTP encoder with a custom image encoder.
func WithEncoder(e embedding.Encoder) Option {
	return func(c *clientConfig) {
		c.encoder = e
	}
}

// WithEncoderEndpoint configures the CLIP inference service.
func WithEncoderEndpoint(e config.Endpoint) Option {
	return func(c *clientConfig) {
		c.endpoint = e
	}
}

// WithFetcher replaces the HTTP image fetcher.
func WithFetcher(f service.Fetcher) Option {
	return func(c *clientConfig) {
		c.fetcher = f
	}
}

// WithSearchConfig sets query scoring options.
func WithSearchConfig(s config.SearchConfig) Option {
	return func(c *clientConfig) {
		c.search = s
	}
}

// WithTopK sets the number of candidates returned per query.
// Values <= 0 are ignored.
func WithTopK(k int) Option {
	return func(c *clientConfig) {
		c.search = c.search.WithTopK(k)
	}
}

// WithCacheValidation controls whether cached embeddings are checked on
// read. Defaults to true.
func WithCacheValidation(enabled bool) Option {
	return func(c *clientConfig) {
		c.cacheValidate = enabled
	}
}

// WithFetchTimeout sets the per-request image download timeout.
// Values <= 0 are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithBuildParallelism sets how many catalog rows are embedded at once.
// Defaults to 1. Values <= 0 are ignored.
func WithBuildParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.buildParallelism = n
		}
	}
}

// WithIndexReloadInterval sets how often the index directory is polled for
// a rebuilt index. Zero disables polling.
func WithIndexReloadInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		if d >= 0 {
			c.indexReload = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(closer io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, closer)
	}
}
