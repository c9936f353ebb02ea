// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultHost                 = "0.0.0.0"
	DefaultPort                 = 8080
	DefaultLogLevel             = "INFO"
	DefaultDataSubdir           = ".poke"
	DefaultDBFile               = "poke.db"
	DefaultIndexSubdir          = "index"
	DefaultCacheSubdir          = "embeddings"
	DefaultSearchTopK           = 10
	DefaultSearchChunkSize      = 100
	DefaultCacheValidate        = true
	DefaultEncoderBaseURL       = "http://localhost:8000"
	DefaultEncoderTimeout       = 60 * time.Second
	DefaultEncoderInputSize     = 224
	DefaultEncoderMaxRetries    = 3
	DefaultEncoderInitialDelay  = time.Second
	DefaultEncoderBackoffFactor = 2.0
	DefaultFetchTimeout         = 10 * time.Second
	DefaultBuildParallelism     = 1
	DefaultIndexReloadInterval  = 30 * time.Second
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// SearchConfig configures query scoring.
type SearchConfig struct {
	topK      int
	chunkSize int
}

// NewSearchConfig creates a SearchConfig with defaults.
func NewSearchConfig() SearchConfig {
	return SearchConfig{
		topK:      DefaultSearchTopK,
		chunkSize: DefaultSearchChunkSize,
	}
}

// TopK returns the number of candidates returned per query.
func (s SearchConfig) TopK() int { return s.topK }

// ChunkSize returns the number of catalog rows scored per batch.
func (s SearchConfig) ChunkSize() int { return s.chunkSize }

// WithTopK returns a new config with the given candidate count.
func (s SearchConfig) WithTopK(k int) SearchConfig {
	if k > 0 {
		s.topK = k
	}
	return s
}

// WithChunkSize returns a new config with the given chunk size.
func (s SearchConfig) WithChunkSize(n int) SearchConfig {
	if n > 0 {
		s.chunkSize = n
	}
	return s
}

// Endpoint configures the image encoder service.
type Endpoint struct {
	baseURL       string
	timeout       time.Duration
	inputSize     int
	maxRetries    int
	initialDelay  time.Duration
	backoffFactor float64
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		baseURL:       DefaultEncoderBaseURL,
		timeout:       DefaultEncoderTimeout,
		inputSize:     DefaultEncoderInputSize,
		maxRetries:    DefaultEncoderMaxRetries,
		initialDelay:  DefaultEncoderInitialDelay,
		backoffFactor: DefaultEncoderBackoffFactor,
	}
}

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// InputSize returns the square input resolution of the encoder.
func (e Endpoint) InputSize() int { return e.inputSize }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = strings.TrimRight(url, "/") }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithInputSize sets the encoder input resolution.
func WithInputSize(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.inputSize = n
		}
	}
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) {
		if d > 0 {
			e.initialDelay = d
		}
	}
}

// WithBackoffFactor sets the backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) {
		if f >= 1 {
			e.backoffFactor = f
		}
	}
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	host             string
	port             int
	dataDir          string
	dbURL            string
	logLevel         string
	logFormat        LogFormat
	apiKeys          []string
	indexDir         string
	cacheDir         string
	httpCacheDir     string
	search           SearchConfig
	cacheValidate    bool
	encoder          Endpoint
	fetchTimeout     time.Duration
	buildParallelism int
	indexReload      time.Duration
}

// DefaultDataDir returns the default data directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataSubdir
	}
	return filepath.Join(home, DefaultDataSubdir)
}

// DefaultLogger returns the default slog logger for library consumers.
func DefaultLogger() *slog.Logger {
	return slog.Default()
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

func defaultDBURL(dataDir string) string {
	return "sqlite:///" + filepath.Join(dataDir, DefaultDBFile)
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	dataDir := DefaultDataDir()
	return AppConfig{
		host:             DefaultHost,
		port:             DefaultPort,
		dataDir:          dataDir,
		dbURL:            defaultDBURL(dataDir),
		logLevel:         DefaultLogLevel,
		logFormat:        LogFormatPretty,
		apiKeys:          []string{},
		search:           NewSearchConfig(),
		cacheValidate:    DefaultCacheValidate,
		encoder:          NewEndpoint(),
		fetchTimeout:     DefaultFetchTimeout,
		buildParallelism: DefaultBuildParallelism,
		indexReload:      DefaultIndexReloadInterval,
	}
}

// Host returns the server host to bind to.
func (c AppConfig) Host() string { return c.host }

// Port returns the server port to listen on.
func (c AppConfig) Port() int { return c.port }

// Addr returns the combined host:port address.
func (c AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log verbosity level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// APIKeys returns a copy of the configured API keys.
func (c AppConfig) APIKeys() []string {
	keys := make([]string, len(c.apiKeys))
	copy(keys, c.apiKeys)
	return keys
}

// IndexDir returns the catalog index directory, defaulting under the data
// directory.
func (c AppConfig) IndexDir() string {
	if c.indexDir != "" {
		return c.indexDir
	}
	return filepath.Join(c.dataDir, DefaultIndexSubdir)
}

// CacheDir returns the embedding cache directory, defaulting under the data
// directory.
func (c AppConfig) CacheDir() string {
	if c.cacheDir != "" {
		return c.cacheDir
	}
	return filepath.Join(c.dataDir, DefaultCacheSubdir)
}

// HTTPCacheDir returns the image download cache directory. Empty disables
// the download cache.
func (c AppConfig) HTTPCacheDir() string { return c.httpCacheDir }

// Search returns the search configuration.
func (c AppConfig) Search() SearchConfig { return c.search }

// CacheValidate reports whether cached embeddings are checked on read.
func (c AppConfig) CacheValidate() bool { return c.cacheValidate }

// Encoder returns the encoder endpoint configuration.
func (c AppConfig) Encoder() Endpoint { return c.encoder }

// FetchTimeout returns the per-request image download timeout.
func (c AppConfig) FetchTimeout() time.Duration { return c.fetchTimeout }

// BuildParallelism returns how many catalog rows are embedded at once.
func (c AppConfig) BuildParallelism() int { return c.buildParallelism }

// IndexReloadInterval returns how often a running server checks the index
// for a rebuild. Zero disables the check.
func (c AppConfig) IndexReloadInterval() time.Duration { return c.indexReload }

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithHost sets the server host.
func WithHost(host string) AppConfigOption {
	return func(c *AppConfig) { c.host = host }
}

// WithPort sets the server port.
func WithPort(port int) AppConfigOption {
	return func(c *AppConfig) { c.port = port }
}

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		// Keep the default database alongside the data directory.
		if c.dbURL == "" || c.dbURL == defaultDBURL(c.dataDir) {
			c.dbURL = defaultDBURL(dir)
		}
		c.dataDir = dir
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithAPIKeys sets the API keys.
func WithAPIKeys(keys []string) AppConfigOption {
	return func(c *AppConfig) {
		c.apiKeys = make([]string, len(keys))
		copy(c.apiKeys, keys)
	}
}

// WithIndexDir sets the catalog index directory.
func WithIndexDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.indexDir = dir }
}

// WithCacheDir sets the embedding cache directory.
func WithCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.cacheDir = dir }
}

// WithHTTPCacheDir sets the image download cache directory.
func WithHTTPCacheDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.httpCacheDir = dir }
}

// WithSearchConfig sets the search configuration.
func WithSearchConfig(s SearchConfig) AppConfigOption {
	return func(c *AppConfig) { c.search = s }
}

// WithCacheValidate sets whether cached embeddings are checked on read.
func WithCacheValidate(validate bool) AppConfigOption {
	return func(c *AppConfig) { c.cacheValidate = validate }
}

// WithEncoder sets the encoder endpoint.
func WithEncoder(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.encoder = e }
}

// WithFetchTimeout sets the image download timeout.
func WithFetchTimeout(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithBuildParallelism sets how many catalog rows are embedded at once.
func WithBuildParallelism(n int) AppConfigOption {
	return func(c *AppConfig) {
		if n > 0 {
			c.buildParallelism = n
		}
	}
}

// WithIndexReloadInterval sets how often the index is checked for a
// rebuild. Zero disables the check; negative values are ignored.
func WithIndexReloadInterval(d time.Duration) AppConfigOption {
	return func(c *AppConfig) {
		if d >= 0 {
			c.indexReload = d
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Sensitive values like API keys are masked or shown as counts.
func (c AppConfig) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("index_dir", c.IndexDir()),
		slog.String("cache_dir", c.CacheDir()),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("encoder_base_url", c.encoder.BaseURL()),
		slog.Int("encoder_input_size", c.encoder.InputSize()),
		slog.Int("search_top_k", c.search.TopK()),
		slog.Bool("cache_validate", c.cacheValidate),
		slog.Int("build_parallelism", c.buildParallelism),
		slog.Duration("index_reload_interval", c.indexReload),
		slog.Int("api_keys_count", len(c.apiKeys)),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

// ParseAPIKeys parses a comma-separated string of API keys.
func ParseAPIKeys(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}
