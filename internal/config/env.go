package config

import (
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., ENCODER_BASE_URL).
type EnvConfig struct {
	// Host is the server host to bind to.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the server port to listen on.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// DataDir is the data directory path.
	// Env: DATA_DIR
	// Default: ~/.poke
	DataDir string `envconfig:"DATA_DIR"`

	// DBURL is the card metadata database URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/poke.db
	DBURL string `envconfig:"DB_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// APIKeys is a comma-separated list of valid API keys.
	// Env: API_KEYS
	APIKeys string `envconfig:"API_KEYS"`

	// IndexDir holds the catalog index artifacts.
	// Env: INDEX_DIR
	// Default: {data_dir}/index
	IndexDir string `envconfig:"INDEX_DIR"`

	// CacheDir holds cached embeddings.
	// Env: CACHE_DIR
	// Default: {data_dir}/embeddings
	CacheDir string `envconfig:"CACHE_DIR"`

	// HTTPCacheDir is the directory for caching image downloads to disk.
	// Env: HTTP_CACHE_DIR
	HTTPCacheDir string `envconfig:"HTTP_CACHE_DIR"`

	// Search configures query scoring.
	Search SearchEnv `envconfig:"SEARCH"`

	// CacheValidate checks cached embeddings on read and evicts bad ones.
	// Env: CACHE_VALIDATE (default: true)
	CacheValidate bool `envconfig:"CACHE_VALIDATE" default:"true"`

	// Encoder configures the image encoder service.
	Encoder EndpointEnv `envconfig:"ENCODER"`

	// FetchTimeout is the image download timeout in seconds.
	// Env: FETCH_TIMEOUT (default: 10)
	FetchTimeout float64 `envconfig:"FETCH_TIMEOUT" default:"10"`

	// BuildParallelism is how many catalog rows are embedded at once.
	// Env: BUILD_PARALLELISM (default: 1)
	BuildParallelism int `envconfig:"BUILD_PARALLELISM" default:"1"`

	// IndexReloadInterval is how often, in seconds, a running server checks
	// the index for a rebuild. 0 disables the check.
	// Env: INDEX_RELOAD_INTERVAL (default: 30)
	IndexReloadInterval float64 `envconfig:"INDEX_RELOAD_INTERVAL" default:"30"`
}

// SearchEnv holds environment configuration for search.
type SearchEnv struct {
	// TopK is the number of candidates returned per query.
	// Env: SEARCH_TOP_K (default: 10)
	TopK int `envconfig:"TOP_K" default:"10"`

	// ChunkSize is the number of catalog rows scored per batch.
	// Env: SEARCH_CHUNK_SIZE (default: 100)
	ChunkSize int `envconfig:"CHUNK_SIZE" default:"100"`
}

// EndpointEnv holds environment configuration for the encoder endpoint.
type EndpointEnv struct {
	// BaseURL is the base URL for the endpoint.
	// Env: ENCODER_BASE_URL (default: http://localhost:8000)
	BaseURL string `envconfig:"BASE_URL" default:"http://localhost:8000"`

	// Timeout is the request timeout in seconds.
	// Env: ENCODER_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// InputSize is the square input resolution of the encoder.
	// Env: ENCODER_INPUT_SIZE (default: 224)
	InputSize int `envconfig:"INPUT_SIZE" default:"224"`

	// MaxRetries is the maximum number of retries.
	// Env: ENCODER_MAX_RETRIES (default: 3)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"3"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: ENCODER_INITIAL_DELAY (default: 1.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"1.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: ENCODER_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	return LoadFromEnvWithPrefix("")
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "POKE" would require POKE_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Normalize trims whitespace from string values and upper-cases the log
// level.
func (e EnvConfig) Normalize() EnvConfig {
	e.Host = strings.TrimSpace(e.Host)
	e.DataDir = strings.TrimSpace(e.DataDir)
	e.DBURL = strings.TrimSpace(e.DBURL)
	e.LogLevel = strings.ToUpper(strings.TrimSpace(e.LogLevel))
	e.LogFormat = strings.TrimSpace(e.LogFormat)
	e.IndexDir = strings.TrimSpace(e.IndexDir)
	e.CacheDir = strings.TrimSpace(e.CacheDir)
	e.HTTPCacheDir = strings.TrimSpace(e.HTTPCacheDir)
	e.Encoder.BaseURL = strings.TrimSpace(e.Encoder.BaseURL)
	return e
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.Host != "" {
		cfg = applyOption(cfg, WithHost(e.Host))
	}
	if e.Port != 0 {
		cfg = applyOption(cfg, WithPort(e.Port))
	}
	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.APIKeys != "" {
		cfg = applyOption(cfg, WithAPIKeys(ParseAPIKeys(e.APIKeys)))
	}
	if e.IndexDir != "" {
		cfg = applyOption(cfg, WithIndexDir(e.IndexDir))
	}
	if e.CacheDir != "" {
		cfg = applyOption(cfg, WithCacheDir(e.CacheDir))
	}
	if e.HTTPCacheDir != "" {
		cfg = applyOption(cfg, WithHTTPCacheDir(e.HTTPCacheDir))
	}

	cfg = applyOption(cfg, WithSearchConfig(e.Search.ToSearchConfig()))
	cfg = applyOption(cfg, WithCacheValidate(e.CacheValidate))
	cfg = applyOption(cfg, WithEncoder(e.Encoder.ToEndpoint()))
	cfg = applyOption(cfg, WithFetchTimeout(seconds(e.FetchTimeout)))
	cfg = applyOption(cfg, WithBuildParallelism(e.BuildParallelism))
	cfg = applyOption(cfg, WithIndexReloadInterval(seconds(e.IndexReloadInterval)))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// ToSearchConfig converts SearchEnv to SearchConfig.
func (s SearchEnv) ToSearchConfig() SearchConfig {
	return NewSearchConfig().
		WithTopK(s.TopK).
		WithChunkSize(s.ChunkSize)
}

// ToEndpoint converts EndpointEnv to Endpoint.
func (e EndpointEnv) ToEndpoint() Endpoint {
	opts := []EndpointOption{
		WithTimeout(seconds(e.Timeout)),
		WithInputSize(e.InputSize),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(seconds(e.InitialDelay)),
		WithBackoffFactor(e.BackoffFactor),
	}
	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	return NewEndpointWithOptions(opts...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}
