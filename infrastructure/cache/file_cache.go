// Package cache stores embeddings on disk keyed by image content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/infrastructure/imageproc"
)

const fileExt = ".vec"

// FileCache is a content-addressed embedding cache. Each entry is one file
// named by the SHA-256 of the image's canonical encoding. Entries are never
// pruned. Concurrent lookups of the same key share one computation.
type FileCache struct {
	dir          string
	encoder      embedding.Encoder
	preprocessor *imageproc.Preprocessor
	validate     bool
	group        singleflight.Group
	logger       *slog.Logger
}

// Option configures a FileCache.
type Option func(*FileCache)

// WithValidation controls whether stored vectors are checked on read.
// When enabled, non-finite or zero-norm entries are deleted and recomputed.
func WithValidation(enabled bool) Option {
	return func(c *FileCache) {
		c.validate = enabled
	}
}

// WithPreprocessor sets the preprocessor run before encoding.
func WithPreprocessor(p *imageproc.Preprocessor) Option {
	return func(c *FileCache) {
		if p != nil {
			c.preprocessor = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *FileCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewFileCache creates a FileCache rooted at dir, creating it if needed.
func NewFileCache(dir string, encoder embedding.Encoder, opts ...Option) (*FileCache, error) {
	if encoder == nil {
		return nil, errors.New("NewFileCache: nil encoder")
	}
	if dir == "" {
		return nil, errors.New("NewFileCache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	c := &FileCache{
		dir:          dir,
		encoder:      encoder,
		preprocessor: imageproc.NewPreprocessor(),
		validate:     true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the cache key for canonical image bytes.
func Key(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// GetOrCompute validates and decodes data, then returns its embedding from
// the cache or the encoder.
func (c *FileCache) GetOrCompute(ctx context.Context, data []byte) (embedding.Vector, error) {
	img, err := imageproc.Load(data)
	if err != nil {
		return nil, err
	}
	return c.Embed(ctx, img)
}

// Embed returns the embedding of a decoded image, computing and storing it
// on a miss.
func (c *FileCache) Embed(ctx context.Context, img image.Image) (embedding.Vector, error) {
	canonical, err := imageproc.Canonical(img)
	if err != nil {
		return nil, err
	}
	key := Key(canonical)

	// The shared computation outlives any single caller's cancellation;
	// each caller stops waiting when its own context ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if vec, ok := c.read(key); ok {
			c.logger.Debug("embedding cache hit", slog.String("key", key))
			return vec, nil
		}

		vec, err := c.Compute(shared, img)
		if err != nil {
			return nil, err
		}
		if err := c.write(key, vec); err != nil {
			c.logger.Warn("failed to store embedding", slog.String("key", key), slog.String("error", err.Error()))
		}
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(embedding.Vector).Clone(), nil
	}
}

// Compute preprocesses and encodes img without touching the cache. The
// result is normalized; invalid encoder output fails with
// embedding.ErrInvalidEmbedding.
func (c *FileCache) Compute(ctx context.Context, img image.Image) (embedding.Vector, error) {
	start := time.Now()
	raw, err := c.encoder.Encode(ctx, c.preprocessor.Process(img))
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	vec, err := embedding.Normalize(raw)
	if err != nil {
		c.logger.Warn("encoder returned invalid embedding", slog.String("error", err.Error()))
		return nil, err
	}

	c.logger.Debug("computed embedding",
		slog.Int("dimension", vec.Dimension()),
		slog.Duration("duration", time.Since(start)),
	)
	return vec, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.dir, key[:2], key+fileExt)
}

func (c *FileCache) read(key string) (embedding.Vector, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("failed to read embedding cache entry", slog.String("key", key), slog.String("error", err.Error()))
		}
		return nil, false
	}

	vec, err := DecodeVector(data)
	if err == nil && c.validate {
		err = vec.Validate()
	}
	if err != nil {
		c.logger.Warn("discarding stale embedding cache entry", slog.String("key", key), slog.String("error", err.Error()))
		if rmErr := os.Remove(c.path(key)); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			c.logger.Warn("failed to delete embedding cache entry", slog.String("key", key), slog.String("error", rmErr.Error()))
		}
		return nil, false
	}
	return vec, true
}

func (c *FileCache) write(key string, vec embedding.Vector) error {
	final := c.path(key)
	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(EncodeVector(vec)); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return fmt.Errorf("rename cache entry: %w", err)
	}
	return nil
}
