// Package service provides the application services behind the client, the
// HTTP API and the CLI.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/domain/match"
	"github.com/yksoni-monk/poke/infrastructure/search"
)

// MatcherOption configures a Matcher.
type MatcherOption func(*Matcher)

// WithTopK sets the number of candidates returned per query.
func WithTopK(k int) MatcherOption {
	return func(m *Matcher) {
		if k > 0 {
			m.topK = k
		}
	}
}

// WithChunkSize sets the number of catalog rows scored per batch.
func WithChunkSize(n int) MatcherOption {
	return func(m *Matcher) {
		if n > 0 {
			m.chunkSize = n
		}
	}
}

// WithFetcher sets the fetcher used for URL sources.
func WithFetcher(f Fetcher) MatcherOption {
	return func(m *Matcher) { m.reader = NewSourceReader(f) }
}

// WithMatcherLogger sets the logger.
func WithMatcherLogger(l *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// Matcher answers find-similar queries against the catalog index. The index
// is loaded on first use and shared read-only by concurrent queries.
type Matcher struct {
	embedder  embedding.Embedder
	indexes   catalog.IndexStore
	reader    SourceReader
	topK      int
	chunkSize int
	logger    *slog.Logger

	mu     sync.Mutex
	engine *search.Engine
}

// NewMatcher creates a Matcher.
func NewMatcher(embedder embedding.Embedder, indexes catalog.IndexStore, opts ...MatcherOption) *Matcher {
	m := &Matcher{
		embedder:  embedder,
		indexes:   indexes,
		topK:      search.DefaultTopK,
		chunkSize: search.DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the search engine, loading the index if needed. Load
// failures are returned and retried on the next call.
func (m *Matcher) Engine() (*search.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.engine != nil {
		return m.engine, nil
	}

	start := time.Now()
	index, err := m.indexes.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog index: %w", err)
	}
	m.engine = search.NewEngine(index,
		search.WithTopK(m.topK),
		search.WithChunkSize(m.chunkSize),
		search.WithLogger(m.logger),
	)
	m.logger.Info("catalog index loaded",
		slog.Int("entries", m.engine.Len()),
		slog.Int("dimension", m.engine.Dimension()),
		slog.Int("dropped", m.engine.Dropped()),
		slog.Duration("duration", time.Since(start)),
	)
	return m.engine, nil
}

// Reset drops the loaded index so the next query reloads it.
func (m *Matcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engine = nil
}

// Embed returns the normalized embedding for src.
func (m *Matcher) Embed(ctx context.Context, src Source) (embedding.Vector, error) {
	data, err := m.reader.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	return m.embedder.GetOrCompute(ctx, data)
}

// Identify returns up to the configured number of (identifier, score)
// candidates for src, best first.
func (m *Matcher) Identify(ctx context.Context, src Source) ([]match.Result, error) {
	return m.IdentifyK(ctx, src, m.topK)
}

// IdentifyK is Identify with an explicit candidate count.
func (m *Matcher) IdentifyK(ctx context.Context, src Source, k int) ([]match.Result, error) {
	engine, err := m.Engine()
	if err != nil {
		return nil, err
	}
	query, err := m.Embed(ctx, src)
	if err != nil {
		return nil, err
	}
	results, err := engine.SearchK(query, k)
	if err != nil {
		return nil, err
	}
	m.logger.Debug("identified image",
		slog.String("source", src.String()),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// FindSimilar returns the ranked identifiers for src.
func (m *Matcher) FindSimilar(ctx context.Context, src Source) ([]string, error) {
	results, err := m.Identify(ctx, src)
	if err != nil {
		return nil, err
	}
	return match.IDs(results), nil
}
