package search

import (
	"log/slog"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/domain/match"
)

// DefaultTopK is the default number of results per query.
const DefaultTopK = 10

// Engine ranks catalog entries against query embeddings. It is immutable
// after construction and safe for concurrent use.
type Engine struct {
	index     catalog.Index
	dropped   int
	topK      int
	chunkSize int
	logger    *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithTopK sets the number of results returned by Search.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithChunkSize sets the number of rows scored per chunk.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an Engine over index. Entries with non-finite vectors
// are removed once here rather than on every query.
func NewEngine(index catalog.Index, opts ...EngineOption) *Engine {
	e := &Engine{
		topK:      DefaultTopK,
		chunkSize: DefaultChunkSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	filtered, dropped := index.WithoutNonFinite()
	if dropped > 0 {
		e.logger.Warn("dropped non-finite catalog entries",
			slog.Int("dropped", dropped),
			slog.Int("remaining", filtered.Len()),
		)
	}
	e.index = filtered
	e.dropped = dropped
	return e
}

// Len returns the number of searchable entries.
func (e *Engine) Len() int { return e.index.Len() }

// Dimension returns the catalog vector dimension.
func (e *Engine) Dimension() int { return e.index.Dimension() }

// Dropped returns the number of entries removed at load time.
func (e *Engine) Dropped() int { return e.dropped }

// TopK returns the configured result count.
func (e *Engine) TopK() int { return e.topK }

// Search returns the configured top-K matches for query.
func (e *Engine) Search(query embedding.Vector) ([]match.Result, error) {
	return e.SearchK(query, e.topK)
}

// SearchK returns up to k matches for query, ordered by descending score
// with ties in catalog order. The query must be finite and non-zero and
// have the catalog's dimension.
func (e *Engine) SearchK(query embedding.Vector, k int) ([]match.Result, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if dim := e.index.Dimension(); dim > 0 && query.Dimension() != dim {
		return nil, &match.DimensionMismatchError{Query: query.Dimension(), Catalog: dim}
	}
	if e.index.Empty() {
		return []match.Result{}, nil
	}

	q, err := embedding.Normalize(query)
	if err != nil {
		return nil, err
	}

	scores := Scores(q, e.index.Data(), e.chunkSize)
	positions := TopK(scores, k)

	results := make([]match.Result, len(positions))
	for i, p := range positions {
		results[i] = match.NewResult(e.index.ID(p), scores[p])
	}
	return results, nil
}
