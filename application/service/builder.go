package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/infrastructure/search"
)

// BuildReport summarizes one index build.
type BuildReport struct {
	Rows       int  `json:"rows"`
	Embedded   int  `json:"embedded"`
	Failed     int  `json:"failed"`
	Duplicates int  `json:"duplicates"`
	ZeroNorm   int  `json:"zero_norm"`
	Entries    int  `json:"entries"`
	Existing   bool `json:"existing"`
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithParallelism sets how many rows are fetched and embedded at once.
func WithParallelism(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// WithBuildChunkSize sets the number of rows normalized per batch.
func WithBuildChunkSize(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.chunkSize = n
		}
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// Builder creates the catalog index from a source list.
type Builder struct {
	fetcher     Fetcher
	embedder    embedding.Embedder
	store       catalog.IndexStore
	parallelism int
	chunkSize   int
	logger      *slog.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(fetcher Fetcher, embedder embedding.Embedder, store catalog.IndexStore, opts ...BuilderOption) *Builder {
	b := &Builder{
		fetcher:     fetcher,
		embedder:    embedder,
		store:       store,
		parallelism: 1,
		chunkSize:   search.DefaultChunkSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build embeds every row and persists the index. An existing index is left
// untouched. Rows whose image cannot be fetched, decoded or embedded are
// skipped. When an identifier repeats, the last row in build order wins.
// Only context cancellation aborts a build.
func (b *Builder) Build(ctx context.Context, rows []catalog.SourceRow) (BuildReport, error) {
	report := BuildReport{Rows: len(rows)}
	if b.store.Exists() {
		b.logger.Info("catalog index already exists, skipping build")
		report.Existing = true
		return report, nil
	}

	start := time.Now()
	vectors, failed, err := b.embedAll(ctx, rows)
	if err != nil {
		return report, err
	}
	report.Failed = failed
	report.Embedded = len(rows) - failed

	entries, duplicates := lastWins(rows, vectors)
	report.Duplicates = duplicates

	entries, zero := b.renormalize(entries)
	report.ZeroNorm = zero
	if zero > 0 {
		b.logger.Warn("dropped zero-norm catalog rows", slog.Int("count", zero))
	}
	if len(entries) == 0 {
		return report, catalog.ErrNoValidEntries
	}

	index, err := catalog.NewIndexFromEntries(entries)
	if err != nil {
		return report, err
	}
	if err := b.store.Save(index); err != nil {
		return report, fmt.Errorf("save catalog index: %w", err)
	}
	report.Entries = index.Len()

	b.logger.Info("catalog index built",
		slog.Int("rows", report.Rows),
		slog.Int("entries", report.Entries),
		slog.Int("failed", report.Failed),
		slog.Int("duplicates", report.Duplicates),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}

// embedAll returns one slot per row; failed rows are nil.
func (b *Builder) embedAll(ctx context.Context, rows []catalog.SourceRow) ([]embedding.Vector, int, error) {
	vectors := make([]embedding.Vector, len(rows))
	var failed, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i, row := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vec, err := b.embedRow(gctx, row)
			if n := done.Add(1); n%100 == 0 {
				b.logger.Info("building catalog index", slog.Int64("done", n), slog.Int("total", len(rows)))
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				b.logger.Warn("skipping catalog row",
					slog.String("card_id", row.ID()),
					slog.Int("row", row.Position()),
					slog.String("url", row.ImageURL()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("build catalog index: %w", err)
	}
	return vectors, int(failed.Load()), nil
}

func (b *Builder) embedRow(ctx context.Context, row catalog.SourceRow) (embedding.Vector, error) {
	data, err := b.fetcher.Fetch(ctx, row.ImageURL())
	if err != nil {
		return nil, err
	}
	return b.embedder.GetOrCompute(ctx, data)
}

// lastWins keeps the last embedded row for each identifier, in build order.
func lastWins(rows []catalog.SourceRow, vectors []embedding.Vector) ([]catalog.Entry, int) {
	seen := make(map[string]struct{}, len(rows))
	var entries []catalog.Entry
	duplicates := 0
	for i := len(rows) - 1; i >= 0; i-- {
		if vectors[i] == nil {
			continue
		}
		id := rows[i].ID()
		if _, ok := seen[id]; ok {
			duplicates++
			continue
		}
		seen[id] = struct{}{}
		entries = append(entries, catalog.NewEntry(id, rows[i].Position(), vectors[i]))
	}
	slices.Reverse(entries)
	return entries, duplicates
}

// renormalize recomputes every norm, drops zero-norm or non-finite rows and
// rescales the rest to unit length, chunkSize rows at a time.
func (b *Builder) renormalize(entries []catalog.Entry) ([]catalog.Entry, int) {
	kept := make([]catalog.Entry, 0, len(entries))
	for lo := 0; lo < len(entries); lo += b.chunkSize {
		hi := min(lo+b.chunkSize, len(entries))
		for _, e := range entries[lo:hi] {
			v := e.Vector()
			norm := embedding.Norm(v)
			if !embedding.Finite(v) || norm < embedding.NormEpsilon || math.IsInf(norm, 0) {
				continue
			}
			out := make(embedding.Vector, len(v))
			embedding.Scale(out, v, norm)
			kept = append(kept, catalog.NewEntry(e.ID(), e.Row(), out))
		}
	}
	return kept, len(entries) - len(kept)
}
