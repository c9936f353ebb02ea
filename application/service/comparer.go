package service

import (
	"context"

	"github.com/yksoni-monk/poke/domain/embedding"
	"github.com/yksoni-monk/poke/domain/match"
	"github.com/yksoni-monk/poke/infrastructure/search"
)

// Comparer scores the visual similarity of two images.
type Comparer struct {
	embedder embedding.Embedder
	reader   SourceReader
}

// NewComparer creates a Comparer. fetcher may be nil when only local
// sources are compared.
func NewComparer(embedder embedding.Embedder, fetcher Fetcher) *Comparer {
	return &Comparer{embedder: embedder, reader: NewSourceReader(fetcher)}
}

// Compare returns the cosine similarity of a and b, clipped to [-1, 1].
func (c *Comparer) Compare(ctx context.Context, a, b Source) (float64, error) {
	va, err := c.embed(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := c.embed(ctx, b)
	if err != nil {
		return 0, err
	}
	if va.Dimension() != vb.Dimension() {
		return 0, &match.DimensionMismatchError{Query: vb.Dimension(), Catalog: va.Dimension()}
	}
	return search.CosineSimilarity(va, vb), nil
}

func (c *Comparer) embed(ctx context.Context, src Source) (embedding.Vector, error) {
	data, err := c.reader.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	return c.embedder.GetOrCompute(ctx, data)
}
