package catalog

import "context"

// IndexStore persists a Catalog Index as its two parallel artifacts.
type IndexStore interface {
	Exists() bool
	Save(index Index) error
	Load() (Index, error)
}

// CardStore provides keyed lookup of card metadata.
type CardStore interface {
	Get(ctx context.Context, id string) (Card, error)
	GetMany(ctx context.Context, ids []string) (map[string]Card, error)
	SaveAll(ctx context.Context, cards []Card) error
}
