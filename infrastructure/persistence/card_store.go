package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/internal/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const saveBatchSize = 200

// CardStore persists catalog card metadata using GORM.
type CardStore struct {
	database.Repository[catalog.Card, CardModel]
}

// NewCardStore creates a new CardStore.
func NewCardStore(db database.Database) CardStore {
	return CardStore{
		Repository: database.NewRepository[catalog.Card, CardModel](db, CardMapper{}, "card"),
	}
}

// Get returns the card with the given id.
func (s CardStore) Get(ctx context.Context, id string) (catalog.Card, error) {
	card, err := s.Repository.Get(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return catalog.Card{}, fmt.Errorf("%w: %s", catalog.ErrCardNotFound, id)
	}
	return card, err
}

// GetMany returns the cards with the given ids, keyed by id. Unknown ids are
// absent from the map.
func (s CardStore) GetMany(ctx context.Context, ids []string) (map[string]catalog.Card, error) {
	found := make(map[string]catalog.Card, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	cards, err := s.Find(ctx, database.WhereIn("id", ids))
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		found[c.ID] = c
	}
	return found, nil
}

// SaveAll validates and upserts cards by id in one transaction. When the
// input repeats an id the last occurrence wins.
func (s CardStore) SaveAll(ctx context.Context, cards []catalog.Card) error {
	if len(cards) == 0 {
		return nil
	}

	position := make(map[string]int, len(cards))
	models := make([]CardModel, 0, len(cards))
	now := time.Now()
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return err
		}
		model := s.Mapper().ToModel(c)
		model.CreatedAt = now
		model.UpdatedAt = now
		if i, ok := position[c.ID]; ok {
			models[i] = model
			continue
		}
		position[c.ID] = len(models)
		models = append(models, model)
	}

	return s.Database().Transaction(ctx, func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "number", "artist", "hp", "rarity", "supertype",
				"set_id", "set_name", "set_series", "image_small", "image_large",
				"subtypes", "types", "abilities", "attacks", "weaknesses", "resistances",
				"tcgplayer", "cardmarket", "updated_at",
			}),
		}).CreateInBatches(&models, saveBatchSize).Error
		if err != nil {
			return fmt.Errorf("save cards: %w", err)
		}
		return nil
	})
}
