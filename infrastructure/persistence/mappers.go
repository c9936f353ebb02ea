package persistence

import (
	"github.com/yksoni-monk/poke/domain/catalog"
)

// CardMapper maps between catalog.Card and CardModel.
type CardMapper struct{}

// ToDomain converts a CardModel to a catalog.Card. Rows missing an id or
// name are rejected.
func (CardMapper) ToDomain(e CardModel) (catalog.Card, error) {
	card := catalog.Card{
		ID:          e.ID,
		Name:        e.Name,
		Number:      e.Number,
		Artist:      e.Artist,
		HP:          e.HP,
		Rarity:      e.Rarity,
		Supertype:   e.Supertype,
		Subtypes:    e.Subtypes.Data,
		Types:       e.Types.Data,
		Abilities:   e.Abilities.Data,
		Attacks:     e.Attacks.Data,
		Weaknesses:  e.Weaknesses.Data,
		Resistances: e.Resistances.Data,
		Set: catalog.Set{
			ID:     e.SetID,
			Name:   e.SetName,
			Series: e.SetSeries,
		},
		Images: catalog.Images{
			Small: e.ImageSmall,
			Large: e.ImageLarge,
		},
		TCGPlayer:  e.TCGPlayer.Data,
		CardMarket: e.CardMarket.Data,
	}
	if err := card.Validate(); err != nil {
		return catalog.Card{}, err
	}
	return card, nil
}

// ToModel converts a catalog.Card to a CardModel.
func (CardMapper) ToModel(c catalog.Card) CardModel {
	return CardModel{
		ID:          c.ID,
		Name:        c.Name,
		Number:      c.Number,
		Artist:      c.Artist,
		HP:          c.HP,
		Rarity:      c.Rarity,
		Supertype:   c.Supertype,
		SetID:       c.Set.ID,
		SetName:     c.Set.Name,
		SetSeries:   c.Set.Series,
		ImageSmall:  c.Images.Small,
		ImageLarge:  c.Images.Large,
		Subtypes:    NewJSONColumn(c.Subtypes),
		Types:       NewJSONColumn(c.Types),
		Abilities:   NewJSONColumn(c.Abilities),
		Attacks:     NewJSONColumn(c.Attacks),
		Weaknesses:  NewJSONColumn(c.Weaknesses),
		Resistances: NewJSONColumn(c.Resistances),
		TCGPlayer:   NewJSONColumn(c.TCGPlayer),
		CardMarket:  NewJSONColumn(c.CardMarket),
	}
}
