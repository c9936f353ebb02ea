package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/yksoni-monk/poke/domain/catalog"
)

// ErrInvalidColumn indicates a stored column could not be decoded.
var ErrInvalidColumn = errors.New("invalid column value")

// JSONColumn stores a value as JSON text.
type JSONColumn[T any] struct {
	Data T
}

// NewJSONColumn wraps v.
func NewJSONColumn[T any](v T) JSONColumn[T] {
	return JSONColumn[T]{Data: v}
}

// Scan implements sql.Scanner.
func (c *JSONColumn[T]) Scan(value any) error {
	var zero T
	if value == nil {
		c.Data = zero
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidColumn, value)
	}
	if len(data) == 0 {
		c.Data = zero
		return nil
	}
	if err := json.Unmarshal(data, &c.Data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidColumn, err)
	}
	return nil
}

// Value implements driver.Valuer.
func (c JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// CardModel represents a catalog card row.
type CardModel struct {
	ID          string                             `gorm:"column:id;primaryKey"`
	Name        string                             `gorm:"column:name;not null;index"`
	Number      string                             `gorm:"column:number"`
	Artist      string                             `gorm:"column:artist"`
	HP          string                             `gorm:"column:hp"`
	Rarity      string                             `gorm:"column:rarity"`
	Supertype   string                             `gorm:"column:supertype"`
	SetID       string                             `gorm:"column:set_id;index"`
	SetName     string                             `gorm:"column:set_name"`
	SetSeries   string                             `gorm:"column:set_series"`
	ImageSmall  string                             `gorm:"column:image_small"`
	ImageLarge  string                             `gorm:"column:image_large"`
	Subtypes    JSONColumn[[]string]               `gorm:"column:subtypes;type:text"`
	Types       JSONColumn[[]string]               `gorm:"column:types;type:text"`
	Abilities   JSONColumn[[]catalog.Ability]      `gorm:"column:abilities;type:text"`
	Attacks     JSONColumn[[]catalog.Attack]       `gorm:"column:attacks;type:text"`
	Weaknesses  JSONColumn[[]catalog.TypeModifier] `gorm:"column:weaknesses;type:text"`
	Resistances JSONColumn[[]catalog.TypeModifier] `gorm:"column:resistances;type:text"`
	TCGPlayer   JSONColumn[*catalog.TCGPlayer]     `gorm:"column:tcgplayer;type:text"`
	CardMarket  JSONColumn[*catalog.CardMarket]    `gorm:"column:cardmarket;type:text"`
	CreatedAt   time.Time                          `gorm:"column:created_at"`
	UpdatedAt   time.Time                          `gorm:"column:updated_at"`
}

// TableName returns the table name.
func (CardModel) TableName() string { return "pokemon_cards" }
