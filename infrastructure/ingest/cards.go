package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/yksoni-monk/poke/domain/catalog"
)

// cardsEnvelope is the paged response shape of the public card API.
type cardsEnvelope struct {
	Data []catalog.Card `json:"data"`
}

// ReadCardsFile reads card metadata from the JSON file at path.
func ReadCardsFile(path string) ([]catalog.Card, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cards file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadCards(f)
}

// ReadCards decodes card metadata. It accepts either a JSON array of cards
// or an API page object with a "data" array. Every card must have an id
// and a name.
func ReadCards(r io.Reader) ([]catalog.Card, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read cards: %w", err)
	}

	var cards []catalog.Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		var envelope cardsEnvelope
		if envErr := json.Unmarshal(raw, &envelope); envErr != nil || envelope.Data == nil {
			return nil, fmt.Errorf("%w: decode cards: %w", catalog.ErrInvalidCard, err)
		}
		cards = envelope.Data
	}

	for i, c := range cards {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("card %d: %w", i, err)
		}
	}
	return cards, nil
}
