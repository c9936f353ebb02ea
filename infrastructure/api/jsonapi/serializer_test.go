package jsonapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/match"
)

func charizard() catalog.Card {
	market := 321.0
	return catalog.Card{
		ID:     "base1-4",
		Name:   "Charizard",
		Number: "4",
		Set:    catalog.Set{ID: "base1", Name: "Base"},
		TCGPlayer: &catalog.TCGPlayer{
			Prices: map[string]catalog.PriceBand{"holofoil": {Market: &market}},
		},
	}
}

func TestSerializer_CardResource(t *testing.T) {
	res := NewSerializer().CardResource(charizard())

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var got struct {
		Type       string         `json:"type"`
		ID         string         `json:"id"`
		Attributes map[string]any `json:"attributes"`
	}
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, TypeCard, got.Type)
	assert.Equal(t, "base1-4", got.ID)
	assert.Equal(t, "Charizard", got.Attributes["name"])
	assert.Equal(t, "4", got.Attributes["number"])
	price, ok := got.Attributes["price"].(map[string]any)
	require.True(t, ok, "price attribute present")
	assert.InDelta(t, 321.0, price["amount"], 1e-9)
	assert.Equal(t, catalog.CurrencyUSD, price["currency"])
}

func TestSerializer_CardResource_NoPrice(t *testing.T) {
	res := NewSerializer().CardResource(catalog.Card{ID: "xy1-1", Name: "Venusaur-EX"})

	raw, err := json.Marshal(res.Attributes)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"price"`)
}

func TestSerializer_CandidateResources(t *testing.T) {
	results := []match.Result{match.NewResult("base1-4", 0.93), match.NewResult("base1-44", 0.41)}

	resources := NewSerializer().CandidateResources(results)

	require.Len(t, resources, 2)
	assert.Equal(t, TypeCandidate, resources[0].Type)
	assert.Equal(t, "base1-4", resources[0].ID)
	assert.Equal(t, CandidateAttributes{Rank: 1, Score: 0.93}, resources[0].Attributes)
	assert.Equal(t, CandidateAttributes{Rank: 2, Score: 0.41}, resources[1].Attributes)
	assert.Equal(t, ResourceIdentifier{Type: TypeCard, ID: "base1-44"}, resources[1].Relationships["card"].Data)
}

func TestSerializer_ScanDocument(t *testing.T) {
	result := service.ScanResult{
		Card:       charizard(),
		Score:      0.93,
		Candidates: []match.Result{match.NewResult("base1-4", 0.93), match.NewResult("base1-44", 0.41)},
	}

	doc := NewSerializer().ScanDocument(result)

	res, ok := doc.Data.(*Resource)
	require.True(t, ok)
	assert.Equal(t, "base1-4", res.ID)
	assert.Len(t, doc.Included, 2)
	require.NotNil(t, doc.Meta)
	assert.Equal(t, ScanMeta{Score: 0.93, Candidates: 2}, (*doc.Meta)["scan"])
}
