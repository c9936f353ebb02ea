package jsonapi

import (
	"github.com/yksoni-monk/poke/application/service"
	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/domain/match"
)

// Resource types.
const (
	TypeCard      = "cards"
	TypeCandidate = "candidates"
)

// CardAttributes is a card's metadata plus its reference price.
type CardAttributes struct {
	catalog.Card
	Price *catalog.Price `json:"price,omitempty"`
}

// CandidateAttributes is one ranked match.
type CandidateAttributes struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// ScanMeta describes how a scan was resolved.
type ScanMeta struct {
	Score      float64 `json:"score"`
	Candidates int     `json:"candidates"`
}

// Serializer converts domain objects to JSON:API resources.
type Serializer struct{}

// NewSerializer creates a new Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// CardResource converts a card to a resource.
func (s *Serializer) CardResource(card catalog.Card) *Resource {
	attrs := CardAttributes{Card: card}
	if price, ok := card.Price(); ok {
		attrs.Price = &price
	}
	return NewResource(TypeCard, card.ID, attrs)
}

// CardResources converts cards to resources.
func (s *Serializer) CardResources(cards []catalog.Card) []*Resource {
	resources := make([]*Resource, len(cards))
	for i, c := range cards {
		resources[i] = s.CardResource(c)
	}
	return resources
}

// CandidateResources converts ranked results to resources. Rank is 1-based.
// Each candidate links to its card resource.
func (s *Serializer) CandidateResources(results []match.Result) []*Resource {
	resources := make([]*Resource, len(results))
	for i, r := range results {
		res := NewResource(TypeCandidate, r.ID(), CandidateAttributes{Rank: i + 1, Score: r.Score()})
		res.Relationships = Relationships{
			"card": {Data: ResourceIdentifier{Type: TypeCard, ID: r.ID()}},
		}
		resources[i] = res
	}
	return resources
}

// ScanDocument renders a scan: the matched card as primary data and the
// ranked candidates as included resources.
func (s *Serializer) ScanDocument(result service.ScanResult) *Document {
	doc := NewSingleResponse(s.CardResource(result.Card))
	doc.Meta = &Meta{"scan": ScanMeta{Score: result.Score, Candidates: len(result.Candidates)}}
	for _, c := range s.CandidateResources(result.Candidates) {
		doc.Included = append(doc.Included, c)
	}
	return doc
}
