package catalog

import "fmt"

// Card is the metadata record for one catalog card, in the shape served by
// the public card API.
type Card struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Number      string         `json:"number,omitempty"`
	Artist      string         `json:"artist,omitempty"`
	HP          string         `json:"hp,omitempty"`
	Rarity      string         `json:"rarity,omitempty"`
	Supertype   string         `json:"supertype,omitempty"`
	Subtypes    []string       `json:"subtypes,omitempty"`
	Types       []string       `json:"types,omitempty"`
	Abilities   []Ability      `json:"abilities,omitempty"`
	Attacks     []Attack       `json:"attacks,omitempty"`
	Weaknesses  []TypeModifier `json:"weaknesses,omitempty"`
	Resistances []TypeModifier `json:"resistances,omitempty"`
	Set         Set            `json:"set"`
	Images      Images         `json:"images"`
	TCGPlayer   *TCGPlayer     `json:"tcgplayer,omitempty"`
	CardMarket  *CardMarket    `json:"cardmarket,omitempty"`
}

// Ability is a card ability.
type Ability struct {
	Name string `json:"name"`
	Text string `json:"text,omitempty"`
	Type string `json:"type,omitempty"`
}

// Attack is a card attack.
type Attack struct {
	Name                string   `json:"name"`
	Cost                []string `json:"cost,omitempty"`
	ConvertedEnergyCost int      `json:"convertedEnergyCost,omitempty"`
	Damage              string   `json:"damage,omitempty"`
	Text                string   `json:"text,omitempty"`
}

// TypeModifier is a weakness or resistance.
type TypeModifier struct {
	Type  string `json:"type"`
	Value string `json:"value,omitempty"`
}

// Set identifies the expansion a card belongs to.
type Set struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Series string `json:"series,omitempty"`
}

// Images holds card image URLs.
type Images struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// TCGPlayer holds TCGPlayer market data, keyed by print variant
// (normal, holofoil, reverseHolofoil, ...).
type TCGPlayer struct {
	URL       string               `json:"url,omitempty"`
	UpdatedAt string               `json:"updatedAt,omitempty"`
	Prices    map[string]PriceBand `json:"prices,omitempty"`
}

// PriceBand is one TCGPlayer variant's prices in USD.
type PriceBand struct {
	Low       *float64 `json:"low,omitempty"`
	Mid       *float64 `json:"mid,omitempty"`
	High      *float64 `json:"high,omitempty"`
	Market    *float64 `json:"market,omitempty"`
	DirectLow *float64 `json:"directLow,omitempty"`
}

// CardMarket holds CardMarket data.
type CardMarket struct {
	URL       string           `json:"url,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
	Prices    CardMarketPrices `json:"prices"`
}

// CardMarketPrices are CardMarket prices in EUR.
type CardMarketPrices struct {
	AverageSellPrice *float64 `json:"averageSellPrice,omitempty"`
	LowPrice         *float64 `json:"lowPrice,omitempty"`
	TrendPrice       *float64 `json:"trendPrice,omitempty"`
	Avg1             *float64 `json:"avg1,omitempty"`
	Avg7             *float64 `json:"avg7,omitempty"`
	Avg30            *float64 `json:"avg30,omitempty"`
}

// Validate checks the required fields.
func (c Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidCard)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: card %q missing name", ErrInvalidCard, c.ID)
	}
	return nil
}

// Currencies.
const (
	CurrencyUSD = "USD"
	CurrencyEUR = "EUR"
)

// Price is a single reference price.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Source   string  `json:"source"`
}

// Price picks a reference price: TCGPlayer normal market, normal mid,
// holofoil market, holofoil mid (USD), then CardMarket average sell price
// and trend price (EUR). Missing and non-positive values are skipped.
func (c Card) Price() (Price, bool) {
	if c.TCGPlayer != nil {
		for _, variant := range []string{"normal", "holofoil"} {
			band, ok := c.TCGPlayer.Prices[variant]
			if !ok {
				continue
			}
			for _, p := range []*float64{band.Market, band.Mid} {
				if positive(p) {
					return Price{Amount: *p, Currency: CurrencyUSD, Source: "tcgplayer"}, true
				}
			}
		}
	}
	if c.CardMarket != nil {
		for _, p := range []*float64{c.CardMarket.Prices.AverageSellPrice, c.CardMarket.Prices.TrendPrice} {
			if positive(p) {
				return Price{Amount: *p, Currency: CurrencyEUR, Source: "cardmarket"}, true
			}
		}
	}
	return Price{}, false
}

func positive(p *float64) bool {
	return p != nil && *p > 0
}
