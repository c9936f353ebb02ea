// Package testcatalog provides a small deterministic catalog for tests: a
// mean-colour encoder, an in-memory image fetcher and solid-colour card
// images.
package testcatalog

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"

	"github.com/yksoni-monk/poke/domain/catalog"
	"github.com/yksoni-monk/poke/infrastructure/provider"
)

// Card colours.
var (
	Red   = color.NRGBA{R: 255, A: 255}
	Green = color.NRGBA{G: 255, A: 255}
	Blue  = color.NRGBA{B: 255, A: 255}
)

// Encoder embeds an image as its mean RGB value.
type Encoder struct {
	calls atomic.Int32
}

// Encode implements embedding.Encoder.
func (e *Encoder) Encode(_ context.Context, img image.Image) ([]float32, error) {
	e.calls.Add(1)
	b := img.Bounds()
	var r, g, bl float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			r += float64(c.R)
			g += float64(c.G)
			bl += float64(c.B)
		}
	}
	n := float64(b.Dx() * b.Dy())
	return []float32{float32(r / n), float32(g / n), float32(bl / n)}, nil
}

// Calls returns how many images were encoded.
func (e *Encoder) Calls() int {
	return int(e.calls.Load())
}

// Fetcher serves image bodies from memory. Unknown URLs fail like a 404.
type Fetcher map[string][]byte

// Fetch implements service.Fetcher.
func (f Fetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	body, ok := f[url]
	if !ok {
		return nil, fmt.Errorf("%w: %s: status 404", provider.ErrFetch, url)
	}
	return body, nil
}

// SolidPNG returns a 32x44 PNG filled with c.
func SolidPNG(t testing.TB, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 32, 44))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("testcatalog.SolidPNG: %v", err)
	}
	return buf.Bytes()
}

// New returns a fetcher and four source rows: red base1-4, green base1-44,
// blue base1-63 and base1-99 whose image is missing.
func New(t testing.TB) (Fetcher, []catalog.SourceRow) {
	t.Helper()
	fetcher := Fetcher{
		"https://img.example/red.png":   SolidPNG(t, Red),
		"https://img.example/green.png": SolidPNG(t, Green),
		"https://img.example/blue.png":  SolidPNG(t, Blue),
	}
	rows := []catalog.SourceRow{
		catalog.NewSourceRow(0, "base1-4", "https://img.example/red.png", "Charizard", "4"),
		catalog.NewSourceRow(1, "base1-44", "https://img.example/green.png", "Bulbasaur", "44"),
		catalog.NewSourceRow(2, "base1-63", "https://img.example/blue.png", "Squirtle", "63"),
		catalog.NewSourceRow(3, "base1-99", "https://img.example/missing.png", "Missing", "99"),
	}
	return fetcher, rows
}

// Cards returns metadata for the fixture's red and green cards. Charizard
// carries a holofoil market price of 321 USD.
func Cards() []catalog.Card {
	market := 321.0
	return []catalog.Card{
		{
			ID:     "base1-4",
			Name:   "Charizard",
			Number: "4",
			Rarity: "Rare Holo",
			Set:    catalog.Set{ID: "base1", Name: "Base", Series: "Base"},
			TCGPlayer: &catalog.TCGPlayer{
				Prices: map[string]catalog.PriceBand{"holofoil": {Market: &market}},
			},
		},
		{
			ID:     "base1-44",
			Name:   "Bulbasaur",
			Number: "44",
			Set:    catalog.Set{ID: "base1", Name: "Base", Series: "Base"},
		},
	}
}
