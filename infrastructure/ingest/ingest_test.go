package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yksoni-monk/poke/domain/catalog"
)

func TestReadCSV(t *testing.T) {
	input := "card name,card id,card number,card image url\n" +
		" Pikachu , base1-58 ,58, https://images.example/base1/58.png \n" +
		"Charizard,base1-4,4,https://images.example/base1/4.png\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].Position())
	assert.Equal(t, "base1-58", rows[0].ID())
	assert.Equal(t, "Pikachu", rows[0].Name())
	assert.Equal(t, "58", rows[0].Number())
	assert.Equal(t, "https://images.example/base1/58.png", rows[0].ImageURL())
	assert.Equal(t, 1, rows[1].Position())
	assert.Equal(t, "base1-4", rows[1].ID())
}

func TestReadCSV_ColumnOrderAndCase(t *testing.T) {
	input := "Card Image URL,Card ID\nhttps://x/1.png,a\n\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID())
	assert.Empty(t, rows[0].Name())
}

func TestReadCSV_MissingID(t *testing.T) {
	input := "card name,card id,card number,card image url\n" +
		"Pikachu,base1-58,58,https://x/58.png\n" +
		"Ghost,,0,https://x/0.png\n"

	_, err := ReadCSV(strings.NewReader(input))
	require.ErrorIs(t, err, catalog.ErrInvalidSource)

	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 3, rowErr.Line)
}

func TestReadCSV_MissingURL(t *testing.T) {
	input := "card id,card image url\nbase1-58,  \n"

	_, err := ReadCSV(strings.NewReader(input))
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Line)
	assert.Contains(t, rowErr.Error(), "base1-58")
}

func TestReadCSV_MissingColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("card name,card id\nPikachu,base1-58\n"))
	assert.ErrorIs(t, err, catalog.ErrInvalidSource)

	_, err = ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, catalog.ErrInvalidSource)
}

func TestReadCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.csv")
	require.NoError(t, os.WriteFile(path, []byte("card id,card image url\na,https://x/a.png\n"), 0o644))

	rows, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadCards(t *testing.T) {
	input := `[
		{
			"id":      "base1-58",
			"name":    "Pikachu",
			"number":  "58",
			"set":     {"id": "base1", "name": "Base"},
			"images":  {"small": "https://x/58.png"},
			"attacks": [{"name": "Gnaw", "cost": ["Colorless"], "damage": "10"}],
			"tcgplayer": {"prices": {"holofoil": {"market": 12.5}}}
		}
	]`

	cards, err := ReadCards(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Pikachu", cards[0].Name)
	assert.Equal(t, "Gnaw", cards[0].Attacks[0].Name)

	price, ok := cards[0].Price()
	require.True(t, ok)
	assert.InDelta(t, 12.5, price.Amount, 1e-9)
}

func TestReadCards_Envelope(t *testing.T) {
	cards, err := ReadCards(strings.NewReader(`{"data": [{"id": "a", "name": "A"}], "page": 1}`))
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "a", cards[0].ID)
}

func TestReadCards_Invalid(t *testing.T) {
	_, err := ReadCards(strings.NewReader(`[{"id": "a"}]`))
	assert.ErrorIs(t, err, catalog.ErrInvalidCard)

	_, err = ReadCards(strings.NewReader(`not json`))
	assert.ErrorIs(t, err, catalog.ErrInvalidCard)
}
