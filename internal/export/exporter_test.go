package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokedextop/pokedextop-go/internal/datastore"
)

func seededExporter(t *testing.T) *Exporter {
	t.Helper()
	store, err := datastore.Open(filepath.Join(t.TempDir(), "export.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	cards := []map[string]any{
		{
			"id": "base1-58", "name": "Pikachu",
			"set":                    map[string]any{"id": "base1", "name": "Base"},
			"images":                 map[string]any{"large": "https://images.example.com/base1-58.png"},
			"nationalPokedexNumbers": []any{float64(25)},
		},
		{
			"id": "neo1-9", "name": "Celebi",
			"set":                    map[string]any{"id": "neo1", "name": "Neo Genesis"},
			"images":                 map[string]any{"large": "https://images.example.com/neo1-9.png"},
			"nationalPokedexNumbers": []any{float64(251)},
		},
	}
	for _, raw := range cards {
		_, _, err := store.StoreCard(ctx, raw)
		require.NoError(t, err)
	}
	require.NoError(t, store.AddToCollection("", 25, "base1-58"))
	require.NoError(t, store.AddToCollection("", 251, "neo1-9"))

	return NewExporter(store)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{CardsPerRow: 20, Quality: "ultra", Format: "bmp"}.Validate()
	assert.Equal(t, 8, cfg.CardsPerRow)
	assert.Equal(t, QualityHigh, cfg.Quality)
	assert.Equal(t, FormatPNG, cfg.Format)
	assert.Equal(t, "My Pokémon Collection", cfg.Title)

	cfg = Config{CardsPerRow: 1}.Validate()
	assert.Equal(t, 2, cfg.CardsPerRow)
}

func TestConfigCacheQuality(t *testing.T) {
	assert.Equal(t, "export_high", Config{Quality: QualityHigh}.CacheQuality())
	assert.Equal(t, "export_low", Config{Quality: QualityLow}.CacheQuality())
}

func TestSummary(t *testing.T) {
	e := seededExporter(t)

	summary, err := e.Summary(0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCards)
	assert.Equal(t, 2, summary.UniquePokemon)
	assert.Equal(t, 2, summary.UniqueSets)
	assert.True(t, summary.HasContent)
	require.Len(t, summary.Breakdown, 2)
	assert.Equal(t, 1, summary.Breakdown[0].Generation)
	assert.Equal(t, 1, summary.Breakdown[0].CardCount)

	// Generation filter narrows the view.
	summary, err = e.Summary(2)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalCards)
}

func TestEstimateSize(t *testing.T) {
	e := seededExporter(t)

	estimate, err := e.EstimateSize(Config{CardsPerRow: 4, Quality: QualityHigh})
	require.NoError(t, err)
	assert.Equal(t, 2, estimate.TotalCards)
	assert.Equal(t, 4, estimate.GridColumns)
	assert.Equal(t, 1, estimate.GridRows)
	assert.Equal(t, 245, estimate.CardWidth)
	assert.Positive(t, estimate.ImageWidth)
	assert.Positive(t, estimate.FileSizeMB)
}

func TestFilename(t *testing.T) {
	e := seededExporter(t)

	name := e.Filename(Config{Title: "My Kanto Cards!", GenerationFilter: 1, Format: FormatJSON})
	assert.Regexp(t, `^my_kanto_cards_gen1_\d{8}_\d{6}\.json$`, name)

	name = e.Filename(Config{Title: "***", Format: FormatCSV})
	assert.Regexp(t, `^collection_\d{8}_\d{6}\.csv$`, name)
}

func TestExportJSON(t *testing.T) {
	e := seededExporter(t)
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, e.ExportJSON(Config{}, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload struct {
		Summary Summary      `json:"collection_summary"`
		Cards   []CardRecord `json:"cards"`
	}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, 2, payload.Summary.TotalCards)
	require.Len(t, payload.Cards, 2)
	assert.Equal(t, "Pikachu", payload.Cards[0].PokemonName)
	assert.Equal(t, "Celebi", payload.Cards[1].PokemonName)

	history := e.History()
	require.Len(t, history, 1)
	assert.Equal(t, FormatJSON, history[0].Format)
	assert.NotEmpty(t, history[0].ID)
	assert.Positive(t, history[0].FileSize)
}

func TestExportCSV(t *testing.T) {
	e := seededExporter(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, e.ExportCSV(Config{Format: FormatCSV}, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 cards
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "25", rows[1][0])
	assert.Equal(t, "base1-58", rows[1][1])
}

func TestExportCSVEmptyCollection(t *testing.T) {
	store, err := datastore.Open(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	e := NewExporter(store)
	err = e.ExportCSV(Config{}, filepath.Join(t.TempDir(), "out.csv"))
	assert.Error(t, err)
}
