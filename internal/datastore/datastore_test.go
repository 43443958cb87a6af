package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokedextop/pokedextop-go/internal/imagecache"
)

// fakeCacher records CacheImage calls and returns a deterministic path.
type fakeCacher struct {
	calls []string
	fail  bool
}

func (f *fakeCacher) CacheImage(_ context.Context, url, entityID string, contentType imagecache.ContentType, quality imagecache.Quality) (string, bool) {
	f.calls = append(f.calls, entityID)
	if f.fail {
		return "", false
	}
	return "/cache/" + string(contentType) + "/" + string(quality) + "/" + entityID + ".png", true
}

func (f *fakeCacher) GetCachedPath(entityID string, contentType imagecache.ContentType, quality imagecache.Quality) (string, bool) {
	return "", false
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func cardPayload(id, name string, pokedexNumbers ...any) map[string]any {
	return map[string]any{
		"id":        id,
		"name":      name,
		"supertype": "Pokémon",
		"rarity":    "Rare",
		"set": map[string]any{
			"id":   "base1",
			"name": "Base",
		},
		"images": map[string]any{
			"small": "https://images.example.com/" + id + ".png",
			"large": "https://images.example.com/" + id + "_hires.png",
		},
		"nationalPokedexNumbers": pokedexNumbers,
	}
}

func TestStoreCardBronzeDeduplication(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload := cardPayload("base1-58", "Pikachu", float64(25))

	id1, isNew, err := s.StoreCard(ctx, payload)
	require.NoError(t, err)
	assert.True(t, isNew)

	// Byte-identical payload resolves to the existing row.
	id2, isNew, err := s.StoreCard(ctx, payload)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id1, id2)

	var count int64
	require.NoError(t, s.db.Model(&BronzeCard{}).Where("card_id = ?", "base1-58").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// A payload differing in one field creates a second bronze row.
	changed := cardPayload("base1-58", "Pikachu", float64(25))
	changed["rarity"] = "Common"
	id3, isNew, err := s.StoreCard(ctx, changed)
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEqual(t, id1, id3)

	require.NoError(t, s.db.Model(&BronzeCard{}).Where("card_id = ?", "base1-58").Count(&count).Error)
	assert.Equal(t, int64(2), count)

	// Silver stays a single upserted row.
	require.NoError(t, s.db.Model(&SilverCard{}).Where("card_id = ?", "base1-58").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStoreCardKeyOrderInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Maps with the same content hash identically regardless of
	// construction order; a second ingest must dedupe.
	a := map[string]any{"id": "x-1", "name": "Mew", "rarity": "Rare"}
	b := map[string]any{"rarity": "Rare", "name": "Mew", "id": "x-1"}

	_, isNew, err := s.StoreCard(ctx, a)
	require.NoError(t, err)
	assert.True(t, isNew)

	_, isNew, err = s.StoreCard(ctx, b)
	require.NoError(t, err)
	assert.False(t, isNew)
}

func TestStoreCardCachesOriginalTier(t *testing.T) {
	s := openTestStore(t)
	cacher := &fakeCacher{}
	s.SetCacheManager(cacher)

	_, _, err := s.StoreCard(context.Background(), cardPayload("base1-4", "Charizard", float64(6)))
	require.NoError(t, err)
	assert.Equal(t, []string{"base1-4"}, cacher.calls)

	var card SilverCard
	require.NoError(t, s.db.Where("card_id = ?", "base1-4").First(&card).Error)
	assert.Equal(t, "/cache/tcg_card/original/base1-4.png", card.CachedImagePath)
	assert.Equal(t, "original", card.CacheQuality)
	require.NotNil(t, card.CachedAt)
}

func TestStoreCardCacheFailureStillPersists(t *testing.T) {
	s := openTestStore(t)
	s.SetCacheManager(&fakeCacher{fail: true})

	_, _, err := s.StoreCard(context.Background(), cardPayload("base1-15", "Venusaur", float64(3)))
	require.NoError(t, err)

	var card SilverCard
	require.NoError(t, s.db.Where("card_id = ?", "base1-15").First(&card).Error)
	assert.Empty(t, card.CachedImagePath)
	assert.Empty(t, card.CacheQuality)
	assert.Nil(t, card.CachedAt)
}

func TestStoreCardTeamUpMapping(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.StoreCard(ctx, cardPayload("sm9-33", "Celebi & Venusaur GX", float64(251), float64(3)))
	require.NoError(t, err)

	var rows []TeamUpCard
	require.NoError(t, s.db.Where("card_id = ?", "sm9-33").Order("position").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, "Celebi", rows[0].PokemonName)
	assert.Equal(t, 0, rows[0].Position)
	assert.Equal(t, "Venusaur", rows[1].PokemonName)
	assert.Equal(t, 1, rows[1].Position)

	// Primary for single-value fields is the first species.
	var card SilverCard
	require.NoError(t, s.db.Where("card_id = ?", "sm9-33").First(&card).Error)
	assert.Equal(t, "Celebi", card.PokemonName)
}

func TestStoreCardSingleNameNoTeamUpRows(t *testing.T) {
	s := openTestStore(t)

	_, _, err := s.StoreCard(context.Background(), cardPayload("base1-58", "Pikachu", float64(25)))
	require.NoError(t, err)

	var count int64
	require.NoError(t, s.db.Model(&TeamUpCard{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSpeciesGenerationConvergence(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.StoreCard(ctx, cardPayload("a-1", "Celebi", float64(251)))
	require.NoError(t, err)

	var species SilverSpecies
	require.NoError(t, s.db.Where("pokemon_id = ?", 251).First(&species).Error)
	assert.Equal(t, 2, species.Generation)
	assert.Equal(t, "Celebi", species.Name)

	// A later payload for the same species rewrites the row.
	_, _, err = s.StoreCard(ctx, map[string]any{
		"id":                     "a-2",
		"name":                   "Celebi",
		"nationalPokedexNumbers": []any{float64(251), float64(252)},
	})
	require.NoError(t, err)

	require.NoError(t, s.db.Where("pokemon_id = ?", 251).First(&species).Error)
	assert.Equal(t, "[251,252]", species.PokedexNumbers)
}

func TestStoreSetDeduplication(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	payload := map[string]any{
		"id":           "base1",
		"name":         "Base",
		"series":       "Base",
		"printedTotal": float64(102),
		"total":        float64(102),
		"releaseDate":  "1999/01/09",
		"images": map[string]any{
			"symbol": "https://images.example.com/base1/symbol.png",
			"logo":   "https://images.example.com/base1/logo.png",
		},
	}

	id1, isNew, err := s.StoreSet(ctx, payload)
	require.NoError(t, err)
	assert.True(t, isNew)

	id2, isNew, err := s.StoreSet(ctx, payload)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, id1, id2)

	var set SilverSet
	require.NoError(t, s.db.Where("set_id = ?", "base1").First(&set).Error)
	assert.Equal(t, "Base", set.Name)
	assert.Equal(t, 102, set.Total)
	assert.Equal(t, "https://images.example.com/base1/logo.png", set.LogoURL)
}

func TestMigrationVersionAdvances(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	s, err := Open(dbPath)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), s.SchemaVersion())
	require.NoError(t, s.Close())

	// Reopening is a no-op, version stays put.
	s, err = Open(dbPath)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), s.SchemaVersion())
	require.NoError(t, s.Close())
}

func TestGenerationReferenceSeeded(t *testing.T) {
	s := openTestStore(t)

	var rows []GoldGeneration
	require.NoError(t, s.db.Order("generation").Find(&rows).Error)
	require.Len(t, rows, 9)
	assert.Equal(t, 1, rows[0].StartID)
	assert.Equal(t, 151, rows[0].EndID)
	assert.Equal(t, "Kanto", rows[0].Region)
	assert.Equal(t, 906, rows[8].StartID)
	assert.Equal(t, 1025, rows[8].EndID)
}

func TestGoldCollectionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.StoreCard(ctx, cardPayload("base1-58", "Pikachu", float64(25)))
	require.NoError(t, err)

	require.NoError(t, s.AddToCollection("", 25, "base1-58"))

	collection, err := s.GetCollection("")
	require.NoError(t, err)
	require.Contains(t, collection, 25)
	assert.Equal(t, "base1-58", collection[25].CardID)
	assert.Equal(t, "Pikachu", collection[25].CardName)

	// Replacing the choice for the same species keeps one row.
	_, _, err = s.StoreCard(ctx, cardPayload("base2-60", "Pikachu", float64(25)))
	require.NoError(t, err)
	require.NoError(t, s.AddToCollection("", 25, "base2-60"))

	collection, err = s.GetCollection("")
	require.NoError(t, err)
	require.Len(t, collection, 1)
	assert.Equal(t, "base2-60", collection[25].CardID)
}

func TestGetUncachedCards(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.StoreCard(ctx, cardPayload("u-1", "Eevee", float64(133)))
	require.NoError(t, err)

	uncached, err := s.GetUncachedCards("original")
	require.NoError(t, err)
	require.Len(t, uncached, 1)
	assert.Equal(t, "u-1", uncached[0].CardID)
	assert.Equal(t, "https://images.example.com/u-1_hires.png", uncached[0].ImageURL)

	require.NoError(t, s.UpdateCardCacheInfo("u-1", "/cache/u-1.png", 1024, "original"))

	uncached, err = s.GetUncachedCards("original")
	require.NoError(t, err)
	assert.Empty(t, uncached)
}

func TestGetSpeciesByGeneration(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.StoreCard(ctx, cardPayload("g-1", "Pikachu", float64(25)))
	require.NoError(t, err)
	_, _, err = s.StoreCard(ctx, cardPayload("g-2", "Pikachu", float64(25)))
	require.NoError(t, err)

	species, err := s.GetSpeciesByGeneration(1)
	require.NoError(t, err)
	require.Len(t, species, 1)
	assert.Equal(t, 25, species[0].PokemonID)
	assert.Equal(t, 2, species[0].CardCount)
	assert.ElementsMatch(t, []string{"g-1", "g-2"}, species[0].AvailableCards)
}
