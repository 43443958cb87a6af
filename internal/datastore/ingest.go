package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pokedextop/pokedextop-go/internal/errors"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
)

// canonicalJSON serializes a payload deterministically. encoding/json sorts
// map keys, so byte-identical payloads hash identically regardless of the
// order keys arrived in.
func canonicalJSON(raw map[string]any) (data []byte, hash string, err error) {
	data, err = json.Marshal(raw)
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}

// StoreCard ingests one raw card payload: insert into bronze (deduplicated
// on card id + content hash), then on a genuinely new payload derive the
// silver projection inside one transaction. Re-ingesting an identical payload
// resolves to the existing bronze id with isNew=false. Bronze commits before
// silver processing starts, so a silver failure never loses provenance.
func (s *Store) StoreCard(ctx context.Context, raw map[string]any) (bronzeID int64, isNew bool, err error) {
	cardID := stringField(raw, "id")
	if cardID == "" {
		return 0, false, errors.Newf("card payload has no id").
			Component("datastore").Category(errors.CategoryValidation).Build()
	}

	data, hash, err := canonicalJSON(raw)
	if err != nil {
		return 0, false, err
	}

	bronze := BronzeCard{
		CardID:      cardID,
		RawJSON:     string(data),
		DataHash:    hash,
		APIEndpoint: "cards",
	}
	if err := s.db.WithContext(ctx).Create(&bronze).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing BronzeCard
			if lookupErr := s.db.Where("card_id = ? AND data_hash = ?", cardID, hash).
				First(&existing).Error; lookupErr != nil {
				return 0, false, fmt.Errorf("duplicate bronze row lookup failed: %w", lookupErr)
			}
			s.logger.Debug("duplicate card payload", "card_id", cardID)
			return existing.ID, false, nil
		}
		return 0, false, errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("card_id", cardID).Build()
	}

	if err := s.processBronzeToSilverCard(ctx, bronze.ID, raw); err != nil {
		return bronze.ID, true, err
	}
	s.logger.Info("stored new card", "card_id", cardID, "bronze_id", bronze.ID)
	return bronze.ID, true, nil
}

// processBronzeToSilverCard derives the silver projection for one bronze
// row. The whole silver-side mutation runs in a single transaction; the
// synchronous original-tier caching happens before it so a cache failure
// cannot hold a write transaction open.
func (s *Store) processBronzeToSilverCard(ctx context.Context, bronzeID int64, raw map[string]any) error {
	cardID := stringField(raw, "id")
	name := stringField(raw, "name")

	names := ExtractPokemonNames(name)
	primaryName := ""
	if len(names) > 0 {
		primaryName = names[0]
	}
	isTeamUp := len(names) > 1

	setData := mapField(raw, "set")
	images := mapField(raw, "images")
	imageURLLarge := stringField(images, "large")

	// Best-effort synchronous caching of the provenance copy. Failure leaves
	// the provenance columns empty; the card row is still written.
	cachedPath := ""
	var cachedAt *time.Time
	cacheQuality := ""
	if imageURLLarge != "" && s.cacher != nil {
		if path, ok := s.cacher.CacheImage(ctx, imageURLLarge, cardID,
			imagecache.ContentTCGCard, imagecache.QualityOriginal); ok {
			cachedPath = path
			now := time.Now()
			cachedAt = &now
			cacheQuality = string(imagecache.QualityOriginal)
		}
	}

	pokedexNumbers := intSliceField(raw, "nationalPokedexNumbers")

	card := SilverCard{
		CardID:                 cardID,
		Name:                   name,
		PokemonName:            primaryName,
		SetID:                  stringField(setData, "id"),
		SetName:                stringField(setData, "name"),
		Artist:                 stringField(raw, "artist"),
		Rarity:                 stringField(raw, "rarity"),
		Supertype:              stringField(raw, "supertype"),
		Subtypes:               jsonField(raw, "subtypes"),
		Types:                  jsonField(raw, "types"),
		HP:                     stringField(raw, "hp"),
		Number:                 stringField(raw, "number"),
		ImageURLSmall:          stringField(images, "small"),
		ImageURLLarge:          imageURLLarge,
		NationalPokedexNumbers: jsonField(raw, "nationalPokedexNumbers"),
		Legalities:             jsonField(raw, "legalities"),
		MarketPrices:           jsonField(mapField(raw, "tcgplayer"), "prices"),
		CachedImagePath:        cachedPath,
		CachedAt:               cachedAt,
		CacheQuality:           cacheQuality,
		SourceBronzeID:         bronzeID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "card_id"}},
			UpdateAll: true,
		}).Create(&card).Error; err != nil {
			return fmt.Errorf("failed to upsert silver card: %w", err)
		}

		if isTeamUp {
			if err := tx.Where("card_id = ?", cardID).Delete(&TeamUpCard{}).Error; err != nil {
				return fmt.Errorf("failed to clear team-up rows: %w", err)
			}
			for position, pokemonName := range names {
				if err := tx.Create(&TeamUpCard{
					CardID:      cardID,
					PokemonName: pokemonName,
					Position:    position,
				}).Error; err != nil {
					return fmt.Errorf("failed to insert team-up row: %w", err)
				}
			}
		}

		if len(pokedexNumbers) > 0 {
			speciesNames := names
			if !isTeamUp && primaryName != "" {
				speciesNames = []string{primaryName}
			}
			for _, speciesName := range speciesNames {
				if err := upsertSpecies(tx, speciesName, pokedexNumbers); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").Category(errors.CategoryIngestion).
			Context("card_id", cardID).Context("bronze_id", bronzeID).Build()
	}
	return nil
}

// upsertSpecies rewrites the species master row keyed by the payload's first
// national index. Generation is recomputed every time, last write wins.
func upsertSpecies(tx *gorm.DB, name string, pokedexNumbers []int) error {
	primary := pokedexNumbers[0]
	numbers, err := json.Marshal(pokedexNumbers)
	if err != nil {
		return fmt.Errorf("failed to serialize pokedex numbers: %w", err)
	}
	species := SilverSpecies{
		PokemonID:      primary,
		Name:           name,
		Generation:     GenerationFor(primary),
		PokedexNumbers: string(numbers),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pokemon_id"}},
		UpdateAll: true,
	}).Create(&species).Error; err != nil {
		return fmt.Errorf("failed to upsert species %s: %w", name, err)
	}
	return nil
}

// StoreSet ingests one raw set payload: bronze dedup then silver projection,
// same shape as StoreCard without the caching side effect.
func (s *Store) StoreSet(ctx context.Context, raw map[string]any) (bronzeID int64, isNew bool, err error) {
	setID := stringField(raw, "id")
	if setID == "" {
		return 0, false, errors.Newf("set payload has no id").
			Component("datastore").Category(errors.CategoryValidation).Build()
	}

	data, hash, err := canonicalJSON(raw)
	if err != nil {
		return 0, false, err
	}

	bronze := BronzeSet{SetID: setID, RawJSON: string(data), DataHash: hash}
	if err := s.db.WithContext(ctx).Create(&bronze).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing BronzeSet
			if lookupErr := s.db.Where("set_id = ? AND data_hash = ?", setID, hash).
				First(&existing).Error; lookupErr != nil {
				return 0, false, fmt.Errorf("duplicate bronze set lookup failed: %w", lookupErr)
			}
			return existing.ID, false, nil
		}
		return 0, false, errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("set_id", setID).Build()
	}

	images := mapField(raw, "images")
	name := stringField(raw, "name")
	series := stringField(raw, "series")
	searchTerms, _ := json.Marshal(searchTermsFor(name, series))

	set := SilverSet{
		SetID:          setID,
		Name:           name,
		DisplayName:    displayNameFor(name, series),
		SearchTerms:    string(searchTerms),
		Series:         series,
		PrintedTotal:   intField(raw, "printedTotal"),
		Total:          intField(raw, "total"),
		ReleaseDate:    stringField(raw, "releaseDate"),
		SymbolURL:      stringField(images, "symbol"),
		LogoURL:        stringField(images, "logo"),
		SourceBronzeID: bronze.ID,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "set_id"}},
		UpdateAll: true,
	}).Create(&set).Error; err != nil {
		return bronze.ID, true, errors.New(err).
			Component("datastore").Category(errors.CategoryIngestion).
			Context("set_id", setID).Build()
	}
	s.logger.Info("stored new set", "set_id", setID, "bronze_id", bronze.ID)
	return bronze.ID, true, nil
}
