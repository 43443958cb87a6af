package datastore

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm/clause"

	"github.com/pokedextop/pokedextop-go/internal/errors"
)

// DefaultUserID is the single-user default until profiles exist.
const DefaultUserID = "default"

// CollectionTypePersonal is the default collection bucket.
const CollectionTypePersonal = "personal"

// CollectionItem is one resolved entry of a user's collection: the chosen
// card joined with its silver metadata.
type CollectionItem struct {
	PokemonID    int
	CardID       string
	CardName     string
	ImageURL     string
	SetName      string
	CachedPath   string
	CacheQuality string
}

// AddToCollection records the user's card choice for a species. One active
// choice per (user, species, collection type); a new choice replaces the
// old one.
func (s *Store) AddToCollection(userID string, pokemonID int, cardID string) error {
	if userID == "" {
		userID = DefaultUserID
	}
	row := GoldCollection{
		UserID:         userID,
		PokemonID:      pokemonID,
		CardID:         cardID,
		CollectionType: CollectionTypePersonal,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "pokemon_id"}, {Name: "collection_type"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("user_id", userID).Context("pokemon_id", pokemonID).Build()
	}
	return nil
}

// GetCollection returns the user's personal collection keyed by species id,
// joined with silver card metadata.
func (s *Store) GetCollection(userID string) (map[int]CollectionItem, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	var rows []struct {
		PokemonID       int
		CardID          string
		Name            string
		ImageURLLarge   string
		SetName         string
		CachedImagePath string
		CacheQuality    string
	}
	err := s.db.Table("gold_user_collections AS uc").
		Select("uc.pokemon_id, uc.card_id, c.name, c.image_url_large, c.set_name, c.cached_image_path, c.cache_quality").
		Joins("JOIN silver_tcg_cards c ON uc.card_id = c.card_id").
		Where("uc.user_id = ? AND uc.collection_type = ?", userID, CollectionTypePersonal).
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("user_id", userID).Build()
	}

	collection := make(map[int]CollectionItem, len(rows))
	for _, r := range rows {
		collection[r.PokemonID] = CollectionItem{
			PokemonID:    r.PokemonID,
			CardID:       r.CardID,
			CardName:     r.Name,
			ImageURL:     r.ImageURLLarge,
			SetName:      r.SetName,
			CachedPath:   r.CachedImagePath,
			CacheQuality: r.CacheQuality,
		}
	}
	return collection, nil
}

// UncachedCard identifies a silver card that has no cached image at the
// requested quality, with the URL to fetch it from.
type UncachedCard struct {
	CardID   string
	ImageURL string
}

// GetUncachedCards lists cards missing a cached image at the given quality,
// preferring the large image URL.
func (s *Store) GetUncachedCards(quality string) ([]UncachedCard, error) {
	var rows []SilverCard
	err := s.db.
		Where("(cached_image_path = '' OR cached_image_path IS NULL OR cache_quality != ?)", quality).
		Where("(image_url_large != '' OR image_url_small != '')").
		Find(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).Build()
	}

	uncached := make([]UncachedCard, 0, len(rows))
	for i := range rows {
		url := rows[i].ImageURLLarge
		if url == "" {
			url = rows[i].ImageURLSmall
		}
		uncached = append(uncached, UncachedCard{CardID: rows[i].CardID, ImageURL: url})
	}
	return uncached, nil
}

// UpdateCardCacheInfo records a completed caching operation against the
// card's silver row.
func (s *Store) UpdateCardCacheInfo(cardID, cachedPath string, fileSize int64, quality string) error {
	now := time.Now()
	err := s.db.Model(&SilverCard{}).Where("card_id = ?", cardID).
		Updates(map[string]any{
			"cached_image_path":  cachedPath,
			"cached_at":          now,
			"original_file_size": fileSize,
			"cache_quality":      quality,
		}).Error
	if err != nil {
		return errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("card_id", cardID).Build()
	}
	return nil
}

// SpeciesSummary is one species with its card availability, as shown in the
// generation browser.
type SpeciesSummary struct {
	PokemonID      int
	Name           string
	Generation     int
	PokedexNumbers []int
	CardCount      int
	AvailableCards []string
}

// GetSpeciesByGeneration lists every species of a generation with the cards
// available for it, counting both primary and team-up associations.
func (s *Store) GetSpeciesByGeneration(generation int) ([]SpeciesSummary, error) {
	var rows []struct {
		PokemonID      int
		Name           string
		PokedexNumbers string
		CardCount      int
		AvailableCards string
	}
	err := s.db.Table("silver_pokemon_master AS p").
		Select(`p.pokemon_id, p.name, p.pokedex_numbers,
			COUNT(DISTINCT c.card_id) AS card_count,
			GROUP_CONCAT(DISTINCT c.card_id) AS available_cards`).
		Joins(`LEFT JOIN (
			SELECT card_id, pokemon_name FROM silver_tcg_cards
			UNION
			SELECT card_id, pokemon_name FROM silver_team_up_cards
		) c ON p.name = c.pokemon_name`).
		Where("p.generation = ?", generation).
		Group("p.pokemon_id").Group("p.name").
		Order("p.pokemon_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").Category(errors.CategoryDatabase).
			Context("generation", generation).Build()
	}

	summaries := make([]SpeciesSummary, 0, len(rows))
	for _, r := range rows {
		summary := SpeciesSummary{
			PokemonID:  r.PokemonID,
			Name:       r.Name,
			Generation: generation,
			CardCount:  r.CardCount,
		}
		if r.PokedexNumbers != "" {
			if err := json.Unmarshal([]byte(r.PokedexNumbers), &summary.PokedexNumbers); err != nil {
				s.logger.Warn("bad pokedex_numbers JSON", "pokemon_id", r.PokemonID, "error", err)
			}
		}
		if r.AvailableCards != "" {
			summary.AvailableCards = strings.Split(r.AvailableCards, ",")
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
