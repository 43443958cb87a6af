package datastore

import (
	"time"
)

// BronzeCard is one immutable raw card payload as received from the provider.
// Identical payloads for the same card deduplicate on (card_id, data_hash);
// changed payloads append a new row, keeping full history.
type BronzeCard struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	CardID        string    `gorm:"uniqueIndex:idx_bronze_card_hash;not null"`
	APISource     string    `gorm:"default:pokemontcg.io"`
	RawJSON       string    `gorm:"not null"`
	DataHash      string    `gorm:"uniqueIndex:idx_bronze_card_hash;not null"`
	APIEndpoint   string
	PullTimestamp time.Time `gorm:"index;autoCreateTime"`
}

func (BronzeCard) TableName() string { return "bronze_tcg_cards" }

// BronzeSet is the raw payload ledger for sets.
type BronzeSet struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	SetID         string `gorm:"uniqueIndex:idx_bronze_set_hash;not null"`
	APISource     string `gorm:"default:pokemontcg.io"`
	RawJSON       string `gorm:"not null"`
	DataHash      string `gorm:"uniqueIndex:idx_bronze_set_hash;not null"`
	PullTimestamp time.Time `gorm:"autoCreateTime"`
}

func (BronzeSet) TableName() string { return "bronze_tcg_sets" }

// SilverCard is the normalized, queryable projection of a card. At most one
// row per card id; reprocessing upserts. The cache provenance columns mirror
// the most recent ingestion's interaction with the image cache and may be
// empty when caching failed or was skipped.
type SilverCard struct {
	CardID                 string `gorm:"primaryKey"`
	Name                   string `gorm:"not null"`
	PokemonName            string `gorm:"index"`
	SetID                  string `gorm:"index;not null"`
	SetName                string
	Artist                 string
	Rarity                 string
	Supertype              string
	Subtypes               string // JSON array
	Types                  string // JSON array
	HP                     string
	Number                 string
	ImageURLSmall          string
	ImageURLLarge          string
	NationalPokedexNumbers string // JSON array
	Legalities             string // JSON object
	MarketPrices           string // JSON object

	CachedImagePath  string `gorm:"index"`
	CachedAt         *time.Time
	OriginalFileSize int64
	CacheQuality     string

	CreatedAt      time.Time
	UpdatedAt      time.Time
	SourceBronzeID int64
}

func (SilverCard) TableName() string { return "silver_tcg_cards" }

// SilverSet is the normalized projection of a set.
type SilverSet struct {
	SetID        string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	DisplayName  string `gorm:"index"`
	SearchTerms  string // JSON array
	Series       string `gorm:"index"`
	PrintedTotal int
	Total        int
	ReleaseDate  string
	SymbolURL    string
	LogoURL      string

	CreatedAt      time.Time
	UpdatedAt      time.Time
	SourceBronzeID int64
}

func (SilverSet) TableName() string { return "silver_tcg_sets" }

// SilverSpecies is the Pokémon master record, keyed by national dex number.
// Generation is recomputed from the payload's first national index on every
// upsert, so it converges to the most recently observed mapping.
type SilverSpecies struct {
	PokemonID      int    `gorm:"primaryKey"`
	Name           string `gorm:"not null"`
	Generation     int
	PokedexNumbers string // JSON array of national dex numbers
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (SilverSpecies) TableName() string { return "silver_pokemon_master" }

// TeamUpCard maps a multi-species card to its species in name order.
// Rewritten wholesale whenever the card is reprocessed.
type TeamUpCard struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	CardID      string `gorm:"uniqueIndex:idx_team_up;not null"`
	PokemonName string `gorm:"uniqueIndex:idx_team_up;not null"`
	Position    int    `gorm:"default:0"`
}

func (TeamUpCard) TableName() string { return "silver_team_up_cards" }

// GoldCollection is one card choice in a user's collection: at most one
// active card per species per collection type per user.
type GoldCollection struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	UserID         string `gorm:"uniqueIndex:idx_gold_collection;default:default"`
	PokemonID      int    `gorm:"uniqueIndex:idx_gold_collection"`
	CardID         string
	CollectionType string    `gorm:"uniqueIndex:idx_gold_collection;default:personal"`
	Notes          string
	ImportedAt     time.Time `gorm:"autoCreateTime"`
}

func (GoldCollection) TableName() string { return "gold_user_collections" }

// GoldGeneration is the fixed generation reference table.
type GoldGeneration struct {
	Generation int    `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	StartID    int
	EndID      int
	Region     string
	CreatedAt  time.Time
}

func (GoldGeneration) TableName() string { return "gold_pokemon_generations" }

// SchemaMigration marks an applied migration version.
type SchemaMigration struct {
	Version   int    `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	AppliedAt time.Time
}

func (SchemaMigration) TableName() string { return "schema_migrations" }
