// Package datastore implements the tiered bronze/silver/gold store: an
// immutable raw-payload ledger, normalized queryable projections with cache
// provenance, and user-facing collection data, all in one SQLite database.
package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// ImageCacher is the cache-manager surface the ingestion path needs.
// Satisfied by *imagecache.Manager.
type ImageCacher interface {
	CacheImage(ctx context.Context, url, entityID string, contentType imagecache.ContentType, quality imagecache.Quality) (string, bool)
	GetCachedPath(entityID string, contentType imagecache.ContentType, quality imagecache.Quality) (string, bool)
}

// Store is the tiered data store. Ingestion writes bronze then silver; gold
// operations serve the collection layer. The store reads cache state through
// the injected ImageCacher but never writes cache files itself.
type Store struct {
	db     *gorm.DB
	cacher ImageCacher
	logger *slog.Logger
}

// Open opens (creating if needed) the store at dbPath, applies pending
// migrations and seeds reference data. The database runs in WAL mode with a
// 30s busy timeout so ingestion and reads can interleave.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=30000&_synchronous=NORMAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logging.ForService("datastore"),
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCacheManager injects the image cache used for synchronous original-tier
// caching during ingestion. Optional; without it ingestion skips caching.
func (s *Store) SetCacheManager(cacher ImageCacher) {
	s.cacher = cacher
}

// DB exposes the underlying gorm handle for read-only query composition.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// speciesMasterEntry is one row of the bundled species master list.
type speciesMasterEntry struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Generation int    `json:"generation"`
}

// LoadSpeciesMaster pre-populates the species master table from a bundled
// JSON list. Existing rows are left untouched so ingestion-derived data wins
// over the static seed. A missing file is a normal outcome.
func (s *Store) LoadSpeciesMaster(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("species master data file not found", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read species master data: %w", err)
	}

	var payload struct {
		Pokemon []speciesMasterEntry `json:"pokemon"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("failed to parse species master data: %w", err)
	}

	inserted := 0
	for i := range payload.Pokemon {
		entry := &payload.Pokemon[i]
		numbers, _ := json.Marshal([]int{entry.ID})
		result := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&SilverSpecies{
			PokemonID:      entry.ID,
			Name:           entry.Name,
			Generation:     entry.Generation,
			PokedexNumbers: string(numbers),
		})
		if result.Error != nil {
			return inserted, fmt.Errorf("failed to seed species %d: %w", entry.ID, result.Error)
		}
		inserted += int(result.RowsAffected)
	}

	s.logger.Info("species master seeded", "entries", len(payload.Pokemon), "inserted", inserted)
	return inserted, nil
}
