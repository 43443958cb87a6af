package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pokedextop/pokedextop-go/internal/conf"
)

// migration is one versioned schema step. Migrations run in order, once, and
// each applied version is recorded in schema_migrations.
type migration struct {
	version int
	name    string
	apply   func(tx *gorm.DB) error
}

// migrations is the ordered migration list. Append only; never reorder or
// edit an entry that has shipped.
var migrations = []migration{
	{
		version: 1,
		name:    "create_tiered_tables",
		apply: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&BronzeCard{}, &BronzeSet{},
				&SilverCard{}, &SilverSet{}, &SilverSpecies{}, &TeamUpCard{},
				&GoldCollection{}, &GoldGeneration{},
			)
		},
	},
	{
		version: 2,
		name:    "seed_generation_reference",
		apply: func(tx *gorm.DB) error {
			for _, g := range conf.Generations {
				row := GoldGeneration{
					Generation: g.Generation,
					Name:       g.Name,
					StartID:    g.StartID,
					EndID:      g.EndID,
					Region:     g.Region,
					CreatedAt:  time.Now(),
				}
				if err := tx.Where(GoldGeneration{Generation: g.Generation}).
					FirstOrCreate(&row).Error; err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// migrate applies every migration with a version greater than the stored
// marker, advancing the marker per step so a failure leaves a resumable
// state.
func (s *Store) migrate() error {
	if err := s.db.AutoMigrate(&SchemaMigration{}); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	current := 0
	var last SchemaMigration
	if err := s.db.Order("version DESC").First(&last).Error; err == nil {
		current = last.Version
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := m.apply(tx); err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   m.version,
				Name:      m.name,
				AppliedAt: time.Now(),
			}).Error
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		s.logger.Info("applied migration", "version", m.version, "name", m.name)
	}
	return nil
}

// SchemaVersion reports the highest applied migration version.
func (s *Store) SchemaVersion() int {
	var last SchemaMigration
	if err := s.db.Order("version DESC").First(&last).Error; err != nil {
		return 0
	}
	return last.Version
}
