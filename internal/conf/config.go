// config.go: settings for the PokéDextop collection core. Defines the Settings
// struct and the viper-backed loading logic.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// LogConfig defines the configuration for a log file
type LogConfig struct {
	Enabled  bool     // true to enable this log
	Path     string   // path to log file
	Rotation Rotation // rotation type
	MaxSize  int64    // max size in bytes for RotationSize
}

// Rotation defines the log rotation type
type Rotation string

// Log rotation types
const (
	RotationDaily  Rotation = "daily"
	RotationWeekly Rotation = "weekly"
	RotationSize   Rotation = "size"
)

// MainSettings contains general application settings
type MainSettings struct {
	Name string    // name of the application instance
	Log  LogConfig // main log file settings
}

// PathSettings contains all filesystem locations the core works with
type PathSettings struct {
	CacheRoot    string // root directory for the on-disk image cache
	DatabasePath string // path to the bronze/silver/gold SQLite file
	SpriteDir    string // read-only directory of bundled per-species sprites
}

// CacheSettings controls the cache manager behaviour
type CacheSettings struct {
	FetchTimeoutSeconds int // bounded timeout for cache-miss downloads
	CleanupDays         int // default age threshold for cleanup_old_cache
}

// LoaderSettings controls the dual-pipeline image loader
type LoaderSettings struct {
	QueueIntervalMs int // background caching queue tick interval
}

// APISettings holds the provider endpoints consumed by ingestion
type APISettings struct {
	BaseURL        string // pokemontcg.io v2 base URL
	APIKey         string // optional API key, sent as X-Api-Key
	RequestsPerSec float64
	SpriteURL      string // sprite URL pattern, %d = national dex number
	ArtworkURL     string // official artwork URL pattern, %d = national dex number
}

// ExportSettings holds defaults for collection export
type ExportSettings struct {
	DefaultTitle      string
	DefaultQuality    string
	DefaultFormat     string
	CardsPerRow       int
	MaxCollectionSize int
}

// Settings contains all configuration options for the application
type Settings struct {
	Debug bool // true to enable debug logging

	Main   MainSettings
	Paths  PathSettings
	Cache  CacheSettings
	Loader LoaderSettings
	API    APISettings
	Export ExportSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration into a new Settings struct. Missing config
// files are not an error; defaults apply.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// no config file found, defaults apply
	}
	return nil
}

// Setting returns the global settings instance, loading it on first use.
func Setting() *Settings {
	once.Do(func() {
		settingsMutex.Lock()
		defer settingsMutex.Unlock()
		var err error
		settingsInstance, err = Load()
		if err != nil {
			settingsInstance = &Settings{}
		}
	})
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// in priority order: current directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}, nil
	}
	return []string{".", filepath.Join(home, ".config", "pokedextop")}, nil
}

// DefaultDataDir returns the per-user data directory for the application.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pokedextop"
	}
	return filepath.Join(home, ".pokedextop")
}
