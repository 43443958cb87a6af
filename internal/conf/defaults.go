// defaults.go default configuration values
package conf

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// setDefaultConfig registers all default settings with viper
func setDefaultConfig() {
	dataDir := DefaultDataDir()

	viper.SetDefault("debug", false)

	// Main settings
	viper.SetDefault("main.name", "pokedextop")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", filepath.Join(dataDir, "logs", "pokedextop.log"))
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 10*1024*1024)

	// Filesystem locations
	viper.SetDefault("paths.cacheroot", filepath.Join(dataDir, "cache"))
	viper.SetDefault("paths.databasepath", filepath.Join(dataDir, "databases", "pokedextop.db"))
	viper.SetDefault("paths.spritedir", filepath.Join(dataDir, "assets", "sprites", "pokemon"))

	// Cache manager
	viper.SetDefault("cache.fetchtimeoutseconds", 30)
	viper.SetDefault("cache.cleanupdays", 30)

	// Image loader
	viper.SetDefault("loader.queueintervalms", 1000)

	// Provider API
	viper.SetDefault("api.baseurl", "https://api.pokemontcg.io/v2")
	viper.SetDefault("api.apikey", "")
	viper.SetDefault("api.requestspersec", 10.0)
	viper.SetDefault("api.spriteurl", "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%d.png")
	viper.SetDefault("api.artworkurl", "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/%d.png")

	// Export defaults
	viper.SetDefault("export.defaulttitle", "My Pokémon Collection")
	viper.SetDefault("export.defaultquality", "high")
	viper.SetDefault("export.defaultformat", "png")
	viper.SetDefault("export.cardsperrow", 4)
	viper.SetDefault("export.maxcollectionsize", 1000)
}
