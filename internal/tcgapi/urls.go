package tcgapi

import "fmt"

// Sprite and artwork asset URL patterns, keyed by national dex number.
// These point at the community sprite repository; the fixed patterns are the
// closed-world source for species imagery.
const (
	DefaultSpriteURLPattern  = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/%d.png"
	DefaultArtworkURLPattern = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/other/official-artwork/%d.png"
)

// SpriteURL returns the sprite asset URL for a species.
func SpriteURL(pattern string, pokemonID int) string {
	if pattern == "" {
		pattern = DefaultSpriteURLPattern
	}
	return fmt.Sprintf(pattern, pokemonID)
}

// ArtworkURL returns the official artwork asset URL for a species.
func ArtworkURL(pattern string, pokemonID int) string {
	if pattern == "" {
		pattern = DefaultArtworkURLPattern
	}
	return fmt.Sprintf(pattern, pokemonID)
}
