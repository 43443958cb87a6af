// consts.go: fixed reference data for quality tiers and species generations.
package conf

// QualityConfig describes the transformation applied to one cached quality tier.
type QualityConfig struct {
	MaxWidth       int // downscale bound, aspect ratio preserved
	MaxHeight      int
	JPEGQuality    int // lossy quality for the ui tier
	PNGCompression int // 1 = minimal compression, 6 = default
}

// qualityConfigs maps quality tier names to their transformation parameters.
// The original tier is intentionally absent: original bytes are stored verbatim.
var qualityConfigs = map[string]QualityConfig{
	"ui":            {MaxWidth: 300, MaxHeight: 300, JPEGQuality: 75, PNGCompression: 6},
	"export_high":   {MaxWidth: 2000, MaxHeight: 2000, JPEGQuality: 95, PNGCompression: 1},
	"export_medium": {MaxWidth: 1000, MaxHeight: 1000, JPEGQuality: 85, PNGCompression: 3},
	"export_low":    {MaxWidth: 500, MaxHeight: 500, JPEGQuality: 70, PNGCompression: 6},
}

// QualityFor returns the transformation parameters for a quality tier.
// Unknown tiers fall back to the ui configuration rather than failing, so a
// caller always gets a usable configuration back.
func QualityFor(quality string) QualityConfig {
	if cfg, ok := qualityConfigs[quality]; ok {
		return cfg
	}
	return qualityConfigs["ui"]
}

// Generation describes one closed national-dex number range.
type Generation struct {
	Generation int
	Name       string
	StartID    int
	EndID      int
	Region     string
}

// Generations is the fixed nine-generation reference table. Ranges are closed
// intervals over national dex numbers and do not overlap.
var Generations = []Generation{
	{1, "Generation I (Kanto)", 1, 151, "Kanto"},
	{2, "Generation II (Johto)", 152, 251, "Johto"},
	{3, "Generation III (Hoenn)", 252, 386, "Hoenn"},
	{4, "Generation IV (Sinnoh)", 387, 493, "Sinnoh"},
	{5, "Generation V (Unova)", 494, 649, "Unova"},
	{6, "Generation VI (Kalos)", 650, 721, "Kalos"},
	{7, "Generation VII (Alola)", 722, 809, "Alola"},
	{8, "Generation VIII (Galar)", 810, 905, "Galar"},
	{9, "Generation IX (Paldea)", 906, 1025, "Paldea"},
}
