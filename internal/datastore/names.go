package datastore

import (
	"regexp"
	"strings"
)

// teamUpSeparator marks a card whose display name encodes multiple species.
const teamUpSeparator = " & "

var (
	teamUpSuffixRe   = regexp.MustCompile(`\s+(?:GX|TAG TEAM|LEGEND).*$`)
	cardPrefixRe     = regexp.MustCompile(`^(Card #\d+\s+|[A-Z]{1,5}\d+\s+)`)
	possessiveRe     = regexp.MustCompile(`^[A-Za-z\s]+'s\s+`)
	teamPossessiveRe = regexp.MustCompile(`^Team\s+[A-Za-z\s]+'s\s+`)
	cardSuffixRe     = regexp.MustCompile(`\s+(?:ex|EX|GX|V|VMAX|VSTAR|V-UNION|Prime|BREAK|Prism Star|◇|LV\.X|MEGA|M|Tag Team).*$`)
	decorationRe     = regexp.MustCompile(`[◇★]`)
)

// specialNames are species whose names would be mangled by the generic
// suffix/punctuation cleanup and are matched as-is instead.
var specialNames = []string{
	"Mr. Mime", "Mime Jr.", "Farfetch'd", "Sirfetch'd", "Type: Null",
	"Ho-Oh", "Porygon-Z", "Jangmo-o", "Hakamo-o", "Kommo-o",
}

// regionalPrefixes are stripped so regional variants map to the base species.
var regionalPrefixes = []string{"Alolan", "Galarian", "Paldean", "Hisuian"}

// ExtractPokemonNames derives the species names encoded in a card's display
// name, in the order they appear. Team-up names (joined by " & ") yield one
// entry per species; a plain name yields a single entry; an empty or
// unparseable name yields none.
func ExtractPokemonNames(cardName string) []string {
	if cardName == "" {
		return nil
	}

	if strings.Contains(cardName, teamUpSeparator) {
		clean := teamUpSuffixRe.ReplaceAllString(cardName, "")
		var names []string
		for _, part := range strings.Split(clean, teamUpSeparator) {
			if cleaned := cleanSingleName(strings.TrimSpace(part)); cleaned != "" {
				names = append(names, cleaned)
			}
		}
		return names
	}

	if cleaned := cleanSingleName(cardName); cleaned != "" {
		return []string{cleaned}
	}
	return nil
}

// cleanSingleName strips collector prefixes, trainer possessives, regional
// prefixes, mechanic suffixes and decorations from a single species name.
func cleanSingleName(cardName string) string {
	if cardName == "" {
		return ""
	}

	clean := cardPrefixRe.ReplaceAllString(cardName, "")
	clean = possessiveRe.ReplaceAllString(clean, "")
	clean = teamPossessiveRe.ReplaceAllString(clean, "")

	for _, special := range specialNames {
		if strings.Contains(clean, special) {
			return special
		}
	}

	for _, region := range regionalPrefixes {
		if strings.HasPrefix(clean, region+" ") {
			clean = strings.Replace(clean, region+" ", "", 1)
			break
		}
	}

	clean = cardSuffixRe.ReplaceAllString(clean, "")
	clean = decorationRe.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// GenerationFor buckets a national dex number into its generation using the
// fixed closed ranges. Numbers above the known range clamp to the latest
// generation; zero and negatives report no generation.
func GenerationFor(pokedexNumber int) int {
	if pokedexNumber <= 0 {
		return 0
	}
	for _, g := range generationRanges {
		if pokedexNumber >= g.start && pokedexNumber <= g.end {
			return g.generation
		}
	}
	return latestGeneration
}

const latestGeneration = 9

var generationRanges = []struct {
	start, end, generation int
}{
	{1, 151, 1}, {152, 251, 2}, {252, 386, 3}, {387, 493, 4}, {494, 649, 5},
	{650, 721, 6}, {722, 809, 7}, {810, 905, 8}, {906, 1025, 9},
}
