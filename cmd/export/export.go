// Package export implements the export subcommand: prepare export-quality
// cached assets for the user's collection and write a JSON or CSV export.
package export

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pokedextop/pokedextop-go/internal/app"
	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/export"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/tcgapi"
)

// Command creates the export command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		format     string
		outputDir  string
		generation int
		title      string
		quality    string
		skipCache  bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the collection with export-quality assets prepared",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := export.DefaultConfig()
			if title != "" {
				cfg.Title = title
			}
			if quality != "" {
				cfg.Quality = export.Quality(quality)
			}
			cfg.GenerationFilter = generation
			cfg.Format = export.Format(format)
			cfg = cfg.Validate()
			return runExport(cmd.Context(), settings, cfg, outputDir, skipCache)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json or csv")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "Output directory")
	cmd.Flags().IntVarP(&generation, "generation", "g", 0, "Restrict to one generation (0 = all)")
	cmd.Flags().StringVar(&title, "title", "", "Export title")
	cmd.Flags().StringVar(&quality, "quality", "", "Export quality: high, medium or low")
	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Skip export-quality cache preparation")
	return cmd
}

func runExport(ctx context.Context, settings *conf.Settings, cfg export.Config, outputDir string, skipCache bool) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.Exporter.Summary(cfg.GenerationFilter)
	if err != nil {
		return err
	}
	if !summary.HasContent {
		return fmt.Errorf("collection is empty, nothing to export")
	}
	fmt.Printf("Collection: %d cards, %d Pokémon, %d sets\n",
		summary.TotalCards, summary.UniquePokemon, summary.UniqueSets)

	if !skipCache {
		items, err := collectItems(a, cfg.GenerationFilter)
		if err != nil {
			return err
		}
		result := a.Preparer.PrepareCache(ctx, items, imagecache.Quality(cfg.CacheQuality()),
			func(done, total int) {
				fmt.Printf("\rPreparing cache %d/%d", done, total)
			})
		fmt.Printf("\nCache ready: %d cached, %d failed (placeholders)\n",
			result.Cached, result.Failed)
	}

	outPath := filepath.Join(outputDir, a.Exporter.Filename(cfg))
	switch cfg.Format {
	case export.FormatCSV:
		err = a.Exporter.ExportCSV(cfg, outPath)
	default:
		err = a.Exporter.ExportJSON(cfg, outPath)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported to %s\n", outPath)
	return nil
}

// collectItems builds the preparation batch from the user's collection,
// falling back to sprite URLs for species without a card image.
func collectItems(a *app.App, generation int) ([]export.Item, error) {
	records, err := a.Exporter.CollectionData(generation)
	if err != nil {
		return nil, err
	}

	items := make([]export.Item, 0, len(records))
	for i := range records {
		r := &records[i]
		item := export.Item{
			PokemonID:   r.PokemonID,
			PokemonName: r.PokemonName,
			CardID:      r.CardID,
			CardName:    r.CardName,
			SetName:     r.SetName,
		}
		if r.CardID != "" && r.ImageURL != "" {
			item.HasTCGCard = true
			item.ImageURL = r.ImageURL
		} else {
			item.SpriteURL = tcgapi.SpriteURL(a.Settings.API.SpriteURL, r.PokemonID)
		}
		items = append(items, item)
	}
	return items, nil
}
