// Package ingest implements the ingest subcommand: pull card and set
// payloads from the provider and push them through the bronze/silver
// pipeline.
package ingest

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pokedextop/pokedextop-go/internal/app"
	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// Command creates the ingest command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		setID    string
		name     string
		pokedex  int
		withSets bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch cards from the TCG API into the tiered store",
		Long: `Fetch card payloads from the provider and ingest them: raw payloads are
stored in the bronze layer, normalized projections in silver, and the primary
card image is cached at the original quality tier as a side effect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if setID == "" && name == "" && pokedex == 0 && !withSets {
				return fmt.Errorf("nothing to ingest: pass --set, --name, --pokedex or --sets")
			}
			return runIngest(cmd.Context(), settings, setID, name, pokedex, withSets)
		},
	}

	cmd.Flags().StringVar(&setID, "set", "", "Ingest every card of a set id (e.g. base1)")
	cmd.Flags().StringVar(&name, "name", "", "Ingest cards matching a species name")
	cmd.Flags().IntVar(&pokedex, "pokedex", 0, "Ingest cards for a national dex number")
	cmd.Flags().BoolVar(&withSets, "sets", false, "Ingest all set metadata")
	return cmd
}

func runIngest(ctx context.Context, settings *conf.Settings, setID, name string, pokedex int, withSets bool) error {
	a, err := app.New(settings)
	if err != nil {
		return err
	}
	defer a.Close()

	if withSets {
		sets, err := a.API.ListSets(ctx)
		if err != nil {
			return fmt.Errorf("failed to list sets: %w", err)
		}
		for _, raw := range sets {
			if _, _, err := a.Store.StoreSet(ctx, raw); err != nil {
				logging.Warn("failed to store set", "error", err)
			}
		}
		fmt.Printf("Ingested %d sets\n", len(sets))
	}

	var cards []map[string]any
	switch {
	case setID != "":
		cards, err = a.API.GetCardsFromSet(ctx, setID, 0)
	case name != "":
		cards, err = a.API.SearchCardsByName(ctx, name)
	case pokedex > 0:
		cards, err = a.API.SearchCardsByPokedexNumber(ctx, pokedex)
	}
	if err != nil {
		return fmt.Errorf("card fetch failed: %w", err)
	}

	stored, duplicates := 0, 0
	for _, raw := range cards {
		_, isNew, err := a.Store.StoreCard(ctx, raw)
		if err != nil {
			logging.Warn("failed to store card", "error", err)
			continue
		}
		if isNew {
			stored++
		} else {
			duplicates++
		}
	}

	fmt.Printf("Ingested %d cards (%d new, %d duplicates)\n", len(cards), stored, duplicates)
	return nil
}
