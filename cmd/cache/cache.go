// Package cache implements the cache subcommand group: stats, cleanup and
// clear operations against the on-disk image cache.
package cache

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// Command creates the cache command group.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the on-disk image cache",
	}
	cmd.AddCommand(
		statsCommand(settings),
		cleanupCommand(settings),
		clearCommand(settings),
	)
	return cmd
}

// withManager opens the cache manager, runs fn and closes it.
func withManager(settings *conf.Settings, fn func(m *imagecache.Manager) error) error {
	m, err := imagecache.New(settings.Paths.CacheRoot, nil, nil, logging.ForService("imagecache"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			logging.Warn("failed to close image cache", "error", cerr)
		}
	}()
	return fn(m)
}

func statsCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-tier cache counts and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(settings, func(m *imagecache.Manager) error {
				stats := m.GetCacheStats()

				contentTypes := make([]string, 0, len(stats.ByType))
				for ct := range stats.ByType {
					contentTypes = append(contentTypes, ct)
				}
				sort.Strings(contentTypes)

				for _, ct := range contentTypes {
					fmt.Printf("%s:\n", ct)
					qualities := make([]string, 0, len(stats.ByType[ct]))
					for q := range stats.ByType[ct] {
						qualities = append(qualities, q)
					}
					sort.Strings(qualities)
					for _, q := range qualities {
						tier := stats.ByType[ct][q]
						fmt.Printf("  %-14s %6d files  %s\n", q, tier.Count, formatBytes(tier.Size))
					}
				}
				fmt.Printf("total: %d files, %s\n", stats.TotalFiles, formatBytes(stats.TotalSize))
				return nil
			})
		},
	}
}

func cleanupCommand(settings *conf.Settings) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Evict cache entries not accessed within the age threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				days = settings.Cache.CleanupDays
			}
			return withManager(settings, func(m *imagecache.Manager) error {
				removed, freed := m.CleanupOldCache(days)
				fmt.Printf("Removed %d files, freed %s\n", removed, formatBytes(freed))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (defaults to configuration)")
	return cmd
}

func clearCommand(settings *conf.Settings) *cobra.Command {
	var (
		contentType string
		quality     string
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached assets, optionally filtered by content type and quality",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(settings, func(m *imagecache.Manager) error {
				removed := m.ClearCache(contentType, quality)
				fmt.Printf("Cleared %d cache entries\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "type", "", "Content type filter (tcg_card, sprite, artwork)")
	cmd.Flags().StringVar(&quality, "quality", "", "Quality tier filter (original, ui, export_high, export_medium, export_low)")
	return cmd
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
