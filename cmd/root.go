package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cachecmd "github.com/pokedextop/pokedextop-go/cmd/cache"
	exportcmd "github.com/pokedextop/pokedextop-go/cmd/export"
	ingestcmd "github.com/pokedextop/pokedextop-go/cmd/ingest"
	"github.com/pokedextop/pokedextop-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pokedextop",
		Short: "PokéDextop collection core CLI",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	rootCmd.AddCommand(
		ingestcmd.Command(settings),
		cachecmd.Command(settings),
		exportcmd.Command(settings),
	)
	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Paths.CacheRoot, "cache-root", viper.GetString("paths.cacheroot"), "Root directory for the on-disk image cache")
	rootCmd.PersistentFlags().StringVar(&settings.Paths.DatabasePath, "database", viper.GetString("paths.databasepath"), "Path to the SQLite database file")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
