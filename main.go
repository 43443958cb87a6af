package main

import (
	"os"

	"github.com/pokedextop/pokedextop-go/cmd"
	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

func main() {
	logging.Init()

	settings := conf.Setting()

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}
