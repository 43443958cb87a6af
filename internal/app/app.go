// Package app wires the core subsystems together for the CLI and any future
// frontend: configuration, cache manager, tiered store, provider client,
// loader and exporter share one construction path here.
package app

import (
	"fmt"
	"time"

	"github.com/pokedextop/pokedextop-go/internal/conf"
	"github.com/pokedextop/pokedextop-go/internal/datastore"
	"github.com/pokedextop/pokedextop-go/internal/events"
	"github.com/pokedextop/pokedextop-go/internal/export"
	"github.com/pokedextop/pokedextop-go/internal/httpclient"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/imageloader"
	"github.com/pokedextop/pokedextop-go/internal/logging"
	"github.com/pokedextop/pokedextop-go/internal/tcgapi"
)

// App owns the wired core subsystems. Close releases them in reverse order.
type App struct {
	Settings *conf.Settings
	HTTP     *httpclient.Client
	Cache    *imagecache.Manager
	Store    *datastore.Store
	API      *tcgapi.Client
	Loader   *imageloader.Loader
	Preparer *export.Preparer
	Exporter *export.Exporter
	Bus      *events.Bus
}

// New builds the full application from settings.
func New(settings *conf.Settings) (*App, error) {
	if settings == nil {
		settings = conf.Setting()
	}

	httpClient := httpclient.New(nil)

	cache, err := imagecache.New(settings.Paths.CacheRoot, httpClient, nil, logging.ForService("imagecache"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image cache: %w", err)
	}
	if settings.Cache.FetchTimeoutSeconds > 0 {
		cache.SetFetchTimeout(time.Duration(settings.Cache.FetchTimeoutSeconds) * time.Second)
	}

	store, err := datastore.Open(settings.Paths.DatabasePath)
	if err != nil {
		cache.Close() //nolint:errcheck // best-effort teardown on construction failure
		return nil, fmt.Errorf("failed to open data store: %w", err)
	}
	store.SetCacheManager(cache)

	bus := events.NewBus()
	loader := imageloader.New(cache, imageloader.Options{
		SpriteDir:     settings.Paths.SpriteDir,
		QueueInterval: time.Duration(settings.Loader.QueueIntervalMs) * time.Millisecond,
		Client:        httpClient,
		Bus:           bus,
	})

	return &App{
		Settings: settings,
		HTTP:     httpClient,
		Cache:    cache,
		Store:    store,
		API:      tcgapi.New(&settings.API, httpClient),
		Loader:   loader,
		Preparer: export.NewPreparer(cache),
		Exporter: export.NewExporter(store),
		Bus:      bus,
	}, nil
}

// Close shuts everything down. Safe to call once.
func (a *App) Close() {
	a.Loader.Close()
	a.Bus.Close()
	if err := a.Store.Close(); err != nil {
		logging.Warn("failed to close data store", "error", err)
	}
	if err := a.Cache.Close(); err != nil {
		logging.Warn("failed to close image cache", "error", err)
	}
	a.HTTP.Close()
}
