// Package export prepares and runs collection exports: batch-caching
// export-quality assets with placeholder tolerance, and serializing the
// collection to JSON/CSV with summary and size planning.
package export

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// Item is one collection entry to prepare for export. Entries backed by a
// TCG card cache the card image; the rest fall back to the species sprite.
type Item struct {
	PokemonID   int
	PokemonName string
	CardID      string
	CardName    string
	SetName     string
	ImageURL    string
	SpriteURL   string
	HasTCGCard  bool
}

// EntityID returns the cache key for the item: the card id when a card
// backs it, otherwise the stringified species id.
func (it *Item) EntityID() string {
	if it.HasTCGCard {
		return it.CardID
	}
	return strconv.Itoa(it.PokemonID)
}

func (it *Item) contentType() imagecache.ContentType {
	if it.HasTCGCard {
		return imagecache.ContentTCGCard
	}
	return imagecache.ContentSprite
}

func (it *Item) url() string {
	if it.HasTCGCard {
		return it.ImageURL
	}
	return it.SpriteURL
}

// PrepareResult reports a finished batch. The batch itself always succeeds;
// individual failures surface only as counts and absent paths so downstream
// composition substitutes placeholders instead of aborting.
type PrepareResult struct {
	Total     int
	Cached    int
	Failed    int
	Paths     map[string]string // entity id -> cached path, "" when failed
	FailedIDs []string
	Elapsed   time.Duration
}

// Preparer ensures every collection item has an export-quality cached asset
// before composition begins.
type Preparer struct {
	manager      *imagecache.Manager
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// perItemTimeout bounds one export-path fetch so a single unreachable asset
// cannot stall the whole preparation.
const perItemTimeout = 30 * time.Second

// NewPreparer creates a Preparer over the given cache manager.
func NewPreparer(manager *imagecache.Manager) *Preparer {
	return &Preparer{
		manager:      manager,
		logger:       logging.ForService("export"),
		fetchTimeout: perItemTimeout,
	}
}

// hiresSuffix marks the provider's high-resolution image naming convention.
const hiresSuffix = "_hires"

// fallbackURL derives the standard-resolution URL from a high-resolution
// one. Returns empty when no substitution applies.
func fallbackURL(url string) string {
	if !strings.Contains(url, hiresSuffix) {
		return ""
	}
	return strings.Replace(url, hiresSuffix, "", 1)
}

// PrepareCache caches every item at the requested export quality, strictly
// sequentially. Per item: existing cache hit, then fetch-and-cache, then a
// high-resolution-suffix-stripped fallback URL; items failing all three are
// counted and mapped to an absent path. progress may be nil.
func (p *Preparer) PrepareCache(ctx context.Context, items []Item, quality imagecache.Quality, progress func(done, total int)) PrepareResult {
	start := time.Now()
	result := PrepareResult{
		Total: len(items),
		Paths: make(map[string]string, len(items)),
	}

	for i := range items {
		item := &items[i]
		entityID := item.EntityID()
		path := p.prepareOne(ctx, item, quality)
		result.Paths[entityID] = path
		if path == "" {
			result.Failed++
			result.FailedIDs = append(result.FailedIDs, entityID)
		} else {
			result.Cached++
		}
		if progress != nil {
			progress(i+1, len(items))
		}
	}

	result.Elapsed = time.Since(start)
	p.logger.Info("export cache preparation finished",
		"total", result.Total, "cached", result.Cached, "failed", result.Failed,
		"quality", quality, "elapsed", result.Elapsed)
	return result
}

// prepareOne resolves one item's export-quality path, empty on failure.
func (p *Preparer) prepareOne(ctx context.Context, item *Item, quality imagecache.Quality) string {
	entityID := item.EntityID()
	contentType := item.contentType()

	if path, ok := p.manager.GetCachedPath(entityID, contentType, quality); ok {
		return path
	}

	url := item.url()
	if url == "" {
		p.logger.Debug("export item has no image url", "entity_id", entityID)
		return ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	path, ok := p.manager.CacheImage(fetchCtx, url, entityID, contentType, quality)
	cancel()
	if ok {
		return path
	}

	if fb := fallbackURL(url); fb != "" {
		p.logger.Debug("retrying with fallback url", "entity_id", entityID, "url", fb)
		fetchCtx, cancel = context.WithTimeout(ctx, p.fetchTimeout)
		path, ok = p.manager.CacheImage(fetchCtx, fb, entityID, contentType, quality)
		cancel()
		if ok {
			return path
		}
	}

	p.logger.Warn("export item could not be cached", "entity_id", entityID, "url", url)
	return ""
}

// VerifyCache reports per-item cache presence at the given quality without
// fetching anything.
func (p *Preparer) VerifyCache(items []Item, quality imagecache.Quality) map[string]bool {
	status := make(map[string]bool, len(items))
	for i := range items {
		item := &items[i]
		_, ok := p.manager.GetCachedPath(item.EntityID(), item.contentType(), quality)
		status[item.EntityID()] = ok
	}
	return status
}
