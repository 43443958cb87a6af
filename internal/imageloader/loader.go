// Package imageloader implements the dual-pipeline image loader: fast
// display-side loads through an in-process memo and the ui disk tier, and a
// background queue that persists ui and export renditions without blocking
// the caller.
package imageloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/pokedextop/pokedextop-go/internal/events"
	"github.com/pokedextop/pokedextop-go/internal/httpclient"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
	"github.com/pokedextop/pokedextop-go/internal/logging"
)

// Source tells the caller which pipeline stage satisfied a load.
type Source string

// Load result sources
const (
	SourceSprite      Source = "sprite"      // bundled local sprite asset
	SourceMemory      Source = "memory"      // in-process memo
	SourceDisk        Source = "disk"        // ui-tier disk cache
	SourceNetwork     Source = "network"     // fetched over the network
	SourceMissing     Source = "missing"     // sprite absent, closed-world policy
	SourceUnavailable Source = "unavailable" // no pipeline may fetch this
)

// ImageRequest describes one display-side load.
type ImageRequest struct {
	URL         string
	EntityID    string
	ContentType imagecache.ContentType
	Size        int // requested display size, part of the memo key
}

// LoadResult carries the resolved bytes or a placeholder source. Data is nil
// for placeholder results.
type LoadResult struct {
	Data   []byte
	Path   string // set when resolved from disk or a bundled sprite
	Source Source
}

// cacheJob is one pending background caching unit.
type cacheJob struct {
	url         string
	entityID    string
	contentType imagecache.ContentType
	quality     imagecache.Quality
	priority    int // export jobs outrank ui jobs
	callback    func(path string)
}

// Loader routes display requests across the memo, the ui disk tier and the
// network, and drains a deduplicated background caching queue one job per
// tick.
type Loader struct {
	manager   *imagecache.Manager
	client    *httpclient.Client
	bus       *events.Bus
	spriteDir string
	logger    *slog.Logger

	memo *gocache.Cache

	mu      sync.Mutex
	pending []cacheJob

	fetchMu     sync.Mutex
	fetchCtx    context.Context
	fetchCancel context.CancelFunc

	interval time.Duration
	quitChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

const (
	defaultQueueInterval = time.Second
	memoExpiration       = 30 * time.Minute
	memoCleanupInterval  = 10 * time.Minute
	uiFetchTimeout       = 30 * time.Second
)

// Options configures a Loader. Zero values fall back to defaults.
type Options struct {
	SpriteDir     string
	QueueInterval time.Duration
	Client        *httpclient.Client
	Bus           *events.Bus
}

// New creates a Loader and starts its background queue worker.
func New(manager *imagecache.Manager, opts Options) *Loader {
	interval := opts.QueueInterval
	if interval <= 0 {
		interval = defaultQueueInterval
	}
	client := opts.Client
	if client == nil {
		client = httpclient.New(nil)
	}

	fetchCtx, fetchCancel := context.WithCancel(context.Background())
	l := &Loader{
		manager:     manager,
		client:      client,
		bus:         opts.Bus,
		spriteDir:   opts.SpriteDir,
		logger:      logging.ForService("imageloader"),
		memo:        gocache.New(memoExpiration, memoCleanupInterval),
		fetchCtx:    fetchCtx,
		fetchCancel: fetchCancel,
		interval:    interval,
		quitChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}
	go l.runQueue()
	return l
}

// memoKey keys the in-process memo on (url, size) so distinct display sizes
// of the same asset memoize independently.
func memoKey(url string, size int) string {
	return fmt.Sprintf("%s_%d", url, size)
}

// LoadImage resolves one display request.
//
// Sprites are closed-world: the bundled asset directory is the only source,
// a missing sprite is a Missing placeholder and the network is never
// contacted. Other content falls through memo, ui disk tier, then network —
// but only tcg_card content may fetch; everything else degrades to an
// Unavailable placeholder. A network hit is memoized immediately and a
// fire-and-forget ui-tier caching job is enqueued.
func (l *Loader) LoadImage(ctx context.Context, req ImageRequest) LoadResult {
	if req.ContentType == imagecache.ContentSprite {
		return l.loadSprite(req)
	}

	if req.URL == "" {
		return LoadResult{Source: SourceMissing}
	}

	key := memoKey(req.URL, req.Size)
	if cached, ok := l.memo.Get(key); ok {
		return LoadResult{Data: cached.([]byte), Source: SourceMemory}
	}

	if req.EntityID != "" && l.manager != nil {
		if path, ok := l.manager.GetCachedPath(req.EntityID, req.ContentType, imagecache.QualityUI); ok {
			data, err := os.ReadFile(path)
			if err == nil {
				l.memo.SetDefault(key, data)
				return LoadResult{Data: data, Path: path, Source: SourceDisk}
			}
			l.logger.Warn("failed to read cached file", "path", path, "error", err)
		}
	}

	if req.ContentType != imagecache.ContentTCGCard {
		return LoadResult{Source: SourceUnavailable}
	}

	data, ok := l.fetchForUI(ctx, req.URL)
	if !ok {
		return LoadResult{Source: SourceUnavailable}
	}
	l.memo.SetDefault(key, data)

	if req.EntityID != "" {
		l.enqueue(cacheJob{
			url:         req.URL,
			entityID:    req.EntityID,
			contentType: req.ContentType,
			quality:     imagecache.QualityUI,
		})
	}
	return LoadResult{Data: data, Source: SourceNetwork}
}

// loadSprite resolves a sprite from the bundled asset directory only.
func (l *Loader) loadSprite(req ImageRequest) LoadResult {
	if l.spriteDir == "" || req.EntityID == "" {
		return LoadResult{Source: SourceMissing}
	}
	path := filepath.Join(l.spriteDir, req.EntityID+".png")
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadResult{Source: SourceMissing}
	}
	return LoadResult{Data: data, Path: path, Source: SourceSprite}
}

// fetchForUI downloads an asset for immediate display. The fetch is bound to
// the loader's cancellable context so CancelAll aborts it.
func (l *Loader) fetchForUI(ctx context.Context, url string) ([]byte, bool) {
	l.fetchMu.Lock()
	base := l.fetchCtx
	l.fetchMu.Unlock()

	if ctx == nil {
		ctx = base
	} else {
		var cancel context.CancelFunc
		ctx, cancel = mergeCancel(ctx, base)
		defer cancel()
	}
	ctx, cancel := context.WithTimeout(ctx, uiFetchTimeout)
	defer cancel()

	resp, err := l.client.Get(ctx, url)
	if err != nil {
		l.logger.Warn("ui image fetch failed", "url", url, "error", err)
		return nil, false
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			l.logger.Debug("failed to close response body", "url", url, "error", cerr)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		l.logger.Warn("ui image fetch returned non-OK status", "url", url, "status", resp.StatusCode)
		return nil, false
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		l.logger.Warn("ui image read failed", "url", url, "error", err)
		return nil, false
	}
	return data, true
}

// mergeCancel derives a context from primary that is also canceled when
// secondary is canceled.
func mergeCancel(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(primary)
	stop := context.AfterFunc(secondary, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// CacheForExport ensures an export-tier rendition exists. Already-cached
// assets resolve synchronously through fn; otherwise a high-priority
// background job is enqueued and fn is invoked when the job resolves, with
// an empty path on failure. fn may be nil.
func (l *Loader) CacheForExport(url, entityID string, contentType imagecache.ContentType, quality imagecache.Quality, fn func(path string)) {
	if l.manager == nil {
		if fn != nil {
			fn("")
		}
		return
	}
	if path, ok := l.manager.GetCachedPath(entityID, contentType, quality); ok {
		if fn != nil {
			fn(path)
		}
		return
	}
	l.enqueue(cacheJob{
		url:         url,
		entityID:    entityID,
		contentType: contentType,
		quality:     quality,
		priority:    1,
		callback:    fn,
	})
}

// enqueue adds a job unless an identical (entity, content type, quality) job
// is already pending. Export jobs are inserted ahead of ui jobs.
func (l *Loader) enqueue(job cacheJob) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.pending {
		if l.pending[i].entityID == job.entityID &&
			l.pending[i].contentType == job.contentType &&
			l.pending[i].quality == job.quality {
			return
		}
	}

	if job.priority > 0 {
		// Insert after the last queued job of equal or higher priority so
		// ordering stays FIFO within a priority class.
		insert := len(l.pending)
		for i := range l.pending {
			if l.pending[i].priority < job.priority {
				insert = i
				break
			}
		}
		l.pending = append(l.pending, cacheJob{})
		copy(l.pending[insert+1:], l.pending[insert:])
		l.pending[insert] = job
		return
	}
	l.pending = append(l.pending, job)
}

// runQueue drains the background queue, one job per tick.
func (l *Loader) runQueue() {
	defer close(l.doneChan)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.quitChan:
			return
		case <-ticker.C:
			l.processOne()
		}
	}
}

// processOne pops and executes the highest-priority pending job.
func (l *Loader) processOne() {
	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return
	}
	job := l.pending[0]
	l.pending = l.pending[1:]
	l.mu.Unlock()

	l.fetchMu.Lock()
	ctx := l.fetchCtx
	l.fetchMu.Unlock()

	path, ok := l.manager.CacheImage(ctx, job.url, job.entityID, job.contentType, job.quality)
	if !ok {
		l.logger.Debug("background cache job failed",
			"entity_id", job.entityID, "quality", job.quality, "url", job.url)
		if job.callback != nil {
			job.callback("")
		}
		return
	}

	if job.callback != nil {
		job.callback(path)
	}
	if l.bus != nil {
		l.bus.Publish(events.CacheComplete{
			EntityID:    job.entityID,
			ContentType: string(job.contentType),
			Quality:     string(job.quality),
			Path:        path,
		})
	}
}

// CancelAll aborts in-flight fetches and clears the background queue.
// Callbacks of cleared jobs are not invoked.
func (l *Loader) CancelAll() {
	l.fetchMu.Lock()
	l.fetchCancel()
	l.fetchCtx, l.fetchCancel = context.WithCancel(context.Background())
	l.fetchMu.Unlock()

	l.mu.Lock()
	l.pending = nil
	l.mu.Unlock()
}

// ClearMemoryCache drops every memoized asset.
func (l *Loader) ClearMemoryCache() {
	l.memo.Flush()
}

// Stats reports loader-side accounting plus the disk cache's stats.
type Stats struct {
	MemoryCacheSize  int
	PendingCacheJobs int
	Disk             imagecache.CacheStats
}

// Stats returns a snapshot of loader and disk cache accounting.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	pending := len(l.pending)
	l.mu.Unlock()

	s := Stats{
		MemoryCacheSize:  l.memo.ItemCount(),
		PendingCacheJobs: pending,
	}
	if l.manager != nil {
		s.Disk = l.manager.GetCacheStats()
	}
	return s
}

// Close stops the background worker and aborts outstanding fetches.
func (l *Loader) Close() {
	l.stopOnce.Do(func() {
		close(l.quitChan)
		<-l.doneChan
		l.fetchMu.Lock()
		l.fetchCancel()
		l.fetchMu.Unlock()
	})
}
