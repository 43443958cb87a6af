package imageloader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokedextop/pokedextop-go/internal/events"
	"github.com/pokedextop/pokedextop-go/internal/httpclient"
	"github.com/pokedextop/pokedextop-go/internal/imagecache"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newTestLoader builds a loader over a real manager with the mock transport
// and an inert queue interval so tests drive the queue explicitly.
func newTestLoader(t *testing.T, opts Options) (*Loader, *imagecache.Manager) {
	t.Helper()
	client := httpclient.New(&httpclient.Config{Transport: http.DefaultTransport})
	manager, err := imagecache.New(t.TempDir(), client, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	opts.Client = client
	if opts.QueueInterval == 0 {
		opts.QueueInterval = time.Hour
	}
	l := New(manager, opts)
	t.Cleanup(l.Close)
	return l, manager
}

func TestLoadSpriteClosedWorld(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	spriteDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(spriteDir, "25.png"), testPNG(t, 32, 32), 0o644))

	l, _ := newTestLoader(t, Options{SpriteDir: spriteDir})

	// Bundled sprite resolves locally.
	res := l.LoadImage(context.Background(), ImageRequest{
		EntityID:    "25",
		ContentType: imagecache.ContentSprite,
		URL:         "https://sprites.example.com/25.png",
	})
	assert.Equal(t, SourceSprite, res.Source)
	assert.NotEmpty(t, res.Data)

	// Missing sprite is a placeholder, never a fetch.
	res = l.LoadImage(context.Background(), ImageRequest{
		EntityID:    "9999",
		ContentType: imagecache.ContentSprite,
		URL:         "https://sprites.example.com/9999.png",
	})
	assert.Equal(t, SourceMissing, res.Source)
	assert.Empty(t, httpmock.GetCallCountInfo())
}

func TestLoadImageDiskHitWarmsMemo(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/xy1-1.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewBytesResponder(http.StatusOK, testPNG(t, 60, 84)))

	l, manager := newTestLoader(t, Options{})

	_, ok := manager.CacheImage(context.Background(), url, "xy1-1", imagecache.ContentTCGCard, imagecache.QualityUI)
	require.True(t, ok)
	httpmock.ZeroCallCounters()

	req := ImageRequest{URL: url, EntityID: "xy1-1", ContentType: imagecache.ContentTCGCard, Size: 200}

	res := l.LoadImage(context.Background(), req)
	assert.Equal(t, SourceDisk, res.Source)
	assert.NotEmpty(t, res.Data)

	// Second identical request hits the memo, still no network.
	res = l.LoadImage(context.Background(), req)
	assert.Equal(t, SourceMemory, res.Source)
	assert.Zero(t, httpmock.GetCallCountInfo()["GET "+url])
}

func TestLoadImageNetworkFetchEnqueuesUICaching(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/xy1-2.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewBytesResponder(http.StatusOK, testPNG(t, 60, 84)))

	l, _ := newTestLoader(t, Options{})

	res := l.LoadImage(context.Background(), ImageRequest{
		URL: url, EntityID: "xy1-2", ContentType: imagecache.ContentTCGCard,
	})
	assert.Equal(t, SourceNetwork, res.Source)
	assert.NotEmpty(t, res.Data)

	// A fire-and-forget ui-tier job is pending.
	l.mu.Lock()
	require.Len(t, l.pending, 1)
	assert.Equal(t, imagecache.QualityUI, l.pending[0].quality)
	assert.Equal(t, "xy1-2", l.pending[0].entityID)
	l.mu.Unlock()
}

func TestLoadImageNonCardNeverFetches(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	l, _ := newTestLoader(t, Options{})

	res := l.LoadImage(context.Background(), ImageRequest{
		URL:         "https://images.example.com/artwork/25.png",
		EntityID:    "25",
		ContentType: imagecache.ContentArtwork,
	})
	assert.Equal(t, SourceUnavailable, res.Source)
	assert.Empty(t, httpmock.GetCallCountInfo())
}

func TestEnqueueDedupAndPriority(t *testing.T) {
	l, _ := newTestLoader(t, Options{})

	l.enqueue(cacheJob{entityID: "a", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityUI})
	l.enqueue(cacheJob{entityID: "b", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityUI})
	l.enqueue(cacheJob{entityID: "c", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityExportHigh, priority: 1})

	// Duplicate (entity, type, quality) is dropped.
	l.enqueue(cacheJob{entityID: "a", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityUI})

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Len(t, l.pending, 3)
	assert.Equal(t, "c", l.pending[0].entityID, "export job jumps ahead of ui jobs")
	assert.Equal(t, "a", l.pending[1].entityID)
	assert.Equal(t, "b", l.pending[2].entityID)
}

func TestCacheForExportSynchronousHit(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/xy1-3.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewBytesResponder(http.StatusOK, testPNG(t, 60, 84)))

	l, manager := newTestLoader(t, Options{})

	want, ok := manager.CacheImage(context.Background(), url, "xy1-3", imagecache.ContentTCGCard, imagecache.QualityExportHigh)
	require.True(t, ok)

	var got string
	l.CacheForExport(url, "xy1-3", imagecache.ContentTCGCard, imagecache.QualityExportHigh, func(path string) {
		got = path
	})
	assert.Equal(t, want, got)

	l.mu.Lock()
	assert.Empty(t, l.pending, "already-cached asset must not be enqueued")
	l.mu.Unlock()
}

func TestQueueProcessesJobAndPublishesEvent(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/xy1-4.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewBytesResponder(http.StatusOK, testPNG(t, 60, 84)))

	bus := events.NewBus()
	defer bus.Close()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	l, manager := newTestLoader(t, Options{Bus: bus})

	var callbackPath string
	l.CacheForExport(url, "xy1-4", imagecache.ContentTCGCard, imagecache.QualityExportHigh, func(path string) {
		callbackPath = path
	})

	l.processOne()

	assert.NotEmpty(t, callbackPath)
	cached, ok := manager.GetCachedPath("xy1-4", imagecache.ContentTCGCard, imagecache.QualityExportHigh)
	require.True(t, ok)
	assert.Equal(t, cached, callbackPath)

	select {
	case ev := <-ch:
		assert.Equal(t, "xy1-4", ev.EntityID)
		assert.Equal(t, string(imagecache.QualityExportHigh), ev.Quality)
		assert.Equal(t, callbackPath, ev.Path)
	case <-time.After(time.Second):
		t.Fatal("expected a CacheComplete event")
	}
}

func TestQueueJobFailureInvokesCallbackEmpty(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/gone.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewStringResponder(http.StatusNotFound, "gone"))

	l, _ := newTestLoader(t, Options{})

	called := false
	l.CacheForExport(url, "gone-1", imagecache.ContentTCGCard, imagecache.QualityExportHigh, func(path string) {
		called = true
		assert.Empty(t, path)
	})
	l.processOne()
	assert.True(t, called)
}

func TestCancelAllClearsQueue(t *testing.T) {
	l, _ := newTestLoader(t, Options{})

	l.enqueue(cacheJob{entityID: "a", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityUI})
	l.enqueue(cacheJob{entityID: "b", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityExportHigh, priority: 1})

	l.CancelAll()

	l.mu.Lock()
	assert.Empty(t, l.pending)
	l.mu.Unlock()

	// Loader stays usable after cancellation.
	l.enqueue(cacheJob{entityID: "c", contentType: imagecache.ContentTCGCard, quality: imagecache.QualityUI})
	assert.Equal(t, 1, l.Stats().PendingCacheJobs)
}

func TestClearMemoryCacheAndStats(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	const url = "https://images.example.com/cards/xy1-5.png"
	httpmock.RegisterResponder(http.MethodGet, url,
		httpmock.NewBytesResponder(http.StatusOK, testPNG(t, 60, 84)))

	l, _ := newTestLoader(t, Options{})

	res := l.LoadImage(context.Background(), ImageRequest{
		URL: url, EntityID: "xy1-5", ContentType: imagecache.ContentTCGCard,
	})
	require.Equal(t, SourceNetwork, res.Source)

	stats := l.Stats()
	assert.Equal(t, 1, stats.MemoryCacheSize)
	assert.Equal(t, 1, stats.PendingCacheJobs)

	l.ClearMemoryCache()
	assert.Zero(t, l.Stats().MemoryCacheSize)
}
