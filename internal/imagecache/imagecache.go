// Package imagecache implements the on-disk image cache: a quality-tiered
// content store on the filesystem plus a SQLite lookup index, fronted by a
// Manager that is the single authority over both.
package imagecache

import (
	"context"
	"crypto/md5" //nolint:gosec // used for short filename hashing, not security
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pokedextop/pokedextop-go/internal/httpclient"
	"github.com/pokedextop/pokedextop-go/internal/logging"
	"github.com/pokedextop/pokedextop-go/internal/observability/metrics"
)

// ContentType is the category of a cached asset.
type ContentType string

// Content types
const (
	ContentTCGCard ContentType = "tcg_card"
	ContentSprite  ContentType = "sprite"
	ContentArtwork ContentType = "artwork"
)

// Quality is one of the independent cached renditions of a source asset.
type Quality string

// Quality tiers
const (
	QualityOriginal     Quality = "original"
	QualityUI           Quality = "ui"
	QualityExportHigh   Quality = "export_high"
	QualityExportMedium Quality = "export_medium"
	QualityExportLow    Quality = "export_low"
)

// contentTypes lists all known content types, used to lay out the cache
// directory tree.
var contentTypes = []ContentType{ContentTCGCard, ContentSprite, ContentArtwork}

// qualityBuckets are the on-disk subdirectories. All export tiers share one
// bucket; the index row keeps the exact tier.
var qualityBuckets = []string{"original", "ui", "export"}

// CacheEntry is one row of the lookup index: one resolved asset per
// (entity, content type, quality tier).
type CacheEntry struct {
	ID           uint   `gorm:"primaryKey"`
	EntityID     string `gorm:"uniqueIndex:idx_cache_lookup;not null"`
	ContentType  string `gorm:"uniqueIndex:idx_cache_lookup;not null"`
	QualityLevel string `gorm:"uniqueIndex:idx_cache_lookup;not null"`
	OriginalURL  string `gorm:"not null"`
	CachedPath   string `gorm:"not null"`
	FileSize     int64
	ContentHash  string    // SHA-256 of the fetched bytes, before transformation
	CachedAt     time.Time `gorm:"index"`
	LastAccessed time.Time `gorm:"index"`
}

// TierStats holds per-tier cache accounting.
type TierStats struct {
	Count int64
	Size  int64
}

// CacheStats aggregates index accounting per content type and quality tier.
type CacheStats struct {
	ByType     map[string]map[string]TierStats
	TotalFiles int64
	TotalSize  int64
}

// Manager is the single source of truth mapping (entity, content type,
// quality) to durable bytes. All methods that touch the network or the
// filesystem degrade to "not cached" on failure instead of returning errors;
// callers must treat cache unavailability as a normal outcome.
type Manager struct {
	root         string
	db           *gorm.DB
	client       *httpclient.Client
	metrics      *metrics.ImageCacheMetrics
	logger       *slog.Logger
	fetchTimeout time.Duration
}

// indexFileName is the lookup index colocated with the cache root.
const indexFileName = "cache_index.db"

// defaultFetchTimeout bounds cache-miss downloads.
const defaultFetchTimeout = 30 * time.Second

// New creates a Manager rooted at the given directory, creating the
// directory tree and the lookup index as needed. client, m and logger may be
// nil; defaults apply.
func New(root string, client *httpclient.Client, m *metrics.ImageCacheMetrics, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("cache root must not be empty")
	}
	if logger == nil {
		logger = logging.ForService("imagecache")
	}
	if client == nil {
		client = httpclient.New(nil)
	}

	for _, ct := range contentTypes {
		for _, bucket := range qualityBuckets {
			dir := filepath.Join(root, string(ct), bucket)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
			}
		}
	}

	dsn := filepath.Join(root, indexFileName) + "?_journal_mode=WAL&_busy_timeout=30000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache index: %w", err)
	}

	return &Manager{
		root:         root,
		db:           db,
		client:       client,
		metrics:      m,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
	}, nil
}

// SetFetchTimeout overrides the bounded timeout applied to cache-miss
// downloads.
func (m *Manager) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		m.fetchTimeout = d
	}
}

// GetCachedPath returns the on-disk path for a cached asset, or ok=false when
// the tier is not cached. If the index row points at a file that no longer
// exists, the stale row is deleted and the lookup reports absent; the index
// self-heals rather than erroring. A hit refreshes last_accessed.
func (m *Manager) GetCachedPath(entityID string, contentType ContentType, quality Quality) (string, bool) {
	var entry CacheEntry
	err := m.db.Where("entity_id = ? AND content_type = ? AND quality_level = ?",
		entityID, string(contentType), string(quality)).First(&entry).Error
	if err != nil {
		if !errorsIsNotFound(err) {
			m.logger.Error("cache index lookup failed",
				"entity_id", entityID, "content_type", contentType, "quality", quality, "error", err)
		}
		return "", false
	}

	if _, statErr := os.Stat(entry.CachedPath); statErr != nil {
		// File is gone, forget the dangling index row.
		if delErr := m.db.Delete(&CacheEntry{}, entry.ID).Error; delErr != nil {
			m.logger.Error("failed to remove stale cache entry",
				"entity_id", entityID, "path", entry.CachedPath, "error", delErr)
		}
		return "", false
	}

	if err := m.db.Model(&CacheEntry{}).Where("id = ?", entry.ID).
		Update("last_accessed", time.Now()).Error; err != nil {
		m.logger.Error("failed to update last_accessed",
			"entity_id", entityID, "error", err)
	}
	if m.metrics != nil {
		m.metrics.IncrementCacheHits()
	}
	return entry.CachedPath, true
}

// CacheImage fetches and stores an image at the given quality tier, returning
// the cached path. Caching is idempotent: if the tier is already cached the
// existing path is returned without a network fetch. Any fetch or store
// failure is logged and reported as ok=false, never raised.
func (m *Manager) CacheImage(ctx context.Context, url, entityID string, contentType ContentType, quality Quality) (string, bool) {
	if url == "" || entityID == "" {
		return "", false
	}
	if existing, ok := m.GetCachedPath(entityID, contentType, quality); ok {
		return existing, true
	}
	if m.metrics != nil {
		m.metrics.IncrementCacheMisses()
	}

	data, declaredType, ok := m.fetch(ctx, url)
	if !ok {
		return "", false
	}

	// Hash the fetched bytes before any transformation; the hash records
	// provenance of the source asset, not the stored artifact.
	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	processed := processImageData(data, quality, m.logger)

	urlSum := md5.Sum([]byte(url)) //nolint:gosec // collision-resistant enough for a filename suffix
	filename := fmt.Sprintf("%s_%s%s", entityID, hex.EncodeToString(urlSum[:])[:8], fileExtension(url, declaredType))
	cachedPath := filepath.Join(m.cacheDir(contentType, quality), filename)

	if err := os.WriteFile(cachedPath, processed, 0o644); err != nil {
		m.logger.Error("failed to write cached image",
			"entity_id", entityID, "path", cachedPath, "error", err)
		return "", false
	}

	now := time.Now()
	entry := CacheEntry{
		EntityID:     entityID,
		ContentType:  string(contentType),
		QualityLevel: string(quality),
		OriginalURL:  url,
		CachedPath:   cachedPath,
		FileSize:     int64(len(processed)),
		ContentHash:  contentHash,
		CachedAt:     now,
		LastAccessed: now,
	}
	err := m.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entity_id"}, {Name: "content_type"}, {Name: "quality_level"}},
		UpdateAll: true,
	}).Create(&entry).Error
	if err != nil {
		m.logger.Error("failed to record cache entry",
			"entity_id", entityID, "path", cachedPath, "error", err)
		return "", false
	}

	m.logger.Debug("cached image",
		"entity_id", entityID, "content_type", contentType, "quality", quality,
		"size", len(processed), "path", cachedPath)
	return cachedPath, true
}

// fetch downloads url with a bounded timeout, returning the body bytes and
// the declared content type.
func (m *Manager) fetch(ctx context.Context, url string) (data []byte, contentType string, ok bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	start := time.Now()
	resp, err := m.client.Get(ctx, url)
	if err != nil {
		m.noteDownloadError("image fetch failed", url, err)
		return nil, "", false
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			m.logger.Debug("failed to close response body", "url", url, "error", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		m.noteDownloadError("image fetch returned non-OK status", url,
			fmt.Errorf("status %d", resp.StatusCode))
		return nil, "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		m.noteDownloadError("image fetch read failed", url, err)
		return nil, "", false
	}

	if m.metrics != nil {
		m.metrics.ObserveDownloadDuration(time.Since(start).Seconds())
		m.metrics.IncrementImageDownloads()
	}
	return body, resp.Header.Get("Content-Type"), true
}

func (m *Manager) noteDownloadError(msg, url string, err error) {
	m.logger.Warn(msg, "url", url, "error", err)
	if m.metrics != nil {
		m.metrics.IncrementDownloadErrors()
	}
}

// cacheDir returns the directory for a (content type, quality) pair. All
// export tiers share the export bucket.
func (m *Manager) cacheDir(contentType ContentType, quality Quality) string {
	bucket := "original"
	switch {
	case quality == QualityUI:
		bucket = "ui"
	case isExportQuality(quality):
		bucket = "export"
	}
	return filepath.Join(m.root, string(contentType), bucket)
}

func isExportQuality(q Quality) bool {
	switch q {
	case QualityExportHigh, QualityExportMedium, QualityExportLow:
		return true
	default:
		return false
	}
}

// CleanupOldCache removes every entry whose last access is older than the
// cutoff, regardless of tier or size. File removal is best-effort: a file
// that cannot be deleted is logged and skipped, its index row is still
// dropped.
func (m *Manager) CleanupOldCache(daysOld int) (filesRemoved int, bytesFreed int64) {
	cutoff := time.Now().AddDate(0, 0, -daysOld)

	var entries []CacheEntry
	if err := m.db.Where("last_accessed < ?", cutoff).Find(&entries).Error; err != nil {
		m.logger.Error("cleanup query failed", "error", err)
		return 0, 0
	}

	for i := range entries {
		if err := os.Remove(entries[i].CachedPath); err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("failed to remove cached file",
					"path", entries[i].CachedPath, "error", err)
			}
			continue
		}
		filesRemoved++
		bytesFreed += entries[i].FileSize
	}

	if err := m.db.Where("last_accessed < ?", cutoff).Delete(&CacheEntry{}).Error; err != nil {
		m.logger.Error("cleanup index delete failed", "error", err)
	}

	if m.metrics != nil {
		m.metrics.AddEvictedFiles(filesRemoved)
	}
	m.logger.Info("cache cleanup finished",
		"days_old", daysOld, "files_removed", filesRemoved, "bytes_freed", bytesFreed)
	return filesRemoved, bytesFreed
}

// ClearCache bulk-deletes cached assets filtered by zero, one or both
// dimensions. Empty strings mean no filter; unfiltered clears everything.
// Returns the number of index rows removed.
func (m *Manager) ClearCache(contentType, quality string) int {
	query := m.db.Model(&CacheEntry{})
	if contentType != "" {
		query = query.Where("content_type = ?", contentType)
	}
	if quality != "" {
		query = query.Where("quality_level = ?", quality)
	}

	var entries []CacheEntry
	if err := query.Find(&entries).Error; err != nil {
		m.logger.Error("clear cache query failed", "error", err)
		return 0
	}

	for i := range entries {
		if err := os.Remove(entries[i].CachedPath); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("failed to remove cached file",
				"path", entries[i].CachedPath, "error", err)
		}
	}

	del := m.db.Where("1 = 1")
	if contentType != "" {
		del = del.Where("content_type = ?", contentType)
	}
	if quality != "" {
		del = del.Where("quality_level = ?", quality)
	}
	if err := del.Delete(&CacheEntry{}).Error; err != nil {
		m.logger.Error("clear cache index delete failed", "error", err)
	}
	return len(entries)
}

// GetCacheStats returns per-tier counts and sizes plus totals, summed over
// all present index rows.
func (m *Manager) GetCacheStats() CacheStats {
	stats := CacheStats{ByType: make(map[string]map[string]TierStats)}

	var rows []struct {
		ContentType  string
		QualityLevel string
		Count        int64
		TotalSize    int64
	}
	err := m.db.Model(&CacheEntry{}).
		Select("content_type, quality_level, COUNT(*) as count, COALESCE(SUM(file_size), 0) as total_size").
		Group("content_type").Group("quality_level").
		Scan(&rows).Error
	if err != nil {
		m.logger.Error("cache stats query failed", "error", err)
		return stats
	}

	for _, row := range rows {
		byQuality, ok := stats.ByType[row.ContentType]
		if !ok {
			byQuality = make(map[string]TierStats)
			stats.ByType[row.ContentType] = byQuality
		}
		byQuality[row.QualityLevel] = TierStats{Count: row.Count, Size: row.TotalSize}
		stats.TotalFiles += row.Count
		stats.TotalSize += row.TotalSize
	}

	if m.metrics != nil {
		m.metrics.SetCacheSize(float64(stats.TotalSize))
	}
	return stats
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// Close releases the index database connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
