// Package metrics provides custom Prometheus metrics for the application
// components.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ImageCacheMetrics contains all Prometheus metrics related to the image
// cache manager and loader.
type ImageCacheMetrics struct {
	CacheSize        prometheus.Gauge
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	ImageDownloads   prometheus.Counter
	DownloadErrors   prometheus.Counter
	DownloadDuration prometheus.Histogram
	EvictedFiles     prometheus.Counter
}

// NewImageCacheMetrics creates a new instance of ImageCacheMetrics and
// registers the metrics with the given registry.
func NewImageCacheMetrics(registry *prometheus.Registry) (*ImageCacheMetrics, error) {
	m := &ImageCacheMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register image cache metrics: %w", err)
	}
	return m, nil
}

func (m *ImageCacheMetrics) initMetrics() {
	m.CacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "image_cache_size_bytes",
		Help: "Current size of the on-disk image cache in bytes.",
	})
	m.CacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_hits_total",
		Help: "Total number of cache hits.",
	})
	m.CacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_misses_total",
		Help: "Total number of cache misses.",
	})
	m.ImageDownloads = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_downloads_total",
		Help: "Total number of image downloads.",
	})
	m.DownloadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_download_errors_total",
		Help: "Total number of image download errors.",
	})
	m.DownloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "image_cache_download_duration_seconds",
		Help:    "Duration of image downloads in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
	m.EvictedFiles = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "image_cache_evicted_files_total",
		Help: "Total number of files removed by cache cleanup.",
	})
}

// Describe implements the prometheus.Collector interface.
func (m *ImageCacheMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.CacheSize.Describe(ch)
	m.CacheHits.Describe(ch)
	m.CacheMisses.Describe(ch)
	m.ImageDownloads.Describe(ch)
	m.DownloadErrors.Describe(ch)
	m.DownloadDuration.Describe(ch)
	m.EvictedFiles.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *ImageCacheMetrics) Collect(ch chan<- prometheus.Metric) {
	m.CacheSize.Collect(ch)
	m.CacheHits.Collect(ch)
	m.CacheMisses.Collect(ch)
	m.ImageDownloads.Collect(ch)
	m.DownloadErrors.Collect(ch)
	m.DownloadDuration.Collect(ch)
	m.EvictedFiles.Collect(ch)
}

// IncrementCacheHits increments the cache hit counter.
func (m *ImageCacheMetrics) IncrementCacheHits() {
	m.CacheHits.Inc()
}

// IncrementCacheMisses increments the cache miss counter.
func (m *ImageCacheMetrics) IncrementCacheMisses() {
	m.CacheMisses.Inc()
}

// IncrementImageDownloads increments the download counter.
func (m *ImageCacheMetrics) IncrementImageDownloads() {
	m.ImageDownloads.Inc()
}

// IncrementDownloadErrors increments the download error counter.
func (m *ImageCacheMetrics) IncrementDownloadErrors() {
	m.DownloadErrors.Inc()
}

// ObserveDownloadDuration records the duration of an image download.
func (m *ImageCacheMetrics) ObserveDownloadDuration(seconds float64) {
	m.DownloadDuration.Observe(seconds)
}

// SetCacheSize sets the current cache size gauge.
func (m *ImageCacheMetrics) SetCacheSize(bytes float64) {
	m.CacheSize.Set(bytes)
}

// AddEvictedFiles records files removed by cleanup.
func (m *ImageCacheMetrics) AddEvictedFiles(n int) {
	m.EvictedFiles.Add(float64(n))
}
