package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pokedextop/pokedextop-go/internal/datastore"
	"github.com/pokedextop/pokedextop-go/internal/errors"
)

// Format is a supported export output format.
type Format string

// Export formats
const (
	FormatPNG  Format = "png"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Quality is the export rendering quality, mapped onto the export_* cache
// tiers.
type Quality string

// Export qualities
const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// Config controls one export run.
type Config struct {
	Title            string
	IncludePokedex   bool
	IncludeSetLabel  bool
	IncludeArtist    bool
	CardsPerRow      int
	Quality          Quality
	GenerationFilter int // 0 = all generations
	Format           Format
}

// DefaultConfig returns the standard export configuration.
func DefaultConfig() Config {
	return Config{
		Title:           "My Pokémon Collection",
		IncludePokedex:  true,
		IncludeSetLabel: true,
		CardsPerRow:     4,
		Quality:         QualityHigh,
		Format:          FormatPNG,
	}
}

// Validate clamps a config into supported bounds rather than rejecting it.
func (c Config) Validate() Config {
	if c.Title == "" {
		c.Title = DefaultConfig().Title
	}
	if c.CardsPerRow < 2 {
		c.CardsPerRow = 2
	} else if c.CardsPerRow > 8 {
		c.CardsPerRow = 8
	}
	switch c.Quality {
	case QualityHigh, QualityMedium, QualityLow:
	default:
		c.Quality = QualityHigh
	}
	switch c.Format {
	case FormatPNG, FormatJSON, FormatCSV:
	default:
		c.Format = FormatPNG
	}
	return c
}

// CacheQuality maps the export quality onto its cache tier name.
func (c Config) CacheQuality() string {
	return "export_" + string(c.Quality)
}

// GenerationCount is one generation's share of the collection.
type GenerationCount struct {
	Generation int
	Name       string
	CardCount  int
}

// Summary describes the collection for export planning.
type Summary struct {
	TotalCards    int
	Generations   int
	UniquePokemon int
	UniqueSets    int
	Breakdown     []GenerationCount
	HasContent    bool
}

// SizeEstimate predicts the composed image's dimensions and file size.
type SizeEstimate struct {
	FileSizeMB  float64
	ImageWidth  int
	ImageHeight int
	GridColumns int
	GridRows    int
	CardWidth   int
	CardHeight  int
	TotalCards  int
	Warnings    []string
}

// HistoryRecord is one completed export.
type HistoryRecord struct {
	ID         string
	FilePath   string
	Format     Format
	ExportedAt time.Time
	FileSize   int64
}

// Exporter orchestrates collection exports over the tiered store.
type Exporter struct {
	store *datastore.Store

	mu      sync.Mutex
	history []HistoryRecord
}

// NewExporter creates an Exporter over the store.
func NewExporter(store *datastore.Store) *Exporter {
	return &Exporter{store: store}
}

// Summary aggregates the user's collection, optionally filtered to one
// generation (0 = all).
func (e *Exporter) Summary(generation int) (Summary, error) {
	var row struct {
		TotalCards    int
		Generations   int
		UniquePokemon int
		UniqueSets    int
	}
	query := e.store.DB().Table("gold_user_collections AS uc").
		Select(`COUNT(*) AS total_cards,
			COUNT(DISTINCT p.generation) AS generations,
			COUNT(DISTINCT p.pokemon_id) AS unique_pokemon,
			COUNT(DISTINCT c.set_id) AS unique_sets`).
		Joins("JOIN silver_pokemon_master p ON uc.pokemon_id = p.pokemon_id").
		Joins("JOIN silver_tcg_cards c ON uc.card_id = c.card_id")
	if generation > 0 {
		query = query.Where("p.generation = ?", generation)
	}
	if err := query.Scan(&row).Error; err != nil {
		return Summary{}, errors.New(err).
			Component("export").Category(errors.CategoryDatabase).Build()
	}

	var breakdown []GenerationCount
	genQuery := e.store.DB().Table("gold_user_collections AS uc").
		Select("p.generation, g.name, COUNT(*) AS card_count").
		Joins("JOIN silver_pokemon_master p ON uc.pokemon_id = p.pokemon_id").
		Joins("JOIN gold_pokemon_generations g ON p.generation = g.generation").
		Group("p.generation").Group("g.name").
		Order("p.generation")
	if generation > 0 {
		genQuery = genQuery.Where("p.generation = ?", generation)
	}
	if err := genQuery.Scan(&breakdown).Error; err != nil {
		return Summary{}, errors.New(err).
			Component("export").Category(errors.CategoryDatabase).Build()
	}

	return Summary{
		TotalCards:    row.TotalCards,
		Generations:   row.Generations,
		UniquePokemon: row.UniquePokemon,
		UniqueSets:    row.UniqueSets,
		Breakdown:     breakdown,
		HasContent:    row.TotalCards > 0,
	}, nil
}

// cardLayouts maps export quality to composed card dimensions and spacing.
var cardLayouts = map[Quality]struct {
	width, height, spacing int
}{
	QualityHigh:   {245, 342, 20},
	QualityMedium: {180, 252, 15},
	QualityLow:    {120, 168, 10},
}

// EstimateSize predicts the composed export's dimensions and rough file
// size, with warnings for oversized outputs.
func (e *Exporter) EstimateSize(cfg Config) (SizeEstimate, error) {
	cfg = cfg.Validate()
	summary, err := e.Summary(cfg.GenerationFilter)
	if err != nil {
		return SizeEstimate{}, err
	}
	if summary.TotalCards == 0 {
		return SizeEstimate{Warnings: []string{"No cards in collection"}}, nil
	}

	layout := cardLayouts[cfg.Quality]
	rows := (summary.TotalCards + cfg.CardsPerRow - 1) / cfg.CardsPerRow

	const (
		headerHeight = 80
		footerHeight = 60
	)
	labelHeight := 0
	if cfg.IncludePokedex || cfg.IncludeSetLabel || cfg.IncludeArtist {
		labelHeight = 60
	}

	width := cfg.CardsPerRow*layout.width + (cfg.CardsPerRow+1)*layout.spacing
	height := headerHeight + rows*(layout.height+labelHeight+layout.spacing) + layout.spacing + footerHeight

	// 4 bytes per pixel, RGBA
	sizeMB := float64(width*height*4) / (1024 * 1024)

	var warnings []string
	if width > 10000 || height > 10000 {
		warnings = append(warnings, "Very large image dimensions - may cause memory issues")
	}
	if sizeMB > 100 {
		warnings = append(warnings, fmt.Sprintf("Large file size estimated: %.1fMB", sizeMB))
	}
	if summary.TotalCards > 500 {
		warnings = append(warnings, "Large collection - export may take several minutes")
	}

	return SizeEstimate{
		FileSizeMB:  sizeMB,
		ImageWidth:  width,
		ImageHeight: height,
		GridColumns: cfg.CardsPerRow,
		GridRows:    rows,
		CardWidth:   layout.width,
		CardHeight:  layout.height,
		TotalCards:  summary.TotalCards,
		Warnings:    warnings,
	}, nil
}

// Filename builds a safe export filename from the title, generation filter
// and a timestamp.
func (e *Exporter) Filename(cfg Config) string {
	cfg = cfg.Validate()

	var b strings.Builder
	for _, r := range cfg.Title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	safe := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_"))
	if safe == "" {
		safe = "collection"
	}

	genSuffix := ""
	if cfg.GenerationFilter > 0 {
		genSuffix = "_gen" + strconv.Itoa(cfg.GenerationFilter)
	}
	timestamp := time.Now().Format("20060102_150405")
	return fmt.Sprintf("%s%s_%s.%s", safe, genSuffix, timestamp, cfg.Format)
}

// CardRecord is one collection entry serialized for JSON/CSV export.
type CardRecord struct {
	PokemonID   int    `json:"pokemon_id"`
	CardID      string `json:"card_id"`
	PokemonName string `json:"pokemon_name"`
	CardName    string `json:"card_name"`
	SetName     string `json:"set_name"`
	Artist      string `json:"artist"`
	Rarity      string `json:"rarity"`
	ImageURL    string `json:"image_url_large"`
	Generation  int    `json:"generation"`
	Supertype   string `json:"supertype"`
	Types       string `json:"types"`
	HP          string `json:"hp"`
	Number      string `json:"number"`
	Notes       string `json:"notes"`
}

// CollectionData loads the collection rows for export, ordered by species.
func (e *Exporter) CollectionData(generation int) ([]CardRecord, error) {
	var rows []struct {
		PokemonID   int
		CardID      string
		PokemonName string
		CardName    string
		SetName     string
		Artist      string
		Rarity      string
		ImageURL    string
		Generation  int
		Supertype   string
		Types       string
		HP          string
		Number      string
		Notes       string
	}
	query := e.store.DB().Table("gold_user_collections AS uc").
		Select(`uc.pokemon_id, uc.card_id, p.name AS pokemon_name,
			c.name AS card_name, c.set_name, c.artist, c.rarity,
			c.image_url_large AS image_url, p.generation,
			c.supertype, c.types, c.hp, c.number, uc.notes`).
		Joins("JOIN silver_pokemon_master p ON uc.pokemon_id = p.pokemon_id").
		Joins("JOIN silver_tcg_cards c ON uc.card_id = c.card_id").
		Order("p.pokemon_id")
	if generation > 0 {
		query = query.Where("p.generation = ?", generation)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, errors.New(err).
			Component("export").Category(errors.CategoryDatabase).Build()
	}

	records := make([]CardRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, CardRecord(r))
	}
	return records, nil
}

// ExportJSON writes the collection, its summary and the config to filePath.
func (e *Exporter) ExportJSON(cfg Config, filePath string) error {
	cfg = cfg.Validate()
	records, err := e.CollectionData(cfg.GenerationFilter)
	if err != nil {
		return err
	}
	summary, err := e.Summary(cfg.GenerationFilter)
	if err != nil {
		return err
	}

	payload := struct {
		Config     Config       `json:"export_config"`
		Summary    Summary      `json:"collection_summary"`
		Cards      []CardRecord `json:"cards"`
		ExportedAt time.Time    `json:"exported_at"`
	}{
		Config:     cfg,
		Summary:    summary,
		Cards:      records,
		ExportedAt: time.Now(),
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize export: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return errors.New(err).
			Component("export").Category(errors.CategoryFileIO).
			FileContext(filePath, int64(len(data))).Build()
	}

	e.recordExport(filePath, FormatJSON)
	return nil
}

// csvHeader lists CardRecord fields in stable column order.
var csvHeader = []string{
	"pokemon_id", "card_id", "pokemon_name", "card_name", "set_name",
	"artist", "rarity", "image_url_large", "generation", "supertype",
	"types", "hp", "number", "notes",
}

// ExportCSV writes the collection rows to filePath.
func (e *Exporter) ExportCSV(cfg Config, filePath string) error {
	cfg = cfg.Validate()
	records, err := e.CollectionData(cfg.GenerationFilter)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.Newf("collection is empty").
			Component("export").Category(errors.CategoryValidation).Build()
	}

	f, err := os.Create(filePath)
	if err != nil {
		return errors.New(err).
			Component("export").Category(errors.CategoryFileIO).
			Context("file_path", filePath).Build()
	}
	defer f.Close() //nolint:errcheck // flushed and checked below

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range records {
		r := &records[i]
		row := []string{
			strconv.Itoa(r.PokemonID), r.CardID, r.PokemonName, r.CardName,
			r.SetName, r.Artist, r.Rarity, r.ImageURL,
			strconv.Itoa(r.Generation), r.Supertype, r.Types, r.HP,
			r.Number, r.Notes,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}

	e.recordExport(filePath, FormatCSV)
	return nil
}

// recordExport appends a history record for a completed export.
func (e *Exporter) recordExport(filePath string, format Format) {
	size := int64(0)
	if info, err := os.Stat(filePath); err == nil {
		size = info.Size()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, HistoryRecord{
		ID:         uuid.New().String(),
		FilePath:   filePath,
		Format:     format,
		ExportedAt: time.Now(),
		FileSize:   size,
	})
}

// History returns completed exports, newest first.
func (e *Exporter) History() []HistoryRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]HistoryRecord, len(e.history))
	copy(out, e.history)
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExportedAt.After(out[j].ExportedAt)
	})
	return out
}
