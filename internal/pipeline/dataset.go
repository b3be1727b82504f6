package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/dvloznov/purchase-analytics/internal/logger"
	"github.com/google/uuid"
)

// ErrNoSnapshot is returned when reports are requested before the first rebuild.
var ErrNoSnapshot = errors.New("clean set has not been built")

// Snapshot is one fully built, immutable generation of the clean set and its reference maps.
type Snapshot struct {
	BuildID    string
	BuiltAt    time.Time
	Clean      []domain.CleanTransaction
	Categories CategoryMap
	Brands     BrandMap

	CategoryStats MapStats
	BrandStats    MapStats

	// RejectedRows counts input lines dropped at parse time. Only known when
	// the snapshot was built straight from parsed files.
	RejectedRows int
}

// SnapshotSource hands out the current snapshot. Implementations must never
// return a partially built snapshot.
type SnapshotSource interface {
	Current() (*Snapshot, error)
}

// Dataset holds the current snapshot and swaps it atomically on rebuild.
// It is safe for concurrent use.
type Dataset struct {
	settings Settings
	current  atomic.Pointer[Snapshot]
}

// NewDataset creates an empty dataset.
func NewDataset(settings Settings) *Dataset {
	return &Dataset{settings: settings}
}

// Settings returns the settings the dataset was built with.
func (d *Dataset) Settings() Settings {
	return d.settings
}

// Current implements SnapshotSource.
func (d *Dataset) Current() (*Snapshot, error) {
	s := d.current.Load()
	if s == nil {
		return nil, ErrNoSnapshot
	}
	return s, nil
}

// Rebuild builds reference maps and the clean set from the complete raw set,
// then publishes them as the new snapshot. On error the previous snapshot stays in place.
func (d *Dataset) Rebuild(ctx context.Context, raw []domain.RawTransaction) (*Snapshot, error) {
	snap, err := d.Build(ctx, raw)
	if err != nil {
		return nil, err
	}
	d.Publish(ctx, snap)
	return snap, nil
}

// Build prepares a snapshot off to the side. Nothing is visible to readers
// until it is passed to Publish.
func (d *Dataset) Build(ctx context.Context, raw []domain.RawTransaction) (*Snapshot, error) {
	log := logger.FromContext(ctx)
	started := time.Now()

	snap, err := BuildSnapshot(raw, d.settings)
	if err != nil {
		return nil, fmt.Errorf("Rebuild: %w", err)
	}

	if n := len(snap.CategoryStats.AmbiguousIDs); n > 0 {
		log.Warn().
			Int("ambiguous_category_ids", n).
			Ints64("ids", snap.CategoryStats.AmbiguousIDs).
			Msg("Category ids map to more than one code; largest code kept")
	}
	if n := len(snap.BrandStats.AmbiguousIDs); n > 0 {
		log.Warn().
			Int("ambiguous_product_ids", n).
			Ints64("ids", snap.BrandStats.AmbiguousIDs).
			Msg("Product ids map to more than one brand; largest brand kept")
	}
	if years := sortedYears((&View{settings: d.settings, pinned: snap}).CorruptYears()); len(years) > 0 {
		log.Warn().
			Ints("years", years).
			Msg("Years with a single distinct timestamp are excluded from time-based reports")
	}

	log.Info().
		Str("build_id", snap.BuildID).
		Int("rows", len(snap.Clean)).
		Int("category_ids", snap.CategoryStats.IDs).
		Int("product_ids", snap.BrandStats.IDs).
		Dur("duration", time.Since(started)).
		Msg("Clean set built")

	return snap, nil
}

// Publish makes snap the current snapshot in one atomic swap.
func (d *Dataset) Publish(ctx context.Context, snap *Snapshot) {
	d.current.Store(snap)

	log := logger.FromContext(ctx)
	log.Info().Str("build_id", snap.BuildID).Msg("Snapshot published")
}

// BuildSnapshot runs the reference mapper and the cleaning stage without publishing anything.
func BuildSnapshot(raw []domain.RawTransaction, settings Settings) (*Snapshot, error) {
	categories, catStats := BuildCategoryMap(raw)
	brands, brandStats := BuildBrandMap(raw)

	clean, err := BuildCleanSet(raw, settings.NormalizationOffset)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		BuildID:       uuid.NewString(),
		BuiltAt:       time.Now(),
		Clean:         clean,
		Categories:    categories,
		Brands:        brands,
		CategoryStats: catStats,
		BrandStats:    brandStats,
	}, nil
}

func sortedYears(years map[int]bool) []int {
	out := make([]int, 0, len(years))
	for y := range years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}
