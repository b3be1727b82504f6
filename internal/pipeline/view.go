package pipeline

import (
	"iter"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/dvloznov/purchase-analytics/internal/reports"
)

// View is the analytical read surface over a snapshot source. Records are
// derived on every iteration and never cached, so a rebuilt snapshot is
// visible to the next consumer without any invalidation step.
type View struct {
	src      SnapshotSource
	settings Settings
	pinned   *Snapshot
}

// NewView creates a view that follows whatever snapshot src currently holds.
func NewView(src SnapshotSource, settings Settings) *View {
	return &View{src: src, settings: settings}
}

// Pin returns a view fixed to the current snapshot, so that several passes
// over it see the same data even if a rebuild lands in between.
func (v *View) Pin() (reports.Source, error) {
	snap, err := v.snapshot()
	if err != nil {
		return nil, err
	}
	return &View{src: v.src, settings: v.settings, pinned: snap}, nil
}

func (v *View) snapshot() (*Snapshot, error) {
	if v.pinned != nil {
		return v.pinned, nil
	}
	return v.src.Current()
}

// Quality reports the mapping ambiguity and parse rejections of the snapshot.
func (v *View) Quality() reports.Quality {
	snap, err := v.snapshot()
	if err != nil {
		return reports.Quality{}
	}
	return reports.Quality{
		AmbiguousCategoryIDs: len(snap.CategoryStats.AmbiguousIDs),
		AmbiguousProductIDs:  len(snap.BrandStats.AmbiguousIDs),
		RejectedRows:         snap.RejectedRows,
	}
}

// Records yields one AnalyticalRecord per clean transaction. If no snapshot
// has been built yet it yields nothing.
func (v *View) Records() iter.Seq[domain.AnalyticalRecord] {
	return func(yield func(domain.AnalyticalRecord) bool) {
		snap, err := v.snapshot()
		if err != nil {
			return
		}
		for _, c := range snap.Clean {
			if !yield(Derive(c, snap.Categories, snap.Brands, v.settings)) {
				return
			}
		}
	}
}

// CorruptYears returns the years whose records all share a single normalized
// timestamp. Such a year is a batch with a collapsed clock and is excluded
// from every time-based report.
func (v *View) CorruptYears() map[int]bool {
	distinct := make(map[int]map[civil.DateTime]struct{})
	for r := range v.Records() {
		seen, ok := distinct[r.Year]
		if !ok {
			seen = make(map[civil.DateTime]struct{})
			distinct[r.Year] = seen
		}
		if len(seen) < 2 {
			seen[r.NormalizedEventTime] = struct{}{}
		}
	}

	corrupt := make(map[int]bool)
	for year, seen := range distinct {
		if len(seen) == 1 {
			corrupt[year] = true
		}
	}
	return corrupt
}

// Derive computes the analytical record for one clean transaction.
func Derive(c domain.CleanTransaction, categories CategoryMap, brands BrandMap, settings Settings) domain.AnalyticalRecord {
	ts := c.NormalizedEventTime.In(time.UTC)

	return domain.AnalyticalRecord{
		CleanTransaction: c,
		UserType:         domain.UserTypeOf(c.UserID),
		Year:             ts.Year(),
		Month:            int(ts.Month()),
		Day:              ts.Day(),
		Hour:             ts.Hour(),
		Weekday:          strings.TrimSpace(ts.Weekday().String()),
		Category:         resolveCategory(c, categories, settings.UnlabelledTemplate),
		Brand:            resolveBrand(c, brands, settings.UnknownTemplate),
	}
}

func resolveCategory(c domain.CleanTransaction, categories CategoryMap, template string) domain.Label {
	if c.CategoryCode != nil {
		return domain.KnownLabel(*c.CategoryCode, c.CategoryID)
	}
	if code, ok := categories[c.CategoryID]; ok {
		return domain.KnownLabel(code, c.CategoryID)
	}
	return domain.SentinelLabel(template, c.CategoryID)
}

func resolveBrand(c domain.CleanTransaction, brands BrandMap, template string) domain.Label {
	if c.Brand != nil {
		return domain.KnownLabel(*c.Brand, c.ProductID)
	}
	if brand, ok := brands[c.ProductID]; ok {
		return domain.KnownLabel(brand, c.ProductID)
	}
	return domain.SentinelLabel(template, c.ProductID)
}
