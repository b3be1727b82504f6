package pipeline

import (
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
)

// CategoryMap resolves a category_id to its representative category code.
type CategoryMap map[int64]string

// BrandMap resolves a product_id to its representative brand.
type BrandMap map[int64]string

// MapStats describes how a reference map was built.
type MapStats struct {
	IDs          int     // ids with at least one non-null label
	AmbiguousIDs []int64 // ids seen with more than one distinct non-null label, ascending
}

// BuildCategoryMap picks one category code per category_id.
// When an id carries several codes the largest one by string ordering wins.
func BuildCategoryMap(raw []domain.RawTransaction) (CategoryMap, MapStats) {
	m, stats := buildLabelMap(raw, func(r domain.RawTransaction) (int64, *string) {
		return r.CategoryID, r.CategoryCode
	})
	return CategoryMap(m), stats
}

// BuildBrandMap picks one brand per product_id using the same policy as BuildCategoryMap.
func BuildBrandMap(raw []domain.RawTransaction) (BrandMap, MapStats) {
	m, stats := buildLabelMap(raw, func(r domain.RawTransaction) (int64, *string) {
		return r.ProductID, r.Brand
	})
	return BrandMap(m), stats
}

func buildLabelMap(raw []domain.RawTransaction, key func(domain.RawTransaction) (int64, *string)) (map[int64]string, MapStats) {
	best := make(map[int64]string)
	ambiguous := make(map[int64]bool)

	for _, r := range raw {
		id, label := key(r)
		if label == nil {
			continue
		}
		current, seen := best[id]
		switch {
		case !seen:
			best[id] = *label
		case *label != current:
			ambiguous[id] = true
			if *label > current {
				best[id] = *label
			}
		}
	}

	stats := MapStats{IDs: len(best)}
	for id := range ambiguous {
		stats.AmbiguousIDs = append(stats.AmbiguousIDs, id)
	}
	sort.Slice(stats.AmbiguousIDs, func(i, j int) bool { return stats.AmbiguousIDs[i] < stats.AmbiguousIDs[j] })

	return best, stats
}
