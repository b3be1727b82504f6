package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Summary holds the headline numbers of the whole clean set.
type Summary struct {
	Volume                 int64               `json:"volume"`
	Revenue                decimal.Decimal     `json:"revenue"`
	AOV                    decimal.NullDecimal `json:"aov"`
	RegisteredUsers        int64               `json:"registered_users"`
	UnlabelledRevenuePct   decimal.NullDecimal `json:"unlabelled_revenue_pct"`
	UnknownBrandRevenuePct decimal.NullDecimal `json:"unknown_brand_revenue_pct"`
	CorruptYears           []int               `json:"corrupt_years"`

	AmbiguousCategoryIDs int `json:"ambiguous_category_ids"`
	AmbiguousProductIDs  int `json:"ambiguous_product_ids"`
	RejectedRows         int `json:"rejected_rows"`
}

// GlobalSummary scans src once for totals and once for corrupt years. Data
// quality counters are filled in when src is a QualityReporter.
func GlobalSummary(src Source) Summary {
	var total bucket
	var unlabelled, unknown decimal.Decimal
	users := make(map[int64]struct{})

	for r := range src.Records() {
		total.add(r.Price)
		if r.UserID != nil {
			users[*r.UserID] = struct{}{}
		}
		if !r.Category.Known {
			unlabelled = unlabelled.Add(r.Price)
		}
		if !r.Brand.Known {
			unknown = unknown.Add(r.Price)
		}
	}

	years := make([]int, 0)
	for y := range src.CorruptYears() {
		years = append(years, y)
	}
	sort.Ints(years)

	summary := Summary{
		Volume:                 total.volume,
		Revenue:                total.revenue,
		AOV:                    AOV(total.revenue, total.volume),
		RegisteredUsers:        int64(len(users)),
		UnlabelledRevenuePct:   SharePct(unlabelled, total.revenue),
		UnknownBrandRevenuePct: SharePct(unknown, total.revenue),
		CorruptYears:           years,
	}
	if qr, ok := src.(QualityReporter); ok {
		q := qr.Quality()
		summary.AmbiguousCategoryIDs = q.AmbiguousCategoryIDs
		summary.AmbiguousProductIDs = q.AmbiguousProductIDs
		summary.RejectedRows = q.RejectedRows
	}
	return summary
}
