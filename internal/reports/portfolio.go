package reports

import (
	"iter"
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// StrategicPortfolioName is the registry name of the portfolio report.
const StrategicPortfolioName = "strategic_portfolio"

// Portfolio dimensions, in output order.
const (
	DimensionCategory   = "category"
	DimensionBrand      = "brand"
	DimensionTimeWindow = "time_window"
)

// PortfolioRow is one segment of the strategic portfolio.
type PortfolioRow struct {
	Dimension       string
	Segment         string
	Volume          int64
	Revenue         decimal.Decimal
	AOV             decimal.NullDecimal
	VolumeSharePct  decimal.NullDecimal
	RevenueSharePct decimal.NullDecimal
	EfficiencyIndex decimal.NullDecimal
	Quadrant        Quadrant
}

// StrategicPortfolio classifies category, brand and time-window segments.
// Category and brand segments are measured against all records; time windows
// against valid-year records only. A segment is kept when its revenue exceeds
// opts.RevenueThresholdPct percent of its population's revenue. Rows are
// ordered by dimension, then revenue descending, then segment name.
func StrategicPortfolio(src Source, opts Options) []PortfolioRow {
	var rows []PortfolioRow
	rows = append(rows, portfolioSegments(DimensionCategory, src.Records(),
		func(r domain.AnalyticalRecord) string { return r.Category.Value }, opts)...)
	rows = append(rows, portfolioSegments(DimensionBrand, src.Records(),
		func(r domain.AnalyticalRecord) string { return r.Brand.Value }, opts)...)
	rows = append(rows, portfolioSegments(DimensionTimeWindow, validRecords(src),
		func(r domain.AnalyticalRecord) string { return opts.WindowFor(r.Hour) }, opts)...)
	return rows
}

func portfolioSegments(dim string, records iter.Seq[domain.AnalyticalRecord], segmentOf func(domain.AnalyticalRecord) string, opts Options) []PortfolioRow {
	segments := buckets[string]{}
	var total bucket
	for r := range records {
		segments.add(segmentOf(r), r.Price)
		total.add(r.Price)
	}

	globalAOV, ok := mean(total.revenue, total.volume)
	if !ok {
		return nil
	}

	rows := make([]PortfolioRow, 0, len(segments))
	for name, b := range segments {
		revShare, _ := share(b.revenue, total.revenue)
		if !revShare.GreaterThan(opts.RevenueThresholdPct) {
			continue
		}
		volShare, _ := share(b.volumeDec(), total.volumeDec())
		aov, _ := mean(b.revenue, b.volume)

		rows = append(rows, PortfolioRow{
			Dimension:       dim,
			Segment:         name,
			Volume:          b.volume,
			Revenue:         b.revenue,
			AOV:             AOV(b.revenue, b.volume),
			VolumeSharePct:  valid(round(volShare)),
			RevenueSharePct: valid(round(revShare)),
			EfficiencyIndex: EfficiencyIndex(valid(revShare), valid(volShare)),
			Quadrant:        Classify(revShare, volShare, aov, globalAOV),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].Segment < rows[j].Segment
	})
	return rows
}

func strategicPortfolioTable(src Source, opts Options) *Table {
	t := &Table{
		Name: StrategicPortfolioName,
		Columns: []string{
			"dimension", "segment", "volume", "revenue", "aov", "volume_share_pct",
			"revenue_share_pct", "efficiency_index", "quadrant",
		},
	}
	for _, r := range StrategicPortfolio(src, opts) {
		t.Rows = append(t.Rows, []any{
			r.Dimension, r.Segment, r.Volume, r.Revenue, r.AOV, r.VolumeSharePct,
			r.RevenueSharePct, r.EfficiencyIndex, string(r.Quadrant),
		})
	}
	return t
}
