package reports

import (
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	CategoryMasterName       = "category_master"
	BrandMasterName          = "brand_master"
	UnlabelledCategoriesName = "unlabelled_categories"
	UnknownBrandsName        = "unknown_brands"
)

// LabelRow is one (label, user type) cell of a master table. In-type shares
// are taken against the user type's totals, the other shares against all records.
type LabelRow struct {
	Value              string
	Status             string
	UserType           domain.UserType
	Volume             int64
	VolumeShareInType  decimal.NullDecimal
	VolumeSharePct     decimal.NullDecimal
	Revenue            decimal.Decimal
	RevenueShareInType decimal.NullDecimal
	RevenueSharePct    decimal.NullDecimal
	AOV                decimal.NullDecimal
}

type labelKey struct {
	value    string
	userType domain.UserType
}

// dimension selects one label of a record and names its two statuses.
type dimension struct {
	label   func(domain.AnalyticalRecord) domain.Label
	known   string
	unknown string
}

var (
	categoryDimension = dimension{
		label:   func(r domain.AnalyticalRecord) domain.Label { return r.Category },
		known:   "labelled",
		unknown: "unlabelled",
	}
	brandDimension = dimension{
		label:   func(r domain.AnalyticalRecord) domain.Label { return r.Brand },
		known:   "known",
		unknown: "unknown",
	}
)

func (d dimension) status(known bool) string {
	if known {
		return d.known
	}
	return d.unknown
}

// labelMaster groups all records by the dimension's label and user type.
// Labels are ordered by their total revenue descending, then by value;
// user types within a label follow the usual order.
func labelMaster(src Source, dim dimension) []LabelRow {
	cells := buckets[labelKey]{}
	labels := buckets[string]{}
	types := buckets[domain.UserType]{}
	known := make(map[string]bool)
	var total bucket

	for r := range src.Records() {
		l := dim.label(r)
		cells.add(labelKey{l.Value, r.UserType}, r.Price)
		labels.add(l.Value, r.Price)
		types.add(r.UserType, r.Price)
		total.add(r.Price)
		known[l.Value] = l.Known
	}

	rows := make([]LabelRow, 0, len(cells))
	for k, b := range cells {
		typ := types.get(k.userType)
		rows = append(rows, LabelRow{
			Value:              k.value,
			Status:             dim.status(known[k.value]),
			UserType:           k.userType,
			Volume:             b.volume,
			VolumeShareInType:  CountSharePct(b.volume, typ.volume),
			VolumeSharePct:     CountSharePct(b.volume, total.volume),
			Revenue:            b.revenue,
			RevenueShareInType: SharePct(b.revenue, typ.revenue),
			RevenueSharePct:    SharePct(b.revenue, total.revenue),
			AOV:                AOV(b.revenue, b.volume),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Value != b.Value {
			ra, rb := labels.get(a.Value).revenue, labels.get(b.Value).revenue
			if c := ra.Cmp(rb); c != 0 {
				return c > 0
			}
			return a.Value < b.Value
		}
		return userTypeRank(a.UserType) < userTypeRank(b.UserType)
	})
	return rows
}

// CategoryMaster profiles every resolved category per user type.
func CategoryMaster(src Source) []LabelRow {
	return labelMaster(src, categoryDimension)
}

// BrandMaster profiles every resolved brand per user type.
func BrandMaster(src Source) []LabelRow {
	return labelMaster(src, brandDimension)
}

func labelMasterTable(name, column string, rows []LabelRow) *Table {
	t := &Table{
		Name: name,
		Columns: []string{
			column, "status", "user_type", "volume", "volume_share_in_type_pct", "volume_share_pct",
			"revenue", "revenue_share_in_type_pct", "revenue_share_pct", "aov",
		},
	}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{
			r.Value, r.Status, string(r.UserType), r.Volume, r.VolumeShareInType, r.VolumeSharePct,
			r.Revenue, r.RevenueShareInType, r.RevenueSharePct, r.AOV,
		})
	}
	return t
}

func categoryMasterTable(src Source, _ Options) *Table {
	return labelMasterTable(CategoryMasterName, "category", CategoryMaster(src))
}

func brandMasterTable(src Source, _ Options) *Table {
	return labelMasterTable(BrandMasterName, "brand", BrandMaster(src))
}

// DeepDiveRow describes one sentinel label: the source id it stands for and
// the label most often seen alongside it on the other dimension.
type DeepDiveRow struct {
	Value      string
	SourceID   int64
	Volume     int64
	Revenue    decimal.Decimal
	TopPartner string
	SharePct   decimal.NullDecimal
}

type deepDiveAcc struct {
	bucket
	sourceID int64
	partners map[string]int64
}

// deepDive ranks the sentinel labels of dim by revenue, keeping the top limit.
// SharePct is taken against the revenue of all sentinel rows of the dimension.
func deepDive(src Source, dim, partner dimension, limit func(int) int) []DeepDiveRow {
	accs := make(map[string]*deepDiveAcc)
	var total bucket

	for r := range src.Records() {
		l := dim.label(r)
		if l.Known {
			continue
		}
		acc, ok := accs[l.Value]
		if !ok {
			acc = &deepDiveAcc{sourceID: l.SourceID, partners: make(map[string]int64)}
			accs[l.Value] = acc
		}
		acc.add(r.Price)
		acc.partners[partner.label(r).Value]++
		total.add(r.Price)
	}

	rows := make([]DeepDiveRow, 0, len(accs))
	for value, acc := range accs {
		rows = append(rows, DeepDiveRow{
			Value:      value,
			SourceID:   acc.sourceID,
			Volume:     acc.volume,
			Revenue:    acc.revenue,
			TopPartner: mostFrequent(acc.partners),
			SharePct:   SharePct(acc.revenue, total.revenue),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].Value < rows[j].Value
	})
	return rows[:limit(len(rows))]
}

// UnlabelledCategories lists the unlabelled categories with the most revenue
// and the brand each one is most often sold under.
func UnlabelledCategories(src Source, opts Options) []DeepDiveRow {
	return deepDive(src, categoryDimension, brandDimension, opts.limit)
}

// UnknownBrands lists the unknown brands with the most revenue and the
// category each one is most often sold in.
func UnknownBrands(src Source, opts Options) []DeepDiveRow {
	return deepDive(src, brandDimension, categoryDimension, opts.limit)
}

func deepDiveTable(name string, columns []string, rows []DeepDiveRow) *Table {
	t := &Table{Name: name, Columns: columns}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Value, r.SourceID, r.Volume, r.Revenue, r.TopPartner, r.SharePct})
	}
	return t
}

func unlabelledCategoriesTable(src Source, opts Options) *Table {
	return deepDiveTable(UnlabelledCategoriesName,
		[]string{"category", "category_id", "volume", "revenue", "top_brand", "unlabelled_revenue_share_pct"},
		UnlabelledCategories(src, opts))
}

func unknownBrandsTable(src Source, opts Options) *Table {
	return deepDiveTable(UnknownBrandsName,
		[]string{"brand", "product_id", "volume", "revenue", "top_category", "unknown_revenue_share_pct"},
		UnknownBrands(src, opts))
}
