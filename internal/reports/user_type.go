package reports

import (
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

// UserTypeSummaryName is the registry name of the user type summary.
const UserTypeSummaryName = "user_type_summary"

// UserTypeSummaryRow profiles one user type against the whole record population.
type UserTypeSummaryRow struct {
	UserType             domain.UserType
	Volume               int64
	VolumeSharePct       decimal.NullDecimal
	DistinctUsers        int64
	Revenue              decimal.Decimal
	RevenueSharePct      decimal.NullDecimal
	AOV                  decimal.NullDecimal
	DistinctCategories   int64
	DistinctProducts     int64
	UnlabelledRevenuePct decimal.NullDecimal
}

type userTypeAcc struct {
	bucket
	users             map[int64]struct{}
	categories        map[string]struct{}
	products          map[int64]struct{}
	unlabelledRevenue decimal.Decimal
}

// UserTypeSummary computes one row per user type present in src, anonymous first.
// Anonymous rows always report zero distinct users.
func UserTypeSummary(src Source) []UserTypeSummaryRow {
	accs := make(map[domain.UserType]*userTypeAcc)
	var total bucket

	for r := range src.Records() {
		acc, ok := accs[r.UserType]
		if !ok {
			acc = &userTypeAcc{
				users:      make(map[int64]struct{}),
				categories: make(map[string]struct{}),
				products:   make(map[int64]struct{}),
			}
			accs[r.UserType] = acc
		}
		acc.add(r.Price)
		total.add(r.Price)

		if r.UserID != nil {
			acc.users[*r.UserID] = struct{}{}
		}
		acc.categories[r.Category.Value] = struct{}{}
		acc.products[r.ProductID] = struct{}{}
		if !r.Category.Known {
			acc.unlabelledRevenue = acc.unlabelledRevenue.Add(r.Price)
		}
	}

	rows := make([]UserTypeSummaryRow, 0, len(accs))
	for ut, acc := range accs {
		rows = append(rows, UserTypeSummaryRow{
			UserType:             ut,
			Volume:               acc.volume,
			VolumeSharePct:       CountSharePct(acc.volume, total.volume),
			DistinctUsers:        int64(len(acc.users)),
			Revenue:              acc.revenue,
			RevenueSharePct:      SharePct(acc.revenue, total.revenue),
			AOV:                  AOV(acc.revenue, acc.volume),
			DistinctCategories:   int64(len(acc.categories)),
			DistinctProducts:     int64(len(acc.products)),
			UnlabelledRevenuePct: SharePct(acc.unlabelledRevenue, acc.revenue),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		return userTypeRank(rows[i].UserType) < userTypeRank(rows[j].UserType)
	})
	return rows
}

func userTypeSummaryTable(src Source, _ Options) *Table {
	t := &Table{
		Name: UserTypeSummaryName,
		Columns: []string{
			"user_type", "volume", "volume_share_pct", "distinct_users", "revenue",
			"revenue_share_pct", "aov", "distinct_categories", "distinct_products", "unlabelled_revenue_pct",
		},
	}
	for _, r := range UserTypeSummary(src) {
		t.Rows = append(t.Rows, []any{
			string(r.UserType), r.Volume, r.VolumeSharePct, r.DistinctUsers, r.Revenue,
			r.RevenueSharePct, r.AOV, r.DistinctCategories, r.DistinctProducts, r.UnlabelledRevenuePct,
		})
	}
	return t
}
