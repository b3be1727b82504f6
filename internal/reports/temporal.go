package reports

import (
	"sort"

	"github.com/dvloznov/purchase-analytics/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	MonthlySeasonalityName = "monthly_seasonality"
	PaydayPatternName      = "payday_pattern"
	WeekdayRhythmName      = "weekday_rhythm"
	HourlyPeaksName        = "hourly_peaks"
)

// Weekdays is the calendar order used by the weekday rhythm report.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func weekdayRank(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return len(Weekdays)
}

// MonthlyRow is one (year, month, user type) cell of the seasonality report.
type MonthlyRow struct {
	Year, Month         int
	UserType            domain.UserType
	Volume              int64
	Revenue             decimal.Decimal
	VolumeSharePct      decimal.NullDecimal
	RevenueSharePct     decimal.NullDecimal
	VolumeShareInMonth  decimal.NullDecimal
	RevenueShareInMonth decimal.NullDecimal
	AOV                 decimal.NullDecimal
}

type yearMonth struct{ year, month int }

type monthKey struct {
	yearMonth
	userType domain.UserType
}

// MonthlySeasonality groups valid-year records by year, month and user type.
// Rows are ordered by year, month, then user type.
func MonthlySeasonality(src Source) []MonthlyRow {
	cells := buckets[monthKey]{}
	months := buckets[yearMonth]{}
	var total bucket

	for r := range validRecords(src) {
		ym := yearMonth{r.Year, r.Month}
		cells.add(monthKey{ym, r.UserType}, r.Price)
		months.add(ym, r.Price)
		total.add(r.Price)
	}

	rows := make([]MonthlyRow, 0, len(cells))
	for k, b := range cells {
		month := months.get(k.yearMonth)
		rows = append(rows, MonthlyRow{
			Year:                k.year,
			Month:               k.month,
			UserType:            k.userType,
			Volume:              b.volume,
			Revenue:             b.revenue,
			VolumeSharePct:      CountSharePct(b.volume, total.volume),
			RevenueSharePct:     SharePct(b.revenue, total.revenue),
			VolumeShareInMonth:  CountSharePct(b.volume, month.volume),
			RevenueShareInMonth: SharePct(b.revenue, month.revenue),
			AOV:                 AOV(b.revenue, b.volume),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		return userTypeRank(a.UserType) < userTypeRank(b.UserType)
	})
	return rows
}

func monthlySeasonalityTable(src Source, _ Options) *Table {
	t := &Table{
		Name: MonthlySeasonalityName,
		Columns: []string{
			"year", "month", "user_type", "volume", "revenue", "volume_share_pct", "revenue_share_pct",
			"volume_share_in_month_pct", "revenue_share_in_month_pct", "aov",
		},
	}
	for _, r := range MonthlySeasonality(src) {
		t.Rows = append(t.Rows, []any{
			r.Year, r.Month, string(r.UserType), r.Volume, r.Revenue, r.VolumeSharePct, r.RevenueSharePct,
			r.VolumeShareInMonth, r.RevenueShareInMonth, r.AOV,
		})
	}
	return t
}

// PaydayRow is one day of the month.
type PaydayRow struct {
	Day             int
	Volume          int64
	Revenue         decimal.Decimal
	VolumeSharePct  decimal.NullDecimal
	RevenueSharePct decimal.NullDecimal
	AOV             decimal.NullDecimal
}

// PaydayPattern groups valid-year records by day of month, ordered by day.
func PaydayPattern(src Source) []PaydayRow {
	days := buckets[int]{}
	var total bucket

	for r := range validRecords(src) {
		days.add(r.Day, r.Price)
		total.add(r.Price)
	}

	rows := make([]PaydayRow, 0, len(days))
	for day, b := range days {
		rows = append(rows, PaydayRow{
			Day:             day,
			Volume:          b.volume,
			Revenue:         b.revenue,
			VolumeSharePct:  CountSharePct(b.volume, total.volume),
			RevenueSharePct: SharePct(b.revenue, total.revenue),
			AOV:             AOV(b.revenue, b.volume),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day < rows[j].Day })
	return rows
}

func paydayPatternTable(src Source, _ Options) *Table {
	t := &Table{
		Name:    PaydayPatternName,
		Columns: []string{"day", "volume", "revenue", "volume_share_pct", "revenue_share_pct", "aov"},
	}
	for _, r := range PaydayPattern(src) {
		t.Rows = append(t.Rows, []any{r.Day, r.Volume, r.Revenue, r.VolumeSharePct, r.RevenueSharePct, r.AOV})
	}
	return t
}

// WeekdayRow is one (weekday, user type) cell.
type WeekdayRow struct {
	Weekday           string
	UserType          domain.UserType
	Volume            int64
	Revenue           decimal.Decimal
	VolumeSharePct    decimal.NullDecimal
	RevenueSharePct   decimal.NullDecimal
	VolumeShareInDay  decimal.NullDecimal
	RevenueShareInDay decimal.NullDecimal
	AOV               decimal.NullDecimal
}

type weekdayKey struct {
	weekday  string
	userType domain.UserType
}

// WeekdayRhythm groups valid-year records by weekday and user type,
// ordered Monday through Sunday, then by user type.
func WeekdayRhythm(src Source) []WeekdayRow {
	cells := buckets[weekdayKey]{}
	days := buckets[string]{}
	var total bucket

	for r := range validRecords(src) {
		cells.add(weekdayKey{r.Weekday, r.UserType}, r.Price)
		days.add(r.Weekday, r.Price)
		total.add(r.Price)
	}

	rows := make([]WeekdayRow, 0, len(cells))
	for k, b := range cells {
		day := days.get(k.weekday)
		rows = append(rows, WeekdayRow{
			Weekday:           k.weekday,
			UserType:          k.userType,
			Volume:            b.volume,
			Revenue:           b.revenue,
			VolumeSharePct:    CountSharePct(b.volume, total.volume),
			RevenueSharePct:   SharePct(b.revenue, total.revenue),
			VolumeShareInDay:  CountSharePct(b.volume, day.volume),
			RevenueShareInDay: SharePct(b.revenue, day.revenue),
			AOV:               AOV(b.revenue, b.volume),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if wa, wb := weekdayRank(a.Weekday), weekdayRank(b.Weekday); wa != wb {
			return wa < wb
		}
		return userTypeRank(a.UserType) < userTypeRank(b.UserType)
	})
	return rows
}

func weekdayRhythmTable(src Source, _ Options) *Table {
	t := &Table{
		Name: WeekdayRhythmName,
		Columns: []string{
			"weekday", "user_type", "volume", "revenue", "volume_share_pct", "revenue_share_pct",
			"volume_share_in_day_pct", "revenue_share_in_day_pct", "aov",
		},
	}
	for _, r := range WeekdayRhythm(src) {
		t.Rows = append(t.Rows, []any{
			r.Weekday, string(r.UserType), r.Volume, r.Revenue, r.VolumeSharePct, r.RevenueSharePct,
			r.VolumeShareInDay, r.RevenueShareInDay, r.AOV,
		})
	}
	return t
}

// HourlyRow is one (hour, user type) cell.
type HourlyRow struct {
	Hour              int
	UserType          domain.UserType
	Volume            int64
	VolumeShareInType decimal.NullDecimal
	AOV               decimal.NullDecimal
	PremiumWindow     bool
}

type hourKey struct {
	hour     int
	userType domain.UserType
}

// HourlyPeaks groups valid-year records by hour and user type, ordered by hour
// then user type. An hour is a premium window when its AOV is above the mean
// of that user type's hourly AOVs.
func HourlyPeaks(src Source) []HourlyRow {
	cells := buckets[hourKey]{}
	types := buckets[domain.UserType]{}

	for r := range validRecords(src) {
		cells.add(hourKey{r.Hour, r.UserType}, r.Price)
		types.add(r.UserType, r.Price)
	}

	aovs := make(map[hourKey]decimal.Decimal, len(cells))
	sums := make(map[domain.UserType]decimal.Decimal)
	counts := make(map[domain.UserType]int64)
	for k, b := range cells {
		m, _ := mean(b.revenue, b.volume)
		aovs[k] = m
		sums[k.userType] = sums[k.userType].Add(m)
		counts[k.userType]++
	}

	rows := make([]HourlyRow, 0, len(cells))
	for k, b := range cells {
		typeMean, _ := mean(sums[k.userType], counts[k.userType])
		rows = append(rows, HourlyRow{
			Hour:              k.hour,
			UserType:          k.userType,
			Volume:            b.volume,
			VolumeShareInType: CountSharePct(b.volume, types.get(k.userType).volume),
			AOV:               AOV(b.revenue, b.volume),
			PremiumWindow:     aovs[k].GreaterThan(typeMean),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return userTypeRank(a.UserType) < userTypeRank(b.UserType)
	})
	return rows
}

func hourlyPeaksTable(src Source, _ Options) *Table {
	t := &Table{
		Name:    HourlyPeaksName,
		Columns: []string{"hour", "user_type", "volume", "volume_share_in_type_pct", "aov", "premium_window"},
	}
	for _, r := range HourlyPeaks(src) {
		t.Rows = append(t.Rows, []any{r.Hour, string(r.UserType), r.Volume, r.VolumeShareInType, r.AOV, r.PremiumWindow})
	}
	return t
}
