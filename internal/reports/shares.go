package reports

import "github.com/shopspring/decimal"

// Places is the number of decimal places for every percentage and currency output.
const Places = 2

var hundred = decimal.NewFromInt(100)

// round rounds half away from zero; every value passed here is non-negative,
// so it behaves as half-up.
func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

func null() decimal.NullDecimal {
	return decimal.NullDecimal{}
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// share returns 100*part/whole unrounded. ok is false when whole is zero.
func share(part, whole decimal.Decimal) (decimal.Decimal, bool) {
	if whole.IsZero() {
		return decimal.Zero, false
	}
	return part.Mul(hundred).Div(whole), true
}

// SharePct returns 100*part/whole rounded to two places, or null when whole is zero.
func SharePct(part, whole decimal.Decimal) decimal.NullDecimal {
	s, ok := share(part, whole)
	if !ok {
		return null()
	}
	return valid(round(s))
}

// CountSharePct is SharePct for row counts.
func CountSharePct(part, whole int64) decimal.NullDecimal {
	return SharePct(decimal.NewFromInt(part), decimal.NewFromInt(whole))
}

func mean(revenue decimal.Decimal, volume int64) (decimal.Decimal, bool) {
	if volume == 0 {
		return decimal.Zero, false
	}
	return revenue.Div(decimal.NewFromInt(volume)), true
}

// AOV returns the average order value rounded to two places, or null for an empty segment.
func AOV(revenue decimal.Decimal, volume int64) decimal.NullDecimal {
	m, ok := mean(revenue, volume)
	if !ok {
		return null()
	}
	return valid(round(m))
}

// EfficiencyIndex divides a segment's revenue share by its volume share.
// Both shares must be unrounded and taken against the same population.
// The result is null when either share is null or the volume share is zero.
func EfficiencyIndex(revenueShare, volumeShare decimal.NullDecimal) decimal.NullDecimal {
	if !revenueShare.Valid || !volumeShare.Valid || volumeShare.Decimal.IsZero() {
		return null()
	}
	return valid(round(revenueShare.Decimal.Div(volumeShare.Decimal)))
}

// Interpret labels an efficiency index. An index of exactly 1 or a null index has no label.
func Interpret(ei decimal.NullDecimal) string {
	if !ei.Valid {
		return ""
	}
	switch ei.Decimal.Cmp(decimal.NewFromInt(1)) {
	case 1:
		return "high-yield"
	case -1:
		return "high-volume/low-margin"
	default:
		return ""
	}
}
