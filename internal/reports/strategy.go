package reports

import "github.com/shopspring/decimal"

// Quadrant is the strategic classification of a segment.
type Quadrant string

const (
	QuadrantStar           Quadrant = "STAR"
	QuadrantCashCow        Quadrant = "CASH_COW"
	QuadrantEfficiencyPlay Quadrant = "EFFICIENCY_PLAY"
	QuadrantLongTail       Quadrant = "LONG_TAIL"
)

// Classify places a segment given its revenue fraction r, volume fraction v,
// its average order value and the global average order value.
// The branches are evaluated in order; the first match wins.
func Classify(r, v, aov, globalAOV decimal.Decimal) Quadrant {
	switch {
	case r.GreaterThan(v) && aov.GreaterThan(globalAOV):
		return QuadrantStar
	case r.LessThan(v) && aov.LessThan(globalAOV):
		return QuadrantCashCow
	case r.GreaterThan(v) && aov.LessThan(globalAOV):
		return QuadrantEfficiencyPlay
	default:
		return QuadrantLongTail
	}
}
