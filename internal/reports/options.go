package reports

import "github.com/shopspring/decimal"

// TimeWindow is a named, inclusive range of hours of the day.
type TimeWindow struct {
	Name string
	From int
	To   int
}

// Contains reports whether hour falls inside the window.
func (w TimeWindow) Contains(hour int) bool {
	return hour >= w.From && hour <= w.To
}

// Options tunes the report engine.
type Options struct {
	// RevenueThresholdPct is the minimum share (in percent) of its population's
	// revenue a segment needs to appear in the strategic portfolio.
	RevenueThresholdPct decimal.Decimal
	TimeWindows         []TimeWindow
	// FallbackWindow names every hour not covered by TimeWindows.
	FallbackWindow string
	DeepDiveLimit  int
}

// DefaultOptions returns the stock engine options.
func DefaultOptions() Options {
	return Options{
		RevenueThresholdPct: decimal.RequireFromString("0.5"),
		TimeWindows: []TimeWindow{
			{Name: "Morning", From: 5, To: 10},
			{Name: "Afternoon", From: 11, To: 16},
			{Name: "Evening", From: 17, To: 22},
		},
		FallbackWindow: "Night",
		DeepDiveLimit:  20,
	}
}

// WindowFor names the time window an hour belongs to. The first matching window wins.
func (o Options) WindowFor(hour int) string {
	for _, w := range o.TimeWindows {
		if w.Contains(hour) {
			return w.Name
		}
	}
	return o.FallbackWindow
}

func (o Options) limit(n int) int {
	if o.DeepDiveLimit > 0 && o.DeepDiveLimit < n {
		return o.DeepDiveLimit
	}
	return n
}
