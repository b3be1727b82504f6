package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/purchase-analytics/internal/logger"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownReport is returned for a report name that is not registered.
var ErrUnknownReport = errors.New("unknown report")

type builder func(src Source, opts Options) *Table

var registry = map[string]builder{
	UserTypeSummaryName:      userTypeSummaryTable,
	MonthlySeasonalityName:   monthlySeasonalityTable,
	PaydayPatternName:        paydayPatternTable,
	WeekdayRhythmName:        weekdayRhythmTable,
	HourlyPeaksName:          hourlyPeaksTable,
	CategoryMasterName:       categoryMasterTable,
	UnlabelledCategoriesName: unlabelledCategoriesTable,
	BrandMasterName:          brandMasterTable,
	UnknownBrandsName:        unknownBrandsTable,
	StrategicPortfolioName:   strategicPortfolioTable,
}

var names = []string{
	UserTypeSummaryName,
	MonthlySeasonalityName,
	PaydayPatternName,
	WeekdayRhythmName,
	HourlyPeaksName,
	CategoryMasterName,
	UnlabelledCategoriesName,
	BrandMasterName,
	UnknownBrandsName,
	StrategicPortfolioName,
}

// Names lists every registered report in presentation order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Engine computes named reports over a pinned view of the clean set.
type Engine struct {
	pinner Pinner
	opts   Options
}

// NewEngine creates a report engine reading from p.
func NewEngine(p Pinner, opts Options) *Engine {
	return &Engine{pinner: p, opts: opts}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Run computes a single report.
func (e *Engine) Run(ctx context.Context, name string) (*Table, error) {
	tables, err := e.RunAll(ctx, name)
	if err != nil {
		return nil, err
	}
	return tables[0], nil
}

// RunAll computes the named reports concurrently, all against the same
// snapshot. With no names it computes every registered report. Results are
// returned in the order requested.
func (e *Engine) RunAll(ctx context.Context, reportNames ...string) ([]*Table, error) {
	if len(reportNames) == 0 {
		reportNames = names
	}
	builders := make([]builder, len(reportNames))
	for i, name := range reportNames {
		b, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("RunAll: %q: %w", name, ErrUnknownReport)
		}
		builders[i] = b
	}

	src, err := e.pinner.Pin()
	if err != nil {
		return nil, fmt.Errorf("RunAll: pin view: %w", err)
	}

	log := logger.FromContext(ctx)
	tables := make([]*Table, len(reportNames))
	g, gctx := errgroup.WithContext(ctx)
	for i := range builders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started := time.Now()
			tables[i] = builders[i](src, e.opts)
			log.Debug().
				Str("report", reportNames[i]).
				Int("rows", len(tables[i].Rows)).
				Dur("duration", time.Since(started)).
				Msg("Report computed")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("RunAll: %w", err)
	}
	return tables, nil
}

// Summary computes the global totals over the current snapshot.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	src, err := e.pinner.Pin()
	if err != nil {
		return Summary{}, fmt.Errorf("Summary: pin view: %w", err)
	}
	return GlobalSummary(src), nil
}
