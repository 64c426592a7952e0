package backtest

import (
	"math"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"backtest-core/pkg/fixed"
)

// Summary condenses a batch of results. The float statistics are for
// ranking and display only.
type Summary struct {
	Runs                   int         `json:"runs"`
	Failed                 int         `json:"failed"`
	Operations             int         `json:"operations"`
	BestStrategy           string      `json:"best_strategy,omitempty"`
	BestRelativeYearProfit fixed.Price `json:"best_relative_year_profit"`
	MeanRelativeYearProfit float64     `json:"mean_relative_year_profit"`
	StdDevRelativeYear     float64     `json:"stddev_relative_year_profit"`
}

// Summarize ranks the successful runs by annualised relative profit.
func Summarize(results []Result) Summary {
	ok := lo.Filter(results, func(r Result, _ int) bool { return !r.Failed() })
	s := Summary{
		Runs:       len(results),
		Failed:     len(results) - len(ok),
		Operations: lo.SumBy(results, func(r Result) int { return len(r.Operations) }),
	}
	if len(ok) == 0 {
		return s
	}

	best := lo.MaxBy(ok, func(a, b Result) bool {
		return a.RelativeYearProfit.GreaterThan(b.RelativeYearProfit)
	})
	s.BestStrategy = best.Strategy
	s.BestRelativeYearProfit = best.RelativeYearProfit

	values := lo.Map(ok, func(r Result, _ int) float64 { return r.RelativeYearProfit.Float64() })
	if len(values) == 1 {
		s.MeanRelativeYearProfit = values[0]
		return s
	}
	mean, std := stat.MeanStdDev(values, nil)
	if !math.IsNaN(mean) {
		s.MeanRelativeYearProfit = mean
	}
	if !math.IsNaN(std) {
		s.StdDevRelativeYear = std
	}
	return s
}
