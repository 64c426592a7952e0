package backtest

import (
	"math"
	"testing"

	"backtest-core/internal/order"
	"backtest-core/pkg/fixed"
)

func TestSummarize(t *testing.T) {
	results := []Result{
		{Strategy: "a", RelativeYearProfit: fixed.MustParse("0.1"), Operations: make([]order.Operation, 2)},
		{Strategy: "b", RelativeYearProfit: fixed.MustParse("0.3"), Operations: make([]order.Operation, 1)},
		{Strategy: "c", RelativeYearProfit: fixed.MustParse("0.2")},
		{Strategy: "d", Error: "instrument not found"},
	}
	s := Summarize(results)
	if s.Runs != 4 || s.Failed != 1 || s.Operations != 3 {
		t.Fatalf("summary=%+v", s)
	}
	if s.BestStrategy != "b" || !s.BestRelativeYearProfit.Equal(fixed.MustParse("0.3")) {
		t.Fatalf("best=%s/%v, expected b/0.3", s.BestStrategy, s.BestRelativeYearProfit)
	}
	if math.Abs(s.MeanRelativeYearProfit-0.2) > 1e-12 {
		t.Fatalf("mean=%v, expected 0.2", s.MeanRelativeYearProfit)
	}
	if math.Abs(s.StdDevRelativeYear-0.1) > 1e-12 {
		t.Fatalf("stddev=%v, expected 0.1", s.StdDevRelativeYear)
	}
}

func TestSummarizeDegenerate(t *testing.T) {
	if s := Summarize(nil); s.Runs != 0 || s.BestStrategy != "" {
		t.Fatalf("summary=%+v", s)
	}
	s := Summarize([]Result{{Strategy: "only", RelativeYearProfit: fixed.MustParse("-0.5")}})
	if s.MeanRelativeYearProfit != -0.5 || s.StdDevRelativeYear != 0 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestResultReduceAnnualises(t *testing.T) {
	end := from.AddDate(0, 0, 73)
	b, err := order.NewVirtualBroker(order.VirtualConfig{
		Ticker: "X", Currency: "USD", LotSize: 1,
		InitialBalance: fixed.FromInt(100), From: from, To: end,
	})
	if err != nil {
		t.Fatalf("NewVirtualBroker returned error: %v", err)
	}
	if _, err := b.Buy(1, fixed.FromInt(10)); err != nil {
		t.Fatalf("Buy returned error: %v", err)
	}

	r := Result{From: from, To: end, InitialBalance: fixed.FromInt(100)}
	r.reduce(b, fixed.FromInt(20))

	if !r.FinalBalance.Equal(fixed.FromInt(90)) || !r.FinalTotalBalance.Equal(fixed.FromInt(110)) {
		t.Fatalf("final=%v total=%v, expected 90/110", r.FinalBalance, r.FinalTotalBalance)
	}
	if !r.RelativeProfit.Equal(fixed.MustParse("0.1")) {
		t.Fatalf("RelativeProfit=%v, expected 0.1", r.RelativeProfit)
	}
	// 73 days is a fifth of a year.
	if !r.RelativeYearProfit.Equal(fixed.MustParse("0.5")) {
		t.Fatalf("RelativeYearProfit=%v, expected 0.5", r.RelativeYearProfit)
	}
}
