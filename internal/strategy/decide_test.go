package strategy

import (
	"errors"
	"testing"
	"time"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/pkg/fixed"
)

var start = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func candles(opens ...string) []market.Candle {
	out := make([]market.Candle, len(opens))
	for i, o := range opens {
		p := fixed.MustParse(o)
		out[i] = market.Candle{Time: start.Add(time.Duration(i) * time.Minute), Open: p, High: p, Low: p, Close: p}
	}
	return out
}

func mustCross(t *testing.T, greedy bool, minimumProfit string) CrossConfig {
	t.Helper()
	c, err := NewCross(indicators.Simple, 1, 2, fixed.One, greedy, fixed.MustParse(minimumProfit), 1)
	if err != nil {
		t.Fatalf("NewCross returned error: %v", err)
	}
	return c
}

// Window 1 and 2 SMAs over [10, 12, 4] give short [10, 12, 4] and long
// [10, 11, 8]: a bearish cross at the last index.
var bearish = candles("10", "12", "4")

// Short [10, 8, 16] against long [10, 9, 12] crosses the other way.
var bullish = candles("10", "8", "16")

func snapshot(c []market.Candle, balance string, pos *order.Position) Snapshot {
	return Snapshot{
		Time:       start.Add(time.Hour),
		Price:      market.LatestClose(c),
		Candles:    c,
		Position:   pos,
		Balance:    fixed.MustParse(balance),
		Commission: fixed.MustParse("0.001"),
		LotSize:    1,
	}
}

func TestCrossBullishBuysAffordable(t *testing.T) {
	cfg := mustCross(t, false, "0")
	snap := snapshot(bullish, "100", nil)
	d, err := Decide(cfg, snap, Cache{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	// 16 * 1.001 = 16.016 per lot, 100 / 16.016 = 6.24
	if d.Action != ActionBuy || d.Lots != 6 {
		t.Fatalf("decision=%v, expected BUY(6)", d)
	}
	if d.Cache.Strategy() != cfg.Name() {
		t.Fatalf("cache=%q, expected %q", d.Cache.Strategy(), cfg.Name())
	}
}

func TestCrossBearishSellsWhenProfitable(t *testing.T) {
	cfg := mustCross(t, false, "0.1")
	pos := &order.Position{Lots: 3, LotSize: 1, AveragePrice: fixed.MustParse("2")}
	d, err := Decide(cfg, snapshot(bearish, "100", pos), Cache{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.Action != ActionSell || d.Lots != 3 {
		t.Fatalf("decision=%v, expected SELL(3)", d)
	}
}

func TestCrossGreedyFallback(t *testing.T) {
	// Bought at 5, selling at 4 is a loss below any minimum profit.
	pos := &order.Position{Lots: 3, LotSize: 1, AveragePrice: fixed.MustParse("5")}
	snap := snapshot(bearish, "100", pos)

	d, err := Decide(mustCross(t, false, "0.01"), snap, Cache{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if d.Action != ActionWait {
		t.Fatalf("decision=%v, expected WAIT", d)
	}

	d, err = Decide(mustCross(t, true, "0.01"), snap, Cache{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	// 4 * 1.001 = 4.004 per lot, 100 / 4.004 = 24.97
	if d.Action != ActionBuy || d.Lots != 24 {
		t.Fatalf("decision=%v, expected BUY(24)", d)
	}
}

func TestCrossBearishWithoutPosition(t *testing.T) {
	d, _ := Decide(mustCross(t, false, "0"), snapshot(bearish, "100", nil), Cache{})
	if d.Action != ActionWait {
		t.Fatalf("decision=%v, expected WAIT", d)
	}
	d, _ = Decide(mustCross(t, true, "0"), snapshot(bearish, "100", nil), Cache{})
	if d.Action != ActionBuy {
		t.Fatalf("decision=%v, expected BUY", d)
	}
}

func TestCrossWaits(t *testing.T) {
	pending := []order.Operation{{ID: "x", Side: order.SideBuy}}
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"no crossover", snapshot(candles("10", "10", "10"), "100", nil)},
		{"single candle", snapshot(candles("10"), "100", nil)},
		{"no candles", snapshot(nil, "100", nil)},
		{"pending operation", func() Snapshot { s := snapshot(bullish, "100", nil); s.Pending = pending; return s }()},
		{"cannot afford", snapshot(bullish, "1", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Decide(mustCross(t, true, "0"), tt.snap, Cache{})
			if err != nil {
				t.Fatalf("Decide returned error: %v", err)
			}
			if d.Action != ActionWait {
				t.Fatalf("decision=%v, expected WAIT", d)
			}
		})
	}
}

func TestConservative(t *testing.T) {
	cfg, err := NewConservative(fixed.Zero)
	if err != nil {
		t.Fatalf("NewConservative returned error: %v", err)
	}
	d, _ := Decide(cfg, snapshot(bullish, "100", nil), Cache{})
	if d.Action != ActionBuy || d.Lots != 6 {
		t.Fatalf("decision=%v, expected BUY(6)", d)
	}
	snap := snapshot(bullish, "100", nil)
	snap.Pending = []order.Operation{{ID: "p"}}
	if d, _ := Decide(cfg, snap, Cache{}); d.Action != ActionWait {
		t.Fatalf("decision=%v, expected WAIT", d)
	}
	if d, _ := Decide(cfg, snapshot(bullish, "0", nil), Cache{}); d.Action != ActionWait {
		t.Fatalf("decision=%v, expected WAIT", d)
	}
}

func TestConservativeNeverSells(t *testing.T) {
	cfg := ConservativeConfig{}
	series := [][]market.Candle{bullish, bearish, candles("1", "100", "1", "100"), nil}
	positions := []*order.Position{nil, {Lots: 5, LotSize: 1, AveragePrice: fixed.MustParse("0.01")}}
	for _, c := range series {
		for _, pos := range positions {
			for _, bal := range []string{"0", "3", "1000000"} {
				d, err := Decide(cfg, snapshot(c, bal, pos), Cache{})
				if err != nil {
					t.Fatalf("Decide returned error: %v", err)
				}
				if d.Action == ActionSell {
					t.Fatalf("Conservative sold: %v", d)
				}
			}
		}
	}
}

func TestCrossLotBounds(t *testing.T) {
	series := [][]market.Candle{
		bullish, bearish,
		candles("5", "7", "6", "9", "3", "8", "2", "11", "10", "4"),
		candles("100", "99.5", "101.25", "98", "97.75", "103", "104.5", "99"),
	}
	for _, greedy := range []bool{false, true} {
		for _, kind := range []indicators.Averager{indicators.Simple, indicators.Linear, indicators.Exponential} {
			cfg, err := NewCross(kind, 2, 4, fixed.One, greedy, fixed.Zero, 1)
			if err != nil {
				t.Fatalf("NewCross returned error: %v", err)
			}
			for _, c := range series {
				for n := 2; n <= len(c); n++ {
					for _, held := range []int64{0, 7} {
						var pos *order.Position
						if held > 0 {
							pos = &order.Position{Lots: held, LotSize: 10, AveragePrice: fixed.MustParse("1")}
						}
						snap := snapshot(c[:n], "523.7", pos)
						snap.LotSize = 10
						d, err := Decide(cfg, snap, Cache{})
						if err != nil {
							t.Fatalf("Decide returned error: %v", err)
						}
						switch d.Action {
						case ActionBuy:
							if d.Lots > AffordableLots(snap) {
								t.Fatalf("BUY(%d) exceeds affordable %d", d.Lots, AffordableLots(snap))
							}
						case ActionSell:
							if d.Lots > held {
								t.Fatalf("SELL(%d) exceeds held %d", d.Lots, held)
							}
						}
					}
				}
			}
		}
	}
}

func TestAffordableLots(t *testing.T) {
	tests := []struct {
		price, balance, commission string
		lotSize                    int64
		want                       int64
	}{
		{"10", "100", "0", 1, 10},
		{"10", "100", "0.01", 1, 9},
		{"10", "101", "0.01", 1, 10},
		{"10", "100", "0", 3, 3},
		{"0", "100", "0", 1, 0},
		{"10", "0", "0", 1, 0},
		{"3.333333333", "10", "0", 1, 3},
	}
	for _, tt := range tests {
		snap := Snapshot{
			Price:      fixed.MustParse(tt.price),
			Balance:    fixed.MustParse(tt.balance),
			Commission: fixed.MustParse(tt.commission),
			LotSize:    tt.lotSize,
		}
		if got := AffordableLots(snap); got != tt.want {
			t.Fatalf("AffordableLots(%+v)=%d, expected %d", tt, got, tt.want)
		}
		if got := AffordableLots(snap); got > 0 {
			cost := order.BuyCost(snap.Price, snap.LotSize, got, snap.Commission)
			if cost.GreaterThan(snap.Balance) {
				t.Fatalf("cost %v exceeds balance %v", cost, snap.Balance)
			}
		}
	}
}

func TestTargetIndex(t *testing.T) {
	tests := []struct {
		coefficient string
		n, want     int
	}{
		{"1", 10, 9},
		{"0", 10, 0},
		{"0.5", 10, 5},
		{"0.5", 9, 4},
		{"0.9", 3, 2},
		{"1", 0, 0},
	}
	for _, tt := range tests {
		if got := TargetIndex(fixed.MustParse(tt.coefficient), tt.n); got != tt.want {
			t.Fatalf("TargetIndex(%s, %d)=%d, expected %d", tt.coefficient, tt.n, got, tt.want)
		}
	}
}

func TestProfit(t *testing.T) {
	got := Profit(fixed.MustParse("100"), fixed.MustParse("110"), fixed.Zero)
	if !got.Equal(fixed.MustParse("0.1")) {
		t.Fatalf("Profit=%v, expected 0.1", got)
	}
	got = Profit(fixed.MustParse("100"), fixed.MustParse("110"), fixed.MustParse("0.01"))
	// (108.9 - 101) / 101
	if !got.Equal(fixed.MustParse("0.078217822")) {
		t.Fatalf("Profit=%v, expected 0.078217822", got)
	}
	if got := Profit(fixed.Zero, fixed.One, fixed.Zero); !got.IsZero() {
		t.Fatalf("Profit=%v, expected 0", got)
	}
}

func TestDecideRejectsForeignCache(t *testing.T) {
	cross := mustCross(t, false, "0")
	d, err := Decide(cross, snapshot(bullish, "100", nil), Cache{})
	if err != nil {
		t.Fatalf("Decide returned error: %v", err)
	}
	if _, err := Decide(cross, snapshot(bullish, "100", nil), d.Cache); err != nil {
		t.Fatalf("Decide with own cache returned error: %v", err)
	}
	if _, err := Decide(ConservativeConfig{}, snapshot(bullish, "100", nil), d.Cache); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, expected ErrInvalidArgument", err)
	}
	if _, err := Decide(nil, Snapshot{}, Cache{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err=%v, expected ErrInvalidArgument", err)
	}
}
