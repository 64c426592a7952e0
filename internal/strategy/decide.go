package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/pkg/fixed"
)

var half = fixed.MustParse("0.5")

// Decide turns a snapshot into a decision. cache must be the zero Cache or one
// previously returned for the same configuration.
func Decide(cfg Config, snap Snapshot, cache Cache) (Decision, error) {
	if cfg == nil {
		return Decision{}, fmt.Errorf("%w: nil strategy config", ErrInvalidArgument)
	}
	name := cfg.Name()
	if !cache.IsZero() && cache.strategy != name {
		return Decision{}, fmt.Errorf("%w: cache of %q passed to %q", ErrInvalidArgument, cache.strategy, name)
	}
	cache = Cache{strategy: name}

	switch c := cfg.(type) {
	case ConservativeConfig:
		return decideConservative(snap, cache), nil
	case CrossConfig:
		return decideCross(c, snap, cache)
	default:
		return Decision{}, fmt.Errorf("%w: unsupported config %T", ErrInvalidArgument, cfg)
	}
}

func decideConservative(snap Snapshot, cache Cache) Decision {
	if len(snap.Pending) > 0 {
		return wait(cache)
	}
	return buy(AffordableLots(snap), cache)
}

func decideCross(c CrossConfig, snap Snapshot, cache Cache) (Decision, error) {
	if len(snap.Pending) > 0 || len(snap.Candles) < 2 {
		return wait(cache), nil
	}

	opens := market.OpenPrices(snap.Candles)
	short, err := indicators.Averages(c.Averager, opens, c.SmallWindow, c.Order)
	if err != nil {
		return Decision{}, err
	}
	long, err := indicators.Averages(c.Averager, opens, c.BigWindow, c.Order)
	if err != nil {
		return Decision{}, err
	}

	switch indicators.DetectCrossover(short, long, TargetIndex(c.IndexCoefficient, len(opens))) {
	case indicators.CrossoverBelow:
		return buy(AffordableLots(snap), cache), nil
	case indicators.CrossoverAbove:
		held := snap.HeldLots()
		if held > 0 && Profit(snap.Position.AveragePrice, snap.Price, snap.Commission).GreaterThanOrEqual(c.MinimumProfit) {
			return sell(held, cache), nil
		}
		if c.Greedy {
			return buy(AffordableLots(snap), cache), nil
		}
		return wait(cache), nil
	default:
		return wait(cache), nil
	}
}

// TargetIndex maps a coefficient in [0, 1] onto [0, n-1], rounding half up.
func TargetIndex(coefficient fixed.Price, n int) int {
	if n <= 0 {
		return 0
	}
	return int(coefficient.MulInt(int64(n - 1)).Add(half).FloorInt())
}

// AffordableLots is the largest lot count whose cost, commission included,
// fits in the snapshot balance.
func AffordableLots(snap Snapshot) int64 {
	if !snap.Price.IsPositive() || snap.LotSize <= 0 || !snap.Balance.IsPositive() {
		return 0
	}
	perLot := order.BuyCost(snap.Price, snap.LotSize, 1, snap.Commission)
	if !perLot.IsPositive() {
		return 0
	}
	lots := snap.Balance.Div(perLot, fixed.Down).FloorInt()
	for lots > 0 && order.BuyCost(snap.Price, snap.LotSize, lots, snap.Commission).GreaterThan(snap.Balance) {
		lots--
	}
	for order.BuyCost(snap.Price, snap.LotSize, lots+1, snap.Commission).LessThanOrEqual(snap.Balance) {
		lots++
	}
	return lots
}

// Profit is the relative gain of selling at sellPrice a position bought at
// avgPrice, with commission charged on both legs.
func Profit(avgPrice, sellPrice, commission fixed.Price) fixed.Price {
	buyUnit := avgPrice.Mul(fixed.One.Add(commission), fixed.HalfUp)
	if !buyUnit.IsPositive() {
		return fixed.Zero
	}
	sellUnit := sellPrice.Mul(fixed.One.Sub(commission), fixed.HalfUp)
	return sellUnit.Sub(buyUnit).Div(buyUnit, fixed.HalfUp)
}
