package strategy

import (
	"fmt"
	"time"

	"backtest-core/internal/indicators"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/pkg/fixed"
)

// ErrInvalidArgument is shared with the indicator library so callers can test
// a single sentinel.
var ErrInvalidArgument = indicators.ErrInvalidArgument

// Action is the verdict of one decision.
type Action string

const (
	ActionWait Action = "WAIT"
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Snapshot is everything a strategy may look at for one tick. It is built
// fresh by the caller and never modified by the strategy.
type Snapshot struct {
	Time       time.Time
	Price      fixed.Price
	Candles    []market.Candle
	Position   *order.Position // nil when nothing is held
	Balance    fixed.Price
	Commission fixed.Price
	LotSize    int64
	Pending    []order.Operation
}

// HeldLots returns the lots of the current position, or zero.
func (s Snapshot) HeldLots() int64 {
	if s.Position == nil {
		return 0
	}
	return s.Position.Lots
}

// Cache is threaded from one decision to the next. It currently carries only
// the identity of the strategy that produced it.
type Cache struct {
	strategy string
}

// Strategy names the strategy that owns the cache, empty for a fresh cache.
func (c Cache) Strategy() string { return c.strategy }

// IsZero reports whether the cache has never been returned by Decide.
func (c Cache) IsZero() bool { return c.strategy == "" }

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Lots   int64
	Cache  Cache
}

func (d Decision) String() string {
	if d.Action == ActionWait {
		return string(d.Action)
	}
	return fmt.Sprintf("%s(%d)", d.Action, d.Lots)
}

func wait(cache Cache) Decision { return Decision{Action: ActionWait, Cache: cache} }

func buy(lots int64, cache Cache) Decision {
	if lots <= 0 {
		return wait(cache)
	}
	return Decision{Action: ActionBuy, Lots: lots, Cache: cache}
}

func sell(lots int64, cache Cache) Decision {
	if lots <= 0 {
		return wait(cache)
	}
	return Decision{Action: ActionSell, Lots: lots, Cache: cache}
}
