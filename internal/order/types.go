package order

import (
	"time"

	"backtest-core/pkg/fixed"
)

// Side is the direction of an operation.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Operation is one executed (simulated) trade.
type Operation struct {
	ID         string      `json:"id"`
	Time       time.Time   `json:"time"`
	Ticker     string      `json:"ticker"`
	Side       Side        `json:"side"`
	Price      fixed.Price `json:"price"`
	Lots       int64       `json:"lots"`
	Quantity   int64       `json:"quantity"` // lots * lot size
	Commission fixed.Price `json:"commission"`
	Total      fixed.Price `json:"total"` // cash debited (BUY) or credited (SELL)
}

// Gross is price * quantity before commission.
func (o Operation) Gross() fixed.Price {
	return o.Price.MulInt(o.Quantity)
}

// Position is a held amount of one instrument.
type Position struct {
	Ticker       string      `json:"ticker"`
	Currency     string      `json:"currency"`
	Lots         int64       `json:"lots"`
	LotSize      int64       `json:"lot_size"`
	AveragePrice fixed.Price `json:"average_price"`
}

// Quantity returns the number of underlying units held.
func (p Position) Quantity() int64 { return p.Lots * p.LotSize }

// IsEmpty reports whether nothing is held.
func (p Position) IsEmpty() bool { return p.Lots == 0 }

// MarketValue values the position at price, without commission.
func (p Position) MarketValue(price fixed.Price) fixed.Price {
	return price.MulInt(p.Quantity())
}

// PositionSnapshot records the position right after an operation.
type PositionSnapshot struct {
	Time     time.Time `json:"time"`
	Position Position  `json:"position"`
}

// BuyCost is the cash needed to buy lots at price, commission included.
func BuyCost(price fixed.Price, lotSize, lots int64, commission fixed.Price) fixed.Price {
	return price.MulInt(lots * lotSize).Mul(fixed.One.Add(commission), fixed.HalfUp)
}

// SellProceeds is the cash received for selling lots at price, net of commission.
func SellProceeds(price fixed.Price, lotSize, lots int64, commission fixed.Price) fixed.Price {
	return price.MulInt(lots * lotSize).Mul(fixed.One.Sub(commission), fixed.HalfUp)
}
