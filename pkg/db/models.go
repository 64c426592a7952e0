package db

import (
	"time"

	"backtest-core/pkg/fixed"
)

// Run is one persisted backtest run.
type Run struct {
	ID                        string
	BatchID                   string
	Strategy                  string
	Spec                      string // JSON
	Ticker                    string
	Currency                  string
	From                      time.Time
	To                        time.Time
	InitialBalance            fixed.Price
	TotalInvestment           fixed.Price
	FinalBalance              fixed.Price
	FinalTotalBalance         fixed.Price
	WeightedAverageInvestment fixed.Price
	AbsoluteProfit            fixed.Price
	RelativeProfit            fixed.Price
	RelativeYearProfit        fixed.Price
	OperationsCount           int
	Error                     string
	Elapsed                   time.Duration
	CreatedAt                 time.Time
}

// Operation is one persisted simulated trade.
type Operation struct {
	ID         string
	RunID      string
	Time       time.Time
	Side       string
	Price      fixed.Price
	Lots       int64
	Quantity   int64
	Commission fixed.Price
	Total      fixed.Price
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Ticker  string
	BatchID string
	Limit   int
}
