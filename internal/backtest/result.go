package backtest

import (
	"time"

	"backtest-core/internal/balance"
	"backtest-core/internal/market"
	"backtest-core/internal/order"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/fixed"
)

// Result is the outcome of one strategy run over the requested interval.
type Result struct {
	ID       string        `json:"id"`
	BatchID  string        `json:"batch_id"`
	Strategy string        `json:"strategy"`
	Spec     strategy.Spec `json:"spec"`
	Ticker   string        `json:"ticker"`
	Currency string        `json:"currency,omitempty"`
	From     time.Time     `json:"from"`
	To       time.Time     `json:"to"`

	InitialBalance            fixed.Price `json:"initial_balance"`
	TotalInvestment           fixed.Price `json:"total_investment"`
	FinalBalance              fixed.Price `json:"final_balance"`
	FinalTotalBalance         fixed.Price `json:"final_total_balance"`
	WeightedAverageInvestment fixed.Price `json:"weighted_average_investment"`
	AbsoluteProfit            fixed.Price `json:"absolute_profit"`
	RelativeProfit            fixed.Price `json:"relative_profit"`
	RelativeYearProfit        fixed.Price `json:"relative_year_profit"`

	Candles    []market.Candle          `json:"candles,omitempty"`
	Operations []order.Operation        `json:"operations,omitempty"`
	Positions  []order.PositionSnapshot `json:"positions,omitempty"`
	Deposits   []balance.Deposit        `json:"deposits,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
	Error   string        `json:"error,omitempty"`
}

// Failed reports whether the run ended with an error.
func (r Result) Failed() bool { return r.Error != "" }

// failed resets every figure to the initial-only defaults and records err.
func (r Result) failed(err error) Result {
	r.TotalInvestment = r.InitialBalance
	r.FinalBalance = r.InitialBalance
	r.FinalTotalBalance = r.InitialBalance
	r.WeightedAverageInvestment = r.InitialBalance
	r.AbsoluteProfit = fixed.Zero
	r.RelativeProfit = fixed.Zero
	r.RelativeYearProfit = fixed.Zero
	r.Candles = nil
	r.Operations = nil
	r.Positions = nil
	r.Deposits = nil
	r.Error = err.Error()
	return r
}

const yearMillis = int64(365 * 24 * time.Hour / time.Millisecond)

// reduce fills the profitability figures from a finished broker.
func (r *Result) reduce(b *order.VirtualBroker, lastClose fixed.Price) {
	ledger := b.Ledger()
	currency := b.Currency()

	r.TotalInvestment = ledger.Total(currency)
	r.WeightedAverageInvestment = ledger.WeightedAverage(currency, r.From, r.To)
	r.FinalBalance = b.Cash()
	r.FinalTotalBalance = b.TotalValue(lastClose)
	r.AbsoluteProfit = r.FinalTotalBalance.Sub(r.TotalInvestment)
	r.Operations = b.Operations()
	r.Positions = b.Positions()
	r.Deposits = ledger.Deposits(currency)

	r.RelativeProfit = fixed.Zero
	r.RelativeYearProfit = fixed.Zero
	if r.WeightedAverageInvestment.IsPositive() {
		r.RelativeProfit = r.AbsoluteProfit.Div(r.WeightedAverageInvestment, fixed.HalfUp)
	}
	if span := r.To.Sub(r.From).Milliseconds(); span > 0 {
		r.RelativeYearProfit = r.RelativeProfit.MulInt(yearMillis).DivInt(span, fixed.HalfUp)
	}
}
