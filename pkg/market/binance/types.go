package binance

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kline is one candlestick as returned by /api/v3/klines.
type Kline struct {
	OpenTime       time.Time
	Open           decimal.Decimal
	High           decimal.Decimal
	Low            decimal.Decimal
	Close          decimal.Decimal
	Volume         decimal.Decimal // base asset volume
	CloseTime      time.Time
	QuoteVolume    decimal.Decimal
	NumberOfTrades int64
}
