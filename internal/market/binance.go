package market

import (
	"context"
	"strings"
	"time"

	"backtest-core/pkg/fixed"
	"backtest-core/pkg/market/binance"
)

// BinanceSource loads historical klines from the Binance spot REST API.
type BinanceSource struct {
	Client *binance.Client
}

func NewBinanceSource(baseURL string, rps float64) *BinanceSource {
	return &BinanceSource{Client: binance.NewClient(baseURL, rps)}
}

func (s *BinanceSource) Candles(ctx context.Context, ticker string, interval Interval, from, to time.Time) ([]Candle, error) {
	if _, err := ParseInterval(string(interval)); err != nil {
		return nil, err
	}
	klines, err := s.Client.KlinesRange(ctx, strings.ToUpper(ticker), string(interval), from, to)
	if err != nil {
		return nil, err
	}
	candles := make([]Candle, len(klines))
	for i, k := range klines {
		candles[i] = Candle{
			Time:   k.OpenTime,
			Open:   fixed.FromDecimal(k.Open),
			High:   fixed.FromDecimal(k.High),
			Low:    fixed.FromDecimal(k.Low),
			Close:  fixed.FromDecimal(k.Close),
			Volume: fixed.FromDecimal(k.Volume),
		}
	}
	return candles, nil
}
