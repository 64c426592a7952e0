package market

import (
	"context"
	"fmt"
	"time"

	"backtest-core/pkg/fixed"
)

// Interval is the sampling resolution of a candle series.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the length of one candle.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1m:
		return time.Minute
	case Interval5m:
		return 5 * time.Minute
	case Interval15m:
		return 15 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval4h:
		return 4 * time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// ParseInterval validates s against the supported resolutions.
func ParseInterval(s string) (Interval, error) {
	i := Interval(s)
	if i.Duration() == 0 {
		return "", fmt.Errorf("unsupported candle interval %q", s)
	}
	return i, nil
}

// Candle is one OHLC bar. Time is the open time.
type Candle struct {
	Time   time.Time   `json:"time"`
	Open   fixed.Price `json:"open"`
	High   fixed.Price `json:"high"`
	Low    fixed.Price `json:"low"`
	Close  fixed.Price `json:"close"`
	Volume fixed.Price `json:"volume"`
}

// ClosedBy reports whether the candle is complete at t.
func (c Candle) ClosedBy(t time.Time, interval Interval) bool {
	return !c.Time.Add(interval.Duration()).After(t)
}

// Source supplies historical candles for one instrument and resolution.
// Implementations return candles ordered by time.
type Source interface {
	Candles(ctx context.Context, ticker string, interval Interval, from, to time.Time) ([]Candle, error)
}

// OpenPrices extracts the open price of every candle.
func OpenPrices(candles []Candle) []fixed.Price {
	out := make([]fixed.Price, len(candles))
	for i, c := range candles {
		out[i] = c.Open
	}
	return out
}

// LatestClose returns the close of the last candle, or zero for an empty slice.
func LatestClose(candles []Candle) fixed.Price {
	if len(candles) == 0 {
		return fixed.Zero
	}
	return candles[len(candles)-1].Close
}
