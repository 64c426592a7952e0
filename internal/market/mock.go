package market

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"backtest-core/pkg/fixed"
)

// GeneratedSource produces a deterministic random-walk candle series for
// offline runs. The same ticker and range always yield the same candles.
type GeneratedSource struct {
	StartPrice float64
	Step       float64 // maximum absolute move per candle
	Seed       int64
}

func (g *GeneratedSource) Candles(ctx context.Context, ticker string, interval Interval, from, to time.Time) ([]Candle, error) {
	step := interval.Duration()
	if step == 0 {
		return nil, errors.New("generated source: unsupported interval " + string(interval))
	}
	if !from.Before(to) {
		return nil, nil
	}

	price := g.StartPrice
	if price <= 0 {
		price = 100.0
	}
	move := g.Step
	if move <= 0 {
		move = price * 0.01
	}
	floor := price * 0.01

	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(g.Seed ^ int64(h.Sum64()) ^ from.Unix()))

	start := from.Truncate(step)
	if start.Before(from) {
		start = start.Add(step)
	}

	candles := make([]Candle, 0, int(to.Sub(start)/step)+1)
	for t := start; !t.After(to); t = t.Add(step) {
		if len(candles)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		open := price
		price = math.Max(floor, price+(rng.Float64()*2-1)*move)
		hi := math.Max(open, price) + rng.Float64()*move/2
		lo := math.Max(floor, math.Min(open, price)-rng.Float64()*move/2)
		candles = append(candles, Candle{
			Time:   t,
			Open:   cents(open),
			High:   cents(hi),
			Low:    cents(lo),
			Close:  cents(price),
			Volume: fixed.FromInt(int64(100 + rng.Intn(900))),
		})
	}
	return candles, nil
}

func cents(v float64) fixed.Price {
	return fixed.FromFloat(math.Round(v*100) / 100)
}
