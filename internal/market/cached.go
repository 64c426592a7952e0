package market

import (
	"context"
	"fmt"
	"time"

	"backtest-core/pkg/cache"
)

// CachedSource memoises another Source. Returned slices are shared between
// callers and must be treated as read-only.
type CachedSource struct {
	src   Source
	ttl   time.Duration
	cache *cache.Sharded[[]Candle]
}

// NewCachedSource wraps src. A non-positive ttl keeps entries forever.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	return &CachedSource{src: src, ttl: ttl, cache: cache.NewSharded[[]Candle]()}
}

func (s *CachedSource) Candles(ctx context.Context, ticker string, interval Interval, from, to time.Time) ([]Candle, error) {
	key := fmt.Sprintf("%s|%s|%d|%d", ticker, interval, from.UnixMilli(), to.UnixMilli())
	if candles, age, ok := s.cache.GetWithAge(key); ok && (s.ttl <= 0 || age < s.ttl) {
		return candles, nil
	}
	candles, err := s.src.Candles(ctx, ticker, interval, from, to)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, candles)
	return candles, nil
}

// Prune drops entries older than the ttl and reports how many were removed.
func (s *CachedSource) Prune() int {
	if s.ttl <= 0 {
		return 0
	}
	return s.cache.Cleanup(s.ttl)
}

// Stats reports cache occupancy.
func (s *CachedSource) Stats() cache.Stats { return s.cache.Stats() }
