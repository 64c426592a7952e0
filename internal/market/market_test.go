package market

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

var day = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func TestGeneratedSourceDeterministic(t *testing.T) {
	g := &GeneratedSource{StartPrice: 50, Seed: 7}
	a, err := g.Candles(context.Background(), "BTCUSDT", Interval1m, day, day.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Candles returned error: %v", err)
	}
	b, _ := g.Candles(context.Background(), "BTCUSDT", Interval1m, day, day.Add(2*time.Hour))
	if len(a) != 121 || len(a) != len(b) {
		t.Fatalf("len=%d/%d, expected 121", len(a), len(b))
	}
	for i := range a {
		if !a[i].Close.Equal(b[i].Close) {
			t.Fatalf("candle %d differs: %v vs %v", i, a[i].Close, b[i].Close)
		}
		if i > 0 && !a[i].Time.After(a[i-1].Time) {
			t.Fatalf("candle %d out of order", i)
		}
		if a[i].Low.GreaterThan(a[i].High) || !a[i].Close.IsPositive() {
			t.Fatalf("candle %d malformed: %+v", i, a[i])
		}
	}
	other, _ := g.Candles(context.Background(), "ETHUSDT", Interval1m, day, day.Add(2*time.Hour))
	same := true
	for i := range other {
		if !other[i].Close.Equal(a[i].Close) {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different tickers produced identical series")
	}
}

func TestGeneratedSourceAlignsToInterval(t *testing.T) {
	g := &GeneratedSource{}
	c, err := g.Candles(context.Background(), "X", Interval1h, day.Add(90*time.Minute), day.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Candles returned error: %v", err)
	}
	if len(c) != 4 || !c[0].Time.Equal(day.Add(2*time.Hour)) {
		t.Fatalf("candles=%d first=%v, expected 4 starting at 02:00", len(c), c[0].Time)
	}
	if _, err := g.Candles(context.Background(), "X", Interval("7m"), day, day.Add(time.Hour)); err == nil {
		t.Fatalf("unsupported interval accepted")
	}
}

type countingSource struct {
	calls int32
	err   error
}

func (s *countingSource) Candles(ctx context.Context, ticker string, interval Interval, from, to time.Time) ([]Candle, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return (&GeneratedSource{}).Candles(ctx, ticker, interval, from, to)
}

func TestCachedSource(t *testing.T) {
	src := &countingSource{}
	c := NewCachedSource(src, 0)
	for i := 0; i < 3; i++ {
		if _, err := c.Candles(context.Background(), "X", Interval1m, day, day.Add(time.Hour)); err != nil {
			t.Fatalf("Candles returned error: %v", err)
		}
	}
	if _, err := c.Candles(context.Background(), "Y", Interval1m, day, day.Add(time.Hour)); err != nil {
		t.Fatalf("Candles returned error: %v", err)
	}
	if n := atomic.LoadInt32(&src.calls); n != 2 {
		t.Fatalf("calls=%d, expected 2", n)
	}
	if got := c.Stats().TotalItems; got != 2 {
		t.Fatalf("TotalItems=%d, expected 2", got)
	}
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	boom := errors.New("boom")
	src := &countingSource{err: boom}
	c := NewCachedSource(src, time.Minute)
	for i := 0; i < 2; i++ {
		if _, err := c.Candles(context.Background(), "X", Interval1m, day, day.Add(time.Hour)); !errors.Is(err, boom) {
			t.Fatalf("err=%v, expected boom", err)
		}
	}
	if n := atomic.LoadInt32(&src.calls); n != 2 {
		t.Fatalf("calls=%d, expected 2", n)
	}
}

func TestParseInterval(t *testing.T) {
	if i, err := ParseInterval("15m"); err != nil || i.Duration() != 15*time.Minute {
		t.Fatalf("ParseInterval(15m)=%v,%v", i, err)
	}
	if _, err := ParseInterval("2w"); err == nil {
		t.Fatalf("ParseInterval(2w) succeeded")
	}
}

func TestClosedBy(t *testing.T) {
	c := Candle{Time: day}
	if c.ClosedBy(day.Add(59*time.Second), Interval1m) {
		t.Fatalf("candle closed before its end")
	}
	if !c.ClosedBy(day.Add(time.Minute), Interval1m) {
		t.Fatalf("candle not closed at its end")
	}
}
