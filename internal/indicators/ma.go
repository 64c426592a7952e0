package indicators

import (
	"errors"
	"fmt"
	"strings"

	"backtest-core/pkg/fixed"
)

// ErrInvalidArgument is returned for non-positive windows or orders.
var ErrInvalidArgument = errors.New("invalid argument")

// Averager selects a moving-average algorithm.
type Averager int

const (
	Simple Averager = iota
	Linear
	Exponential
)

func (a Averager) String() string {
	switch a {
	case Simple:
		return "sma"
	case Linear:
		return "lwma"
	case Exponential:
		return "ema"
	default:
		return fmt.Sprintf("averager(%d)", int(a))
	}
}

// ParseAverager accepts the short names ("sma", "lwma", "ema") and a few
// long-form aliases.
func ParseAverager(s string) (Averager, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sma", "simple":
		return Simple, nil
	case "lwma", "linear", "wma":
		return Linear, nil
	case "ema", "exponential":
		return Exponential, nil
	}
	return 0, fmt.Errorf("%w: unknown averager %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Averager) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Averager) UnmarshalText(text []byte) error {
	v, err := ParseAverager(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Averages applies the averager order times over values and returns a series
// of the same length. Each pass reads the output of the previous one.
func Averages(kind Averager, values []fixed.Price, window, order int) ([]fixed.Price, error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %d", ErrInvalidArgument, window)
	}
	if order <= 0 {
		return nil, fmt.Errorf("%w: order must be positive, got %d", ErrInvalidArgument, order)
	}

	var pass func([]fixed.Price, int) []fixed.Price
	switch kind {
	case Simple:
		pass = SimpleMovingAverage
	case Linear:
		pass = LinearWeightedMovingAverage
	case Exponential:
		pass = ExponentialMovingAverage
	default:
		return nil, fmt.Errorf("%w: unknown averager %d", ErrInvalidArgument, int(kind))
	}

	out := values
	for i := 0; i < order; i++ {
		out = pass(out, window)
	}
	return out, nil
}

// SimpleMovingAverage is one pass of the simple average. The first window
// points use a growing cumulative mean; later points slide incrementally,
// dividing each term separately to keep rounding error bounded.
func SimpleMovingAverage(values []fixed.Price, window int) []fixed.Price {
	out := make([]fixed.Price, len(values))
	sum := fixed.Zero
	for i, v := range values {
		if i < window {
			sum = sum.Add(v)
			out[i] = sum.DivInt(int64(i+1), fixed.HalfUp)
			continue
		}
		out[i] = out[i-1].
			Sub(values[i-window].DivInt(int64(window), fixed.HalfUp)).
			Add(v.DivInt(int64(window), fixed.HalfUp))
	}
	return out
}

// LinearWeightedMovingAverage is one pass of the linearly weighted average:
// the newest point weighs eff, the oldest weighs 1.
func LinearWeightedMovingAverage(values []fixed.Price, window int) []fixed.Price {
	out := make([]fixed.Price, len(values))
	for i := range values {
		eff := min(window, i+1)
		divisor := int64(eff * (eff + 1) / 2)
		sum := fixed.Zero
		for k := 0; k < eff; k++ {
			sum = sum.Add(values[i-k].MulInt(int64(eff - k)))
		}
		out[i] = sum.DivInt(divisor, fixed.HalfUp)
	}
	return out
}

// ExponentialMovingAverage is one pass of the exponential average with
// smoothing 2/(window+1), seeded with the first value.
func ExponentialMovingAverage(values []fixed.Price, window int) []fixed.Price {
	out := make([]fixed.Price, len(values))
	if len(values) == 0 {
		return out
	}
	weight := fixed.FromInt(2).DivInt(int64(window+1), fixed.HalfUp)

	// One rounding per step: prev + w*(v-prev) keeps a constant series exact.
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1].Add(values[i].Sub(out[i-1]).Mul(weight, fixed.HalfUp))
	}
	return out
}
