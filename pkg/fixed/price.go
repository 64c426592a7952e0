// Package fixed provides the immutable fixed-point value type used for all
// money and ratio arithmetic. Values carry nine fractional digits, matching the
// broker-native "units + nano" quotation format.
package fixed

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept by every Price.
const Scale = 9

// RoundingMode selects how a result is brought back to Scale digits.
type RoundingMode int

const (
	// HalfUp rounds to nearest, ties away from zero.
	HalfUp RoundingMode = iota
	// HalfEven rounds to nearest, ties to the even neighbour.
	HalfEven
	// Down truncates toward zero.
	Down
	// Up rounds away from zero.
	Up
)

func (m RoundingMode) String() string {
	switch m {
	case HalfUp:
		return "HALF_UP"
	case HalfEven:
		return "HALF_EVEN"
	case Down:
		return "DOWN"
	case Up:
		return "UP"
	default:
		return "RoundingMode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Price is a signed decimal with Scale fractional digits. The zero value is 0.
type Price struct {
	d decimal.Decimal
}

var (
	Zero = Price{}
	One  = FromInt(1)
)

// FromUnitsNano builds a Price from the integer part and the nano part
// (billionths). Both parts carry the sign, as in the broker's quotation type.
func FromUnitsNano(units int64, nano int32) Price {
	return Price{d: decimal.New(units, 0).Add(decimal.New(int64(nano), -Scale))}
}

// FromInt returns v as a Price.
func FromInt(v int64) Price {
	return Price{d: decimal.New(v, 0)}
}

// FromFloat converts an ingested float, rounding half-up to Scale digits.
// Never use it for values produced by arithmetic.
func FromFloat(v float64) Price {
	return Price{d: decimal.NewFromFloat(v).Round(Scale)}
}

// FromDecimal converts d, rounding half-up to Scale digits.
func FromDecimal(d decimal.Decimal) Price {
	return Price{d: d.Round(Scale)}
}

// Decimal exposes the underlying value.
func (p Price) Decimal() decimal.Decimal { return p.d }

// Parse reads a decimal string. Extra fractional digits are rounded half-up.
func Parse(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse price %q: %w", s, err)
	}
	return Price{d: d.Round(Scale)}, nil
}

// MustParse is Parse that panics on malformed input. Intended for constants and tests.
func MustParse(s string) Price {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func round(d decimal.Decimal, mode RoundingMode) Price {
	switch mode {
	case HalfEven:
		return Price{d: d.RoundBank(Scale)}
	case Down:
		return Price{d: d.RoundDown(Scale)}
	case Up:
		return Price{d: d.RoundUp(Scale)}
	default:
		return Price{d: d.Round(Scale)}
	}
}

// Add returns p+o. Sums of Scale-digit values are exact.
func (p Price) Add(o Price) Price { return Price{d: p.d.Add(o.d)} }

// Sub returns p-o. Differences of Scale-digit values are exact.
func (p Price) Sub(o Price) Price { return Price{d: p.d.Sub(o.d)} }

// Neg returns -p.
func (p Price) Neg() Price { return Price{d: p.d.Neg()} }

// Abs returns |p|.
func (p Price) Abs() Price { return Price{d: p.d.Abs()} }

// MulInt returns p*n, which is always exact.
func (p Price) MulInt(n int64) Price { return Price{d: p.d.Mul(decimal.New(n, 0))} }

// Mul returns p*o rounded with mode.
func (p Price) Mul(o Price, mode RoundingMode) Price {
	return round(p.d.Mul(o.d), mode)
}

// Div returns p/o rounded with mode. It panics when o is zero, like integer division.
func (p Price) Div(o Price, mode RoundingMode) Price {
	if o.d.IsZero() {
		panic("fixed: division by zero")
	}
	q, r := p.d.QuoRem(o.d, Scale)
	if r.IsZero() {
		return Price{d: q}
	}
	step := decimal.New(1, -Scale)
	if p.d.Sign()*o.d.Sign() < 0 {
		step = step.Neg()
	}
	switch mode {
	case Down:
		return Price{d: q}
	case Up:
		return Price{d: q.Add(step)}
	}
	// Compare the remainder against half of one unit in the last place of o.
	half := o.d.Abs().Mul(decimal.New(5, -Scale-1))
	switch r.Abs().Cmp(half) {
	case 1:
		return Price{d: q.Add(step)}
	case 0:
		if mode == HalfUp {
			return Price{d: q.Add(step)}
		}
		last := q.Shift(Scale).Mod(decimal.New(2, 0))
		if !last.IsZero() {
			return Price{d: q.Add(step)}
		}
	}
	return Price{d: q}
}

// DivInt returns p/n rounded with mode.
func (p Price) DivInt(n int64, mode RoundingMode) Price {
	return p.Div(FromInt(n), mode)
}

// Cmp returns -1, 0 or +1.
func (p Price) Cmp(o Price) int { return p.d.Cmp(o.d) }

func (p Price) Equal(o Price) bool              { return p.d.Equal(o.d) }
func (p Price) LessThan(o Price) bool           { return p.d.LessThan(o.d) }
func (p Price) LessThanOrEqual(o Price) bool    { return p.d.LessThanOrEqual(o.d) }
func (p Price) GreaterThan(o Price) bool        { return p.d.GreaterThan(o.d) }
func (p Price) GreaterThanOrEqual(o Price) bool { return p.d.GreaterThanOrEqual(o.d) }

func (p Price) Sign() int        { return p.d.Sign() }
func (p Price) IsZero() bool     { return p.d.IsZero() }
func (p Price) IsNegative() bool { return p.d.IsNegative() }
func (p Price) IsPositive() bool { return p.d.IsPositive() }

// Max returns the larger of p and o.
func Max(p, o Price) Price {
	if p.GreaterThanOrEqual(o) {
		return p
	}
	return o
}

// FloorInt returns the largest integer not above p.
func (p Price) FloorInt() int64 { return p.d.Floor().IntPart() }

// Units returns the integer part, truncated toward zero.
func (p Price) Units() int64 { return p.d.Truncate(0).IntPart() }

// Nano returns the fractional part in billionths, with the sign of p.
func (p Price) Nano() int32 {
	return int32(p.d.Sub(p.d.Truncate(0)).Shift(Scale).IntPart())
}

// Float64 is for statistics and display only.
func (p Price) Float64() float64 {
	f, _ := p.d.Float64()
	return f
}

func (p Price) String() string { return p.d.String() }

// StringFixed renders p with exactly places fractional digits.
func (p Price) StringFixed(places int32) string { return p.d.StringFixed(places) }

// MarshalJSON writes p as a quoted decimal string.
func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(p.d.String())), nil
}

// UnmarshalJSON accepts a quoted string, a bare number, or a
// {"units": "...", "nano": n} quotation object.
func (p *Price) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '{' {
		var q struct {
			Units json.Number `json:"units"`
			Nano  int32       `json:"nano"`
		}
		if err := json.Unmarshal(data, &q); err != nil {
			return err
		}
		units, err := q.Units.Int64()
		if err != nil && q.Units != "" {
			return fmt.Errorf("parse quotation units %q: %w", q.Units, err)
		}
		*p = FromUnitsNano(units, q.Nano)
		return nil
	}
	s := string(data)
	if unq, err := strconv.Unquote(s); err == nil {
		s = unq
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Price) MarshalText() ([]byte, error) { return []byte(p.d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Price) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Value stores p as TEXT so SQLite keeps every digit.
func (p Price) Value() (driver.Value, error) { return p.d.String(), nil }

// Scan implements sql.Scanner.
func (p *Price) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = Zero
		return nil
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case int64:
		*p = FromInt(v)
		return nil
	case float64:
		*p = FromFloat(v)
		return nil
	default:
		return fmt.Errorf("fixed: cannot scan %T into Price", src)
	}
}
