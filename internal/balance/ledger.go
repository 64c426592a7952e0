package balance

import (
	"errors"
	"sort"
	"time"

	"backtest-core/pkg/fixed"
)

// ErrNegativeDeposit is returned when a deposit amount is below zero.
var ErrNegativeDeposit = errors.New("balance: negative deposit")

// Deposit is one dated contribution of capital.
type Deposit struct {
	Time   time.Time   `json:"time"`
	Amount fixed.Price `json:"amount"`
}

// Ledger keeps the time-ordered deposits of a run, per currency.
// It is not safe for concurrent use; each run owns its own ledger.
type Ledger struct {
	deposits map[string][]Deposit
}

func NewLedger() *Ledger {
	return &Ledger{deposits: make(map[string][]Deposit)}
}

// Deposit records amount in currency at t. Deposits must arrive in time order;
// an out-of-order deposit is inserted at its sorted position.
func (l *Ledger) Deposit(currency string, t time.Time, amount fixed.Price) error {
	if amount.IsNegative() {
		return ErrNegativeDeposit
	}
	list := l.deposits[currency]
	d := Deposit{Time: t, Amount: amount}
	if n := len(list); n == 0 || !t.Before(list[n-1].Time) {
		l.deposits[currency] = append(list, d)
		return nil
	}
	i := sort.Search(len(list), func(i int) bool { return list[i].Time.After(t) })
	list = append(list, Deposit{})
	copy(list[i+1:], list[i:])
	list[i] = d
	l.deposits[currency] = list
	return nil
}

// Deposits returns a copy of the deposits in currency.
func (l *Ledger) Deposits(currency string) []Deposit {
	out := make([]Deposit, len(l.deposits[currency]))
	copy(out, l.deposits[currency])
	return out
}

// Currencies lists the currencies with at least one deposit, sorted.
func (l *Ledger) Currencies() []string {
	out := make([]string, 0, len(l.deposits))
	for c := range l.deposits {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Total is the sum of every deposit in currency.
func (l *Ledger) Total(currency string) fixed.Price {
	total := fixed.Zero
	for _, d := range l.deposits[currency] {
		total = total.Add(d.Amount)
	}
	return total
}

// WeightedAverage returns the time-weighted average capital over [from, to]:
// each deposit is weighted by the fraction of the interval it was outstanding.
// Deposits before from count for the whole interval, deposits after to count
// for nothing. An empty interval degenerates to Total.
func (l *Ledger) WeightedAverage(currency string, from, to time.Time) fixed.Price {
	span := to.Sub(from).Milliseconds()
	if span <= 0 {
		return l.Total(currency)
	}
	sum := fixed.Zero
	for _, d := range l.deposits[currency] {
		start := d.Time
		if start.Before(from) {
			start = from
		}
		if !start.Before(to) {
			continue
		}
		sum = sum.Add(d.Amount.MulInt(to.Sub(start).Milliseconds()))
	}
	return sum.DivInt(span, fixed.HalfUp)
}
