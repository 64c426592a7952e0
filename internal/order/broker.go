package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"backtest-core/internal/balance"
	"backtest-core/internal/schedule"
	"backtest-core/pkg/fixed"
)

var (
	ErrClockExhausted       = errors.New("virtual clock exhausted")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrInvalidOrder         = errors.New("invalid order")
)

// VirtualConfig seeds a VirtualBroker.
type VirtualConfig struct {
	Ticker         string
	Currency       string
	LotSize        int64
	Commission     fixed.Price
	InitialBalance fixed.Price
	From, To       time.Time
	Step           time.Duration // defaults to one minute
}

// VirtualBroker fills every order immediately against an in-memory account
// while a virtual clock walks from From to To. It does no I/O and no locking:
// one broker belongs to exactly one run.
type VirtualBroker struct {
	cfg       VirtualConfig
	now       time.Time
	cash      fixed.Price
	position  Position
	ops       []Operation
	positions []PositionSnapshot
	ledger    *balance.Ledger
}

func NewVirtualBroker(cfg VirtualConfig) (*VirtualBroker, error) {
	if cfg.LotSize <= 0 {
		return nil, fmt.Errorf("virtual broker: lot size must be > 0, got %d", cfg.LotSize)
	}
	if cfg.InitialBalance.IsNegative() {
		return nil, fmt.Errorf("virtual broker: negative initial balance %v", cfg.InitialBalance)
	}
	if cfg.To.Before(cfg.From) {
		return nil, fmt.Errorf("virtual broker: to %v is before from %v", cfg.To, cfg.From)
	}
	if cfg.Step <= 0 {
		cfg.Step = time.Minute
	}
	ledger := balance.NewLedger()
	if err := ledger.Deposit(cfg.Currency, cfg.From, cfg.InitialBalance); err != nil {
		return nil, err
	}
	return &VirtualBroker{
		cfg:  cfg,
		now:  cfg.From,
		cash: cfg.InitialBalance,
		position: Position{
			Ticker:   cfg.Ticker,
			Currency: cfg.Currency,
			LotSize:  cfg.LotSize,
		},
		ledger: ledger,
	}, nil
}

// Advance moves the clock forward by one step. It returns ErrClockExhausted,
// leaving the clock untouched, when that step would pass To.
func (b *VirtualBroker) Advance() error {
	next := b.now.Add(b.cfg.Step)
	if next.After(b.cfg.To) {
		return ErrClockExhausted
	}
	b.now = next
	return nil
}

// Buy purchases lots at price, debiting price*quantity*(1+commission).
func (b *VirtualBroker) Buy(lots int64, price fixed.Price) (Operation, error) {
	if lots <= 0 || !price.IsPositive() {
		return Operation{}, fmt.Errorf("%w: buy %d lots at %v", ErrInvalidOrder, lots, price)
	}
	qty := lots * b.cfg.LotSize
	gross := price.MulInt(qty)
	total := BuyCost(price, b.cfg.LotSize, lots, b.cfg.Commission)
	if total.GreaterThan(b.cash) {
		return Operation{}, fmt.Errorf("%w: need %v, have %v", ErrInsufficientFunds, total, b.cash)
	}

	held := b.position.Quantity()
	cost := b.position.AveragePrice.MulInt(held).Add(gross)
	b.position.Lots += lots
	b.position.AveragePrice = cost.DivInt(b.position.Quantity(), fixed.HalfUp)
	b.cash = b.cash.Sub(total)

	return b.record(SideBuy, price, lots, total.Sub(gross), total), nil
}

// Sell disposes of lots at price, crediting price*quantity*(1-commission).
func (b *VirtualBroker) Sell(lots int64, price fixed.Price) (Operation, error) {
	if lots <= 0 || !price.IsPositive() {
		return Operation{}, fmt.Errorf("%w: sell %d lots at %v", ErrInvalidOrder, lots, price)
	}
	if lots > b.position.Lots {
		return Operation{}, fmt.Errorf("%w: sell %d lots, hold %d", ErrInsufficientPosition, lots, b.position.Lots)
	}
	gross := price.MulInt(lots * b.cfg.LotSize)
	proceeds := SellProceeds(price, b.cfg.LotSize, lots, b.cfg.Commission)

	b.position.Lots -= lots
	if b.position.Lots == 0 {
		b.position.AveragePrice = fixed.Zero
	}
	b.cash = b.cash.Add(proceeds)

	return b.record(SideSell, price, lots, gross.Sub(proceeds), proceeds), nil
}

func (b *VirtualBroker) record(side Side, price fixed.Price, lots int64, commission, total fixed.Price) Operation {
	op := Operation{
		ID:         uuid.NewString(),
		Time:       b.now,
		Ticker:     b.cfg.Ticker,
		Side:       side,
		Price:      price,
		Lots:       lots,
		Quantity:   lots * b.cfg.LotSize,
		Commission: commission,
		Total:      total,
	}
	b.ops = append(b.ops, op)
	b.positions = append(b.positions, PositionSnapshot{Time: b.now, Position: b.position})
	return op
}

// ApplyScheduledIncrement credits amount when the current virtual time
// matches sched, recording it as a dated deposit. It reports whether a
// deposit happened.
func (b *VirtualBroker) ApplyScheduledIncrement(sched schedule.Predicate, amount fixed.Price) bool {
	if sched == nil || !amount.IsPositive() || !sched.Matches(b.now) {
		return false
	}
	if err := b.ledger.Deposit(b.cfg.Currency, b.now, amount); err != nil {
		return false
	}
	b.cash = b.cash.Add(amount)
	return true
}

func (b *VirtualBroker) Now() time.Time { return b.now }
func (b *VirtualBroker) Cash() fixed.Price { return b.cash }
func (b *VirtualBroker) Currency() string { return b.cfg.Currency }
func (b *VirtualBroker) LotSize() int64 { return b.cfg.LotSize }
func (b *VirtualBroker) Commission() fixed.Price { return b.cfg.Commission }
func (b *VirtualBroker) Ledger() *balance.Ledger { return b.ledger }

// Position returns the current position, or nil when nothing is held.
func (b *VirtualBroker) Position() *Position {
	if b.position.IsEmpty() {
		return nil
	}
	p := b.position
	return &p
}

// Operations returns a copy of the executed operations in time order.
func (b *VirtualBroker) Operations() []Operation {
	out := make([]Operation, len(b.ops))
	copy(out, b.ops)
	return out
}

// Positions returns a copy of the position history.
func (b *VirtualBroker) Positions() []PositionSnapshot {
	out := make([]PositionSnapshot, len(b.positions))
	copy(out, b.positions)
	return out
}

// Pending lists unsettled operations. Fills are immediate, so it is always empty.
func (b *VirtualBroker) Pending() []Operation { return nil }

// TotalValue is cash plus the held position marked at price.
func (b *VirtualBroker) TotalValue(price fixed.Price) fixed.Price {
	return b.cash.Add(b.position.MarketValue(price))
}
