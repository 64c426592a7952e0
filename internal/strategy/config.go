package strategy

import (
	"fmt"

	"backtest-core/internal/indicators"
	"backtest-core/pkg/fixed"
)

// Config is the closed set of strategy configurations: ConservativeConfig
// and CrossConfig.
type Config interface {
	// Name is a stable, human-readable bot name.
	Name() string
	Validate() error
	isConfig()
}

// ConservativeConfig buys whatever the balance allows and never sells.
type ConservativeConfig struct {
	MinimumProfit fixed.Price
}

func NewConservative(minimumProfit fixed.Price) (ConservativeConfig, error) {
	c := ConservativeConfig{MinimumProfit: minimumProfit}
	return c, c.Validate()
}

func (c ConservativeConfig) Name() string { return "conservative" }

func (c ConservativeConfig) Validate() error {
	if c.MinimumProfit.IsNegative() {
		return fmt.Errorf("%w: minimum profit must be >= 0, got %v", ErrInvalidArgument, c.MinimumProfit)
	}
	return nil
}

func (ConservativeConfig) isConfig() {}

// CrossConfig trades moving-average crossovers of two windows.
type CrossConfig struct {
	Averager         indicators.Averager
	SmallWindow      int
	BigWindow        int
	IndexCoefficient fixed.Price // position of the expected crossover in [0, 1]
	Greedy           bool        // buy instead of waiting on a non-qualifying sell signal
	MinimumProfit    fixed.Price
	Order            int
}

func NewCross(averager indicators.Averager, small, big int, coefficient fixed.Price, greedy bool, minimumProfit fixed.Price, order int) (CrossConfig, error) {
	c := CrossConfig{
		Averager:         averager,
		SmallWindow:      small,
		BigWindow:        big,
		IndexCoefficient: coefficient,
		Greedy:           greedy,
		MinimumProfit:    minimumProfit,
		Order:            order,
	}
	return c, c.Validate()
}

func (c CrossConfig) Name() string {
	name := fmt.Sprintf("cross-%s-%d-%d-k%s-o%d-p%s", c.Averager, c.SmallWindow, c.BigWindow,
		c.IndexCoefficient, c.Order, c.MinimumProfit)
	if c.Greedy {
		name += "-greedy"
	}
	return name
}

func (c CrossConfig) Validate() error {
	switch {
	case c.Averager < indicators.Simple || c.Averager > indicators.Exponential:
		return fmt.Errorf("%w: unknown averager %v", ErrInvalidArgument, c.Averager)
	case c.SmallWindow <= 0 || c.BigWindow <= 0:
		return fmt.Errorf("%w: windows must be > 0, got %d/%d", ErrInvalidArgument, c.SmallWindow, c.BigWindow)
	case c.Order <= 0:
		return fmt.Errorf("%w: order must be > 0, got %d", ErrInvalidArgument, c.Order)
	case c.IndexCoefficient.IsNegative() || c.IndexCoefficient.GreaterThan(fixed.One):
		return fmt.Errorf("%w: index coefficient must be in [0, 1], got %v", ErrInvalidArgument, c.IndexCoefficient)
	case c.MinimumProfit.IsNegative():
		return fmt.Errorf("%w: minimum profit must be >= 0, got %v", ErrInvalidArgument, c.MinimumProfit)
	}
	return nil
}

func (CrossConfig) isConfig() {}

// CheckInstruments rejects instrument lists a strategy cannot trade.
// Conservative handles exactly one instrument per run.
func CheckInstruments(cfg Config, tickers []string) error {
	if len(tickers) == 0 {
		return fmt.Errorf("%w: no instrument given", ErrInvalidArgument)
	}
	if _, ok := cfg.(ConservativeConfig); ok && len(tickers) > 1 {
		return fmt.Errorf("%w: %s supports a single instrument, got %d", ErrInvalidArgument, cfg.Name(), len(tickers))
	}
	return nil
}
