// Package instrument maps human tickers to the trading parameters a backtest
// needs: lot size, currency and commission rate.
package instrument

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"backtest-core/pkg/fixed"
)

// ErrNotFound is returned when a ticker is unknown.
var ErrNotFound = errors.New("instrument not found")

// Instrument describes a tradable asset.
type Instrument struct {
	Ticker     string      `yaml:"ticker" json:"ticker"`
	Currency   string      `yaml:"currency" json:"currency"`
	LotSize    int64       `yaml:"lot_size" json:"lot_size"`
	Commission fixed.Price `yaml:"commission" json:"commission"`
}

// Validate checks lot size and commission bounds.
func (i Instrument) Validate() error {
	if strings.TrimSpace(i.Ticker) == "" {
		return fmt.Errorf("instrument: empty ticker")
	}
	if i.LotSize <= 0 {
		return fmt.Errorf("instrument %s: lot_size must be > 0, got %d", i.Ticker, i.LotSize)
	}
	if i.Commission.IsNegative() || i.Commission.GreaterThanOrEqual(fixed.One) {
		return fmt.Errorf("instrument %s: commission must be in [0, 1), got %v", i.Ticker, i.Commission)
	}
	return nil
}

// Resolver looks up instruments by ticker.
type Resolver interface {
	Resolve(ctx context.Context, ticker string) (Instrument, error)
}

// Registry is an in-memory Resolver. Tickers are matched case-insensitively.
type Registry struct {
	mu    sync.RWMutex
	items map[string]Instrument
}

func NewRegistry(items ...Instrument) (*Registry, error) {
	r := &Registry{items: make(map[string]Instrument, len(items))}
	for _, it := range items {
		if err := r.Add(it); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and stores it, replacing any instrument with the same ticker.
func (r *Registry) Add(it Instrument) error {
	if err := it.Validate(); err != nil {
		return err
	}
	if it.Currency == "" {
		it.Currency = "USD"
	}
	r.mu.Lock()
	r.items[key(it.Ticker)] = it
	r.mu.Unlock()
	return nil
}

func (r *Registry) Resolve(_ context.Context, ticker string) (Instrument, error) {
	r.mu.RLock()
	it, ok := r.items[key(ticker)]
	r.mu.RUnlock()
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %q", ErrNotFound, ticker)
	}
	return it, nil
}

// Tickers lists every known ticker.
func (r *Registry) Tickers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.Ticker)
	}
	return out
}

func key(ticker string) string { return strings.ToUpper(strings.TrimSpace(ticker)) }

// File is the top-level YAML structure of an instruments file.
type File struct {
	Instruments []Instrument `yaml:"instruments"`
}

// LoadRegistry reads instruments from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML bytes.
func ParseRegistry(data []byte) (*Registry, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	return NewRegistry(file.Instruments...)
}
