package strategy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"backtest-core/internal/indicators"
	"backtest-core/pkg/fixed"
)

// Spec is the serialised form of a Config, shared by the YAML strategy file
// and the HTTP API.
type Spec struct {
	Type             string       `yaml:"type" json:"type"`
	Averager         string       `yaml:"averager,omitempty" json:"averager,omitempty"`
	SmallWindow      int          `yaml:"small_window,omitempty" json:"small_window,omitempty"`
	BigWindow        int          `yaml:"big_window,omitempty" json:"big_window,omitempty"`
	IndexCoefficient *fixed.Price `yaml:"index_coefficient,omitempty" json:"index_coefficient,omitempty"`
	Greedy           bool         `yaml:"greedy,omitempty" json:"greedy,omitempty"`
	MinimumProfit    fixed.Price  `yaml:"minimum_profit" json:"minimum_profit"`
	Order            int          `yaml:"order,omitempty" json:"order,omitempty"`
}

// ConfigFile represents the top-level YAML structure.
type ConfigFile struct {
	Strategies []Spec `yaml:"strategies"`
}

// Config builds and validates the Config described by s. A missing averager
// means SMA, a missing order means 1 and a missing index coefficient means
// the last candle.
func (s Spec) Config() (Config, error) {
	switch strings.ToLower(strings.TrimSpace(s.Type)) {
	case "conservative":
		return NewConservative(s.MinimumProfit)
	case "cross", "golden_cross", "golden-cross":
		averager := indicators.Simple
		if s.Averager != "" {
			a, err := indicators.ParseAverager(s.Averager)
			if err != nil {
				return nil, err
			}
			averager = a
		}
		order := s.Order
		if order == 0 {
			order = 1
		}
		coefficient := fixed.One
		if s.IndexCoefficient != nil {
			coefficient = *s.IndexCoefficient
		}
		return NewCross(averager, s.SmallWindow, s.BigWindow, coefficient, s.Greedy, s.MinimumProfit, order)
	default:
		return nil, fmt.Errorf("%w: unknown strategy type %q", ErrInvalidArgument, s.Type)
	}
}

// SpecOf is the inverse of Spec.Config.
func SpecOf(cfg Config) Spec {
	switch c := cfg.(type) {
	case ConservativeConfig:
		return Spec{Type: "conservative", MinimumProfit: c.MinimumProfit}
	case CrossConfig:
		k := c.IndexCoefficient
		return Spec{
			Type:             "cross",
			Averager:         c.Averager.String(),
			SmallWindow:      c.SmallWindow,
			BigWindow:        c.BigWindow,
			IndexCoefficient: &k,
			Greedy:           c.Greedy,
			MinimumProfit:    c.MinimumProfit,
			Order:            c.Order,
		}
	}
	return Spec{}
}

// Configs converts every spec, failing on the first invalid one.
func Configs(specs []Spec) ([]Config, error) {
	out := make([]Config, 0, len(specs))
	for i, s := range specs {
		cfg, err := s.Config()
		if err != nil {
			return nil, fmt.Errorf("strategy #%d: %w", i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

// LoadConfigs reads strategies from a YAML file.
func LoadConfigs(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfigs(data)
}

// ParseConfigs reads strategies from YAML bytes.
func ParseConfigs(data []byte) ([]Config, error) {
	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse strategies: %w", err)
	}
	return Configs(file.Strategies)
}
