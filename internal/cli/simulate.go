package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"backtest-core/internal/backtest"
	"backtest-core/internal/schedule"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/config"
	"backtest-core/pkg/fixed"
)

type simulateFlags struct {
	ticker     string
	from, to   string
	initial    string
	increment  string
	cron       string
	strategies string
	persist    bool
	asJSON     bool
}

func newSimulateCmd(cfg *config.Config) *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run every configured strategy over a historical interval",
		Long: `Run every strategy from the strategies file against one instrument.
Example: backtest simulate --ticker BTCUSDT --from 2024-01-01 --to 2024-02-01 --initial 1000 --increment 100 --cron "0 9 * * 1"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("strategies") {
				f.strategies = cfg.StrategiesFile
			}
			if !cmd.Flags().Changed("persist") {
				f.persist = cfg.PersistResults
			}
			return runSimulate(cmd, cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.ticker, "ticker", "", "Instrument ticker")
	cmd.Flags().StringVar(&f.from, "from", "", "Interval start, YYYY-MM-DD or RFC3339")
	cmd.Flags().StringVar(&f.to, "to", "", "Interval end, YYYY-MM-DD or RFC3339")
	cmd.Flags().StringVar(&f.initial, "initial", "0", "Initial balance")
	cmd.Flags().StringVar(&f.increment, "increment", "", "Amount credited on every cron slot")
	cmd.Flags().StringVar(&f.cron, "cron", "", "Cron expression for balance increments")
	cmd.Flags().StringVar(&f.strategies, "strategies", "", "Strategies YAML file (default STRATEGIES_FILE)")
	cmd.Flags().BoolVar(&f.persist, "persist", false, "Export results to the configured sinks")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print results as JSON")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func runSimulate(cmd *cobra.Command, cfg *config.Config, f simulateFlags) error {
	req, err := buildRequest(f)
	if err != nil {
		return err
	}

	a, err := buildApp(cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	results, err := a.sim.Simulate(ctx, req)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	summary := backtest.Summarize(results)

	out := cmd.OutOrStdout()
	if f.asJSON {
		for i := range results {
			results[i].Candles = nil
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Results []backtest.Result `json:"results"`
			Summary backtest.Summary  `json:"summary"`
		}{results, summary})
	}
	fmt.Fprintln(out, renderResults(req, results, summary, time.Since(started)))
	return nil
}

func buildRequest(f simulateFlags) (backtest.Request, error) {
	from, err := parseTime(f.from)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("--from: %w", err)
	}
	to, err := parseTime(f.to)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("--to: %w", err)
	}
	initial, err := fixed.Parse(f.initial)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("--initial: %w", err)
	}
	var increment *fixed.Price
	if f.increment != "" {
		v, err := fixed.Parse(f.increment)
		if err != nil {
			return backtest.Request{}, fmt.Errorf("--increment: %w", err)
		}
		increment = &v
	}
	sched, err := schedule.Parse(f.cron)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("--cron: %w", err)
	}
	configs, err := strategy.LoadConfigs(f.strategies)
	if err != nil {
		return backtest.Request{}, fmt.Errorf("load strategies: %w", err)
	}
	return backtest.Request{
		Ticker:           strings.ToUpper(strings.TrimSpace(f.ticker)),
		InitialBalance:   initial,
		BalanceIncrement: increment,
		Schedule:         sched,
		Strategies:       configs,
		From:             from,
		To:               to,
		Persist:          f.persist,
	}, nil
}

// parseTime accepts a bare date (UTC midnight) or a full RFC3339 timestamp.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, use YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
