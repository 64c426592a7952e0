package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"backtest-core/internal/backtest"
)

var csvHeader = []string{
	"run_id", "batch_id", "strategy", "ticker", "from", "to",
	"initial_balance", "total_investment", "final_balance", "final_total_balance",
	"weighted_average_investment", "absolute_profit", "relative_profit", "relative_year_profit",
	"operations", "error",
}

// CSVExporter appends one spreadsheet row per run to a file, writing the
// header when the file is new.
type CSVExporter struct {
	path string
	mu   sync.Mutex
}

func NewCSVExporter(path string) *CSVExporter {
	return &CSVExporter{path: path}
}

func (e *CSVExporter) Export(_ context.Context, results []backtest.Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if dir := filepath.Dir(e.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}
	info, statErr := os.Stat(e.path)
	fresh := os.IsNotExist(statErr) || (statErr == nil && info.Size() == 0)

	f, err := os.OpenFile(e.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}
	for _, r := range results {
		if err := w.Write(row(r)); err != nil {
			return fmt.Errorf("csv export: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csv export: %w", err)
	}
	return nil
}

func row(r backtest.Result) []string {
	return []string{
		r.ID, r.BatchID, r.Strategy, r.Ticker,
		r.From.Format(time.RFC3339), r.To.Format(time.RFC3339),
		r.InitialBalance.String(), r.TotalInvestment.String(),
		r.FinalBalance.String(), r.FinalTotalBalance.String(),
		r.WeightedAverageInvestment.String(), r.AbsoluteProfit.String(),
		r.RelativeProfit.String(), r.RelativeYearProfit.String(),
		strconv.Itoa(len(r.Operations)), r.Error,
	}
}
