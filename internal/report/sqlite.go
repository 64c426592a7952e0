package report

import (
	"context"
	"encoding/json"
	"fmt"

	"backtest-core/internal/backtest"
	"backtest-core/pkg/db"
)

// SQLiteExporter stores runs and their operations in the results database.
type SQLiteExporter struct {
	queries *db.Queries
}

func NewSQLiteExporter(database *db.Database) *SQLiteExporter {
	return &SQLiteExporter{queries: database.Queries()}
}

func (e *SQLiteExporter) Export(ctx context.Context, results []backtest.Result) error {
	runs := make([]db.Run, 0, len(results))
	ops := make(map[string][]db.Operation, len(results))
	for _, r := range results {
		run, err := toRun(r)
		if err != nil {
			return err
		}
		runs = append(runs, run)
		for _, op := range r.Operations {
			ops[r.ID] = append(ops[r.ID], db.Operation{
				ID:         op.ID,
				RunID:      r.ID,
				Time:       op.Time,
				Side:       string(op.Side),
				Price:      op.Price,
				Lots:       op.Lots,
				Quantity:   op.Quantity,
				Commission: op.Commission,
				Total:      op.Total,
			})
		}
	}
	if err := e.queries.SaveRuns(ctx, runs, ops); err != nil {
		return fmt.Errorf("sqlite export: %w", err)
	}
	return nil
}

func toRun(r backtest.Result) (db.Run, error) {
	spec, err := json.Marshal(r.Spec)
	if err != nil {
		return db.Run{}, fmt.Errorf("marshal spec of %s: %w", r.ID, err)
	}
	return db.Run{
		ID:                        r.ID,
		BatchID:                   r.BatchID,
		Strategy:                  r.Strategy,
		Spec:                      string(spec),
		Ticker:                    r.Ticker,
		Currency:                  r.Currency,
		From:                      r.From,
		To:                        r.To,
		InitialBalance:            r.InitialBalance,
		TotalInvestment:           r.TotalInvestment,
		FinalBalance:              r.FinalBalance,
		FinalTotalBalance:         r.FinalTotalBalance,
		WeightedAverageInvestment: r.WeightedAverageInvestment,
		AbsoluteProfit:            r.AbsoluteProfit,
		RelativeProfit:            r.RelativeProfit,
		RelativeYearProfit:        r.RelativeYearProfit,
		OperationsCount:           len(r.Operations),
		Error:                     r.Error,
		Elapsed:                   r.Elapsed,
	}, nil
}
