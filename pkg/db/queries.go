package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

// Queries groups the backtest read/write statements.
type Queries struct {
	db *sql.DB
}

func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

func (d *Database) Queries() *Queries {
	return NewQueries(d.DB)
}

const runColumns = `id, batch_id, strategy, spec, ticker, currency, from_ms, to_ms,
	initial_balance, total_investment, final_balance, final_total_balance,
	weighted_average_investment, absolute_profit, relative_profit, relative_year_profit,
	operations_count, error, elapsed_ms, created_at`

// SaveRuns writes runs and their operations in a single transaction.
// ops is keyed by run ID.
func (q *Queries) SaveRuns(ctx context.Context, runs []Run, ops map[string][]Operation) error {
	if len(runs) == 0 {
		return nil
	}
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	runStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_runs (id, batch_id, strategy, spec, ticker, currency, from_ms, to_ms,
			initial_balance, total_investment, final_balance, final_total_balance,
			weighted_average_investment, absolute_profit, relative_profit, relative_year_profit,
			operations_count, error, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare run insert: %w", err)
	}
	defer runStmt.Close()

	opStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_operations (id, run_id, time_ms, side, price, lots, quantity, commission, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare operation insert: %w", err)
	}
	defer opStmt.Close()

	for _, r := range runs {
		if _, err := runStmt.ExecContext(ctx,
			r.ID, r.BatchID, r.Strategy, r.Spec, r.Ticker, r.Currency,
			r.From.UnixMilli(), r.To.UnixMilli(),
			r.InitialBalance, r.TotalInvestment, r.FinalBalance, r.FinalTotalBalance,
			r.WeightedAverageInvestment, r.AbsoluteProfit, r.RelativeProfit, r.RelativeYearProfit,
			r.OperationsCount, r.Error, r.Elapsed.Milliseconds(),
		); err != nil {
			return fmt.Errorf("insert run %s: %w", r.ID, err)
		}
		for _, op := range ops[r.ID] {
			if _, err := opStmt.ExecContext(ctx,
				op.ID, r.ID, op.Time.UnixMilli(), op.Side, op.Price,
				op.Lots, op.Quantity, op.Commission, op.Total,
			); err != nil {
				return fmt.Errorf("insert operation %s: %w", op.ID, err)
			}
		}
	}
	return tx.Commit()
}

// GetRun loads one run by ID.
func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns returns the newest runs first.
func (q *Queries) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var (
		where []string
		args  []any
	)
	if f.Ticker != "" {
		where = append(where, "ticker = ?")
		args = append(args, f.Ticker)
	}
	if f.BatchID != "" {
		where = append(where, "batch_id = ?")
		args = append(args, f.BatchID)
	}
	query := `SELECT ` + runColumns + ` FROM backtest_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListOperations returns a run's operations in time order.
func (q *Queries) ListOperations(ctx context.Context, runID string) ([]Operation, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, run_id, time_ms, side, price, lots, quantity, commission, total
		FROM backtest_operations
		WHERE run_id = ?
		ORDER BY time_ms, rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var (
			op     Operation
			timeMs int64
		)
		if err := rows.Scan(&op.ID, &op.RunID, &timeMs, &op.Side, &op.Price,
			&op.Lots, &op.Quantity, &op.Commission, &op.Total); err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		op.Time = time.UnixMilli(timeMs).UTC()
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var (
		r                    Run
		fromMs, toMs, elapse int64
		created              sql.NullString
	)
	err := s.Scan(&r.ID, &r.BatchID, &r.Strategy, &r.Spec, &r.Ticker, &r.Currency, &fromMs, &toMs,
		&r.InitialBalance, &r.TotalInvestment, &r.FinalBalance, &r.FinalTotalBalance,
		&r.WeightedAverageInvestment, &r.AbsoluteProfit, &r.RelativeProfit, &r.RelativeYearProfit,
		&r.OperationsCount, &r.Error, &elapse, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.From = time.UnixMilli(fromMs).UTC()
	r.To = time.UnixMilli(toMs).UTC()
	r.Elapsed = time.Duration(elapse) * time.Millisecond
	if created.Valid {
		r.CreatedAt = parseTimestamp(created.String)
	}
	return r, nil
}

// The driver may hand DATETIME columns back either raw or already formatted.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
