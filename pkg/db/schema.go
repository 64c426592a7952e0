package db

import "fmt"

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS backtest_runs (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    strategy TEXT NOT NULL,
    spec TEXT NOT NULL,
    ticker TEXT NOT NULL,
    currency TEXT DEFAULT '',
    from_ms INTEGER NOT NULL,
    to_ms INTEGER NOT NULL,
    initial_balance TEXT NOT NULL,
    total_investment TEXT NOT NULL,
    final_balance TEXT NOT NULL,
    final_total_balance TEXT NOT NULL,
    weighted_average_investment TEXT NOT NULL,
    absolute_profit TEXT NOT NULL,
    relative_profit TEXT NOT NULL,
    relative_year_profit TEXT NOT NULL,
    operations_count INTEGER DEFAULT 0,
    error TEXT DEFAULT '',
    elapsed_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_backtest_runs_batch ON backtest_runs(batch_id);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_ticker ON backtest_runs(ticker);

CREATE TABLE IF NOT EXISTS backtest_operations (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    time_ms INTEGER NOT NULL,
    side TEXT NOT NULL,
    price TEXT NOT NULL,
    lots INTEGER NOT NULL,
    quantity INTEGER NOT NULL,
    commission TEXT NOT NULL,
    total TEXT NOT NULL,
    FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_backtest_operations_run ON backtest_operations(run_id, time_ms);
`

// ApplyMigrations creates the tables and indexes. It is safe to run on an
// existing database.
func ApplyMigrations(d *Database) error {
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
