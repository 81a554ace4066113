package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/niveditashankaranarayanan/CiTi-Team-Fall-2024-Repo-1/internal/types"
	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteJournal implements Repository using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	j := &SQLiteJournal{db: db}

	// Run migrations
	if err := j.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}

// Migrate runs database migrations.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			parent_id TEXT PRIMARY KEY,
			bot_id TEXT NOT NULL DEFAULT '',
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			target_qty INTEGER NOT NULL,
			filled_qty INTEGER NOT NULL,
			penalty_qty INTEGER NOT NULL DEFAULT 0,
			unfilled_qty INTEGER NOT NULL DEFAULT 0,
			strategy_value TEXT NOT NULL,
			liquidation_value TEXT NOT NULL,
			traded_value TEXT NOT NULL,
			penalty TEXT NOT NULL DEFAULT '0',
			cost_per_share TEXT NOT NULL,
			benchmark_price TEXT NOT NULL,
			benchmark_vwap TEXT NOT NULL,
			child_orders INTEGER NOT NULL DEFAULT 0,
			elapsed_ms INTEGER NOT NULL,
			started_at DATETIME NOT NULL,
			completed_at DATETIME NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_completed_at ON executions(completed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_symbol ON executions(symbol)`,

		`CREATE TABLE IF NOT EXISTS child_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			parent_id TEXT NOT NULL REFERENCES executions(parent_id),
			internal_id INTEGER NOT NULL,
			exchange_id TEXT NOT NULL DEFAULT '',
			symbol TEXT NOT NULL,
			side INTEGER NOT NULL,
			price TEXT NOT NULL,
			orig_qty INTEGER NOT NULL,
			remaining_qty INTEGER NOT NULL,
			status INTEGER NOT NULL,
			strategy TEXT NOT NULL,
			slice_index INTEGER NOT NULL,
			submitted_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE (parent_id, internal_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_child_orders_parent ON child_orders(parent_id)`,
	}

	for _, migration := range migrations {
		if _, err := j.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}

	return nil
}

// Record writes a finished parent order and its children in one transaction.
func (j *SQLiteJournal) Record(ctx context.Context, report *types.ExecutionReport, children []types.ChildOrder) error {
	if report == nil {
		return errors.New("record: nil report")
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `INSERT INTO executions
		(parent_id, bot_id, strategy, symbol, side, target_qty, filled_qty, penalty_qty, unfilled_qty,
		 strategy_value, liquidation_value, traded_value, penalty, cost_per_share, benchmark_price, benchmark_vwap,
		 child_orders, elapsed_ms, started_at, completed_at, degraded, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, query,
		report.ParentID,
		report.BotID,
		report.Strategy,
		report.Symbol,
		int(report.Side),
		report.TargetQty,
		report.FilledQty,
		report.PenaltyQty,
		report.UnfilledQty,
		report.StrategyValue.String(),
		report.LiquidationValue.String(),
		report.TradedValue.String(),
		report.Penalty.String(),
		report.CostPerShare.String(),
		report.BenchmarkPrice.String(),
		report.BenchmarkVWAP.String(),
		report.ChildOrders,
		report.Elapsed.Milliseconds(),
		report.StartedAt,
		report.CompletedAt,
		report.Degraded,
		report.Err,
	)
	if err != nil {
		return fmt.Errorf("insert execution %s: %w", report.ParentID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO child_orders
		(parent_id, internal_id, exchange_id, symbol, side, price, orig_qty, remaining_qty, status, strategy, slice_index, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare child insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, o := range children {
		_, err := stmt.ExecContext(ctx,
			report.ParentID,
			o.InternalID,
			o.ExchangeID,
			o.Symbol,
			int(o.Side),
			o.Price.String(),
			o.OrigQty,
			o.RemainingQty,
			int(o.Status),
			o.Strategy,
			o.SliceIndex,
			o.SubmittedAt,
			o.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert child order %d: %w", o.InternalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

const reportColumns = `parent_id, bot_id, strategy, symbol, side, target_qty, filled_qty, penalty_qty, unfilled_qty,
	strategy_value, liquidation_value, traded_value, penalty, cost_per_share, benchmark_price, benchmark_vwap,
	child_orders, elapsed_ms, started_at, completed_at, degraded, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (types.ExecutionReport, error) {
	var r types.ExecutionReport
	var side int
	var elapsedMs int64
	var strategyValue, liquidationValue, tradedValue, penalty, cost, benchmark, vwap string

	err := row.Scan(
		&r.ParentID,
		&r.BotID,
		&r.Strategy,
		&r.Symbol,
		&side,
		&r.TargetQty,
		&r.FilledQty,
		&r.PenaltyQty,
		&r.UnfilledQty,
		&strategyValue,
		&liquidationValue,
		&tradedValue,
		&penalty,
		&cost,
		&benchmark,
		&vwap,
		&r.ChildOrders,
		&elapsedMs,
		&r.StartedAt,
		&r.CompletedAt,
		&r.Degraded,
		&r.Err,
	)
	if err != nil {
		return r, err
	}

	r.Side = types.Side(side)
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	r.StrategyValue, _ = decimal.NewFromString(strategyValue)
	r.LiquidationValue, _ = decimal.NewFromString(liquidationValue)
	r.TradedValue, _ = decimal.NewFromString(tradedValue)
	r.Penalty, _ = decimal.NewFromString(penalty)
	r.CostPerShare, _ = decimal.NewFromString(cost)
	r.BenchmarkPrice, _ = decimal.NewFromString(benchmark)
	r.BenchmarkVWAP, _ = decimal.NewFromString(vwap)

	return r, nil
}

// GetReport returns the report for a parent order, or nil if there is none.
func (j *SQLiteJournal) GetReport(ctx context.Context, parentID string) (*types.ExecutionReport, error) {
	query := `SELECT ` + reportColumns + ` FROM executions WHERE parent_id = ?`

	r, err := scanReport(j.db.QueryRowContext(ctx, query, parentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query execution %s: %w", parentID, err)
	}

	return &r, nil
}

// ListReports returns the most recent reports, newest first.
func (j *SQLiteJournal) ListReports(ctx context.Context, limit int) ([]types.ExecutionReport, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + reportColumns + ` FROM executions ORDER BY completed_at DESC, created_at DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []types.ExecutionReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		reports = append(reports, r)
	}

	return reports, rows.Err()
}

// GetChildOrders returns the child orders of a parent order in id order.
func (j *SQLiteJournal) GetChildOrders(ctx context.Context, parentID string) ([]types.ChildOrder, error) {
	query := `SELECT internal_id, exchange_id, symbol, side, price, orig_qty, remaining_qty, status, strategy, slice_index, submitted_at, updated_at
		FROM child_orders WHERE parent_id = ? ORDER BY internal_id`

	rows, err := j.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("query child orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []types.ChildOrder
	for rows.Next() {
		var o types.ChildOrder
		var side, status int
		var price string

		if err := rows.Scan(&o.InternalID, &o.ExchangeID, &o.Symbol, &side, &price, &o.OrigQty, &o.RemainingQty,
			&status, &o.Strategy, &o.SliceIndex, &o.SubmittedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		o.Side = types.Side(side)
		o.Status = types.ChildStatus(status)
		o.Price, _ = decimal.NewFromString(price)

		orders = append(orders, o)
	}

	return orders, rows.Err()
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Ensure SQLiteJournal implements Repository
var _ Repository = (*SQLiteJournal)(nil)
