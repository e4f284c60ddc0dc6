package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/tradesync/account"
)

const (
	facetActive  = "active"
	facetHistory = "history"
)

// SQLite is the durable store adapter backed by a single local database file.
// One row set per account; WriteAll replaces the account's rows atomically.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps the fire-and-forget writer from blocking readers.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) WriteAll(ctx context.Context, acct string, snap *account.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write for %s: %w", acct, err)
	}
	defer tx.Rollback()

	for _, del := range []string{
		`DELETE FROM metrics WHERE account = ?`,
		`DELETE FROM trades WHERE account = ?`,
		`DELETE FROM history_stats WHERE account = ?`,
	} {
		if _, err := tx.ExecContext(ctx, del, acct); err != nil {
			return fmt.Errorf("clear %s: %w", acct, err)
		}
	}

	if snap.Metrics != nil {
		m := snap.Metrics
		_, err := tx.ExecContext(ctx, `
			INSERT INTO metrics
			(account, balance, equity, margin, free_margin, margin_level, profit, deposit, total_swap, total_profit_loss, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			acct, m.Balance, m.Equity, m.Margin, m.FreeMargin, m.MarginLevel,
			m.Profit, m.Deposit, m.TotalSwap, m.TotalProfitLoss, snap.LastUpdated,
		)
		if err != nil {
			return fmt.Errorf("write metrics for %s: %w", acct, err)
		}
	}

	if err := insertTrades(ctx, tx, acct, facetActive, snap.Trades); err != nil {
		return err
	}

	if snap.History != nil {
		if err := insertTrades(ctx, tx, acct, facetHistory, snap.History.Trades); err != nil {
			return err
		}
		st := snap.History.Stats
		fin := snap.History.Financial
		_, err := tx.ExecContext(ctx, `
			INSERT INTO history_stats
			(account, total_trades, running_trades, completed_trades, stopped_trades, win_rate, profitable_trades, losing_trades, realized_pl, unrealized_pl, total_swap_fees)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			acct, st.TotalTrades, st.RunningTrades, st.CompletedTrades, st.StoppedTrades,
			st.WinRatePct, st.ProfitableCount, st.LosingCount,
			fin.RealizedPL, fin.UnrealizedPL, fin.TotalSwapFees,
		)
		if err != nil {
			return fmt.Errorf("write history stats for %s: %w", acct, err)
		}
	}

	return tx.Commit()
}

func insertTrades(ctx context.Context, tx *sql.Tx, acct, facet string, trades []account.Trade) error {
	for i, t := range trades {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trades
			(account, facet, position, trade_id, symbol, entry_price, current_buy_price, current_sell_price,
			 start_time, end_time, status, target_type, target_amount, lot_size, direction,
			 profit_loss, margin_used, swap, commission, closing_price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			acct, facet, i, t.ID, t.Symbol, t.EntryPrice, t.CurrentBuyPrice, t.CurrentSellPrice,
			t.StartTime, nullTime(t.EndTime), string(t.Status), string(t.TargetType), t.TargetAmount,
			t.LotSize, string(t.Direction), t.ProfitLoss, t.MarginUsed, t.Swap, t.Commission,
			nullFloat(t.ClosingPrice),
		)
		if err != nil {
			return fmt.Errorf("write %s trade %s for %s: %w", facet, t.ID, acct, err)
		}
	}
	return nil
}

func (s *SQLite) ReadByAccount(ctx context.Context, acct string) (*account.Snapshot, error) {
	snap := &account.Snapshot{Account: acct}
	found := false

	var m account.Metrics
	err := s.db.QueryRowContext(ctx, `
		SELECT balance, equity, margin, free_margin, margin_level, profit, deposit, total_swap, total_profit_loss, updated_at
		FROM metrics WHERE account = ?`, acct,
	).Scan(&m.Balance, &m.Equity, &m.Margin, &m.FreeMargin, &m.MarginLevel,
		&m.Profit, &m.Deposit, &m.TotalSwap, &m.TotalProfitLoss, &snap.LastUpdated)
	switch err {
	case nil:
		snap.Metrics = &m
		found = true
	case sql.ErrNoRows:
	default:
		return nil, fmt.Errorf("read metrics for %s: %w", acct, err)
	}

	active, err := s.readTrades(ctx, acct, facetActive)
	if err != nil {
		return nil, err
	}
	if active != nil {
		snap.Trades = active
		found = true
	}

	history, err := s.readTrades(ctx, acct, facetHistory)
	if err != nil {
		return nil, err
	}

	var st account.TradeStats
	var fin account.FinancialStats
	err = s.db.QueryRowContext(ctx, `
		SELECT total_trades, running_trades, completed_trades, stopped_trades, win_rate, profitable_trades, losing_trades, realized_pl, unrealized_pl, total_swap_fees
		FROM history_stats WHERE account = ?`, acct,
	).Scan(&st.TotalTrades, &st.RunningTrades, &st.CompletedTrades, &st.StoppedTrades,
		&st.WinRatePct, &st.ProfitableCount, &st.LosingCount,
		&fin.RealizedPL, &fin.UnrealizedPL, &fin.TotalSwapFees)
	switch err {
	case nil:
		snap.History = &account.HistorySummary{Stats: st, Financial: fin, Trades: history}
		found = true
	case sql.ErrNoRows:
		if history != nil {
			snap.History = &account.HistorySummary{Trades: history}
			found = true
		}
	default:
		return nil, fmt.Errorf("read history stats for %s: %w", acct, err)
	}

	if !found {
		return nil, ErrNotFound
	}
	return snap, nil
}

func (s *SQLite) readTrades(ctx context.Context, acct, facet string) ([]account.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trade_id, symbol, entry_price, current_buy_price, current_sell_price,
		       start_time, end_time, status, target_type, target_amount, lot_size, direction,
		       profit_loss, margin_used, swap, commission, closing_price
		FROM trades WHERE account = ? AND facet = ? ORDER BY position`, acct, facet)
	if err != nil {
		return nil, fmt.Errorf("read %s trades for %s: %w", facet, acct, err)
	}
	defer rows.Close()

	var trades []account.Trade
	for rows.Next() {
		var (
			t       account.Trade
			endTime sql.NullTime
			closing sql.NullFloat64
			status  string
			target  string
			dir     string
		)
		err := rows.Scan(&t.ID, &t.Symbol, &t.EntryPrice, &t.CurrentBuyPrice, &t.CurrentSellPrice,
			&t.StartTime, &endTime, &status, &target, &t.TargetAmount, &t.LotSize, &dir,
			&t.ProfitLoss, &t.MarginUsed, &t.Swap, &t.Commission, &closing)
		if err != nil {
			return nil, fmt.Errorf("scan %s trade for %s: %w", facet, acct, err)
		}
		t.Status = account.Status(status)
		t.TargetType = account.TargetType(target)
		t.Direction = account.Direction(dir)
		if endTime.Valid {
			et := endTime.Time
			t.EndTime = &et
		}
		if closing.Valid {
			cp := closing.Float64
			t.ClosingPrice = &cp
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s trades for %s: %w", facet, acct, err)
	}
	return trades, nil
}

func (s *SQLite) Clear(ctx context.Context, acct string) error {
	for _, del := range []string{
		`DELETE FROM metrics WHERE account = ?`,
		`DELETE FROM trades WHERE account = ?`,
		`DELETE FROM history_stats WHERE account = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, del, acct); err != nil {
			return fmt.Errorf("clear %s: %w", acct, err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
