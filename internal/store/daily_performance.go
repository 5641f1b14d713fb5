package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DailyPerformance is one trading day's running counters, the row
// RiskGate's DailyState is built from.
type DailyPerformance struct {
	TradingDate       string // YYYY-MM-DD, market timezone
	StartingEquity    decimal.Decimal
	EndingEquity      decimal.Decimal
	RealizedPnLPct    float64
	TradesExecuted    int
	ConsecutiveLosses int
}

// RecordTrade increments today's trade/loss counters atomically. realized
// is the fraction of starting equity gained or lost by this trade
// (negative for a loss); wasLoss marks whether this trade extends or
// resets the consecutive-loss streak.
func (s *Store) RecordTrade(ctx context.Context, tradingDate string, startingEquity decimal.Decimal, realized float64, wasLoss bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin record trade: %w", err)
	}
	defer tx.Rollback()

	var existing DailyPerformance
	var startingStr string
	err = tx.QueryRowContext(ctx, `
		SELECT starting_equity, realized_pnl_pct, trades_executed, consecutive_losses
		FROM daily_performance WHERE trading_date = ?
	`, tradingDate).Scan(&startingStr, &existing.RealizedPnLPct, &existing.TradesExecuted, &existing.ConsecutiveLosses)

	switch {
	case err == nil:
		existing.RealizedPnLPct += realized
		existing.TradesExecuted++
		if wasLoss {
			existing.ConsecutiveLosses++
		} else {
			existing.ConsecutiveLosses = 0
		}
	case isNoRows(err):
		existing = DailyPerformance{RealizedPnLPct: realized, TradesExecuted: 1}
		if wasLoss {
			existing.ConsecutiveLosses = 1
		}
		startingStr = startingEquity.String()
	default:
		return fmt.Errorf("store: read daily performance: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO daily_performance (trading_date, starting_equity, ending_equity, realized_pnl_pct, trades_executed, consecutive_losses, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?)
		ON CONFLICT(trading_date) DO UPDATE SET
			realized_pnl_pct = excluded.realized_pnl_pct,
			trades_executed = excluded.trades_executed,
			consecutive_losses = excluded.consecutive_losses,
			updated_at = excluded.updated_at
	`, tradingDate, startingStr, existing.RealizedPnLPct, existing.TradesExecuted, existing.ConsecutiveLosses, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: write daily performance: %w", err)
	}

	return tx.Commit()
}

// DailyPerformanceFor returns tradingDate's running counters. A day with
// no recorded trades yet returns a zero-valued DailyPerformance, not an
// error.
func (s *Store) DailyPerformanceFor(ctx context.Context, tradingDate string) (DailyPerformance, error) {
	perf := DailyPerformance{TradingDate: tradingDate}
	var startingStr, endingStr string
	err := s.db.QueryRowContext(ctx, `
		SELECT starting_equity, ending_equity, realized_pnl_pct, trades_executed, consecutive_losses
		FROM daily_performance WHERE trading_date = ?
	`, tradingDate).Scan(&startingStr, &endingStr, &perf.RealizedPnLPct, &perf.TradesExecuted, &perf.ConsecutiveLosses)
	if err != nil {
		if isNoRows(err) {
			return perf, nil
		}
		return perf, fmt.Errorf("store: read daily performance: %w", err)
	}
	if startingStr != "" {
		perf.StartingEquity, _ = decimal.NewFromString(startingStr)
	}
	if endingStr != "" {
		perf.EndingEquity, _ = decimal.NewFromString(endingStr)
	}
	return perf, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
