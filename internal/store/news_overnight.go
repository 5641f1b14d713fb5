package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// SaveNewsTimeline persists the full SymbolTimeline for (symbol, date) as
// a JSON blob, insert-or-replace by its natural key. NewsTimeline's own
// in-memory phase machine (internal/news) is the single writer per
// spec.md §5; this is its durability layer, not a second writer.
func (s *Store) SaveNewsTimeline(ctx context.Context, t core.SymbolTimeline) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("store: marshal news timeline: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO news_timelines (symbol, trading_date, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, trading_date) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, t.Symbol, t.Date, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save news timeline: %w", err)
	}
	return nil
}

// NewsTimelineFor returns the persisted SymbolTimeline for (symbol, date).
// A symbol/date combination with no accumulated articles yet returns
// (core.SymbolTimeline{}, false, nil), not an error.
func (s *Store) NewsTimelineFor(ctx context.Context, symbol, date string) (core.SymbolTimeline, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM news_timelines WHERE symbol = ? AND trading_date = ?
	`, symbol, date).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SymbolTimeline{}, false, nil
		}
		return core.SymbolTimeline{}, false, fmt.Errorf("store: read news timeline: %w", err)
	}
	var t core.SymbolTimeline
	if err := json.Unmarshal([]byte(payload), &t); err != nil {
		return core.SymbolTimeline{}, false, fmt.Errorf("store: unmarshal news timeline: %w", err)
	}
	return t, true, nil
}

// SaveOvernightAnalysis persists one EveningDeepLearning session result.
func (s *Store) SaveOvernightAnalysis(ctx context.Context, tradingDate string, a core.OvernightAnalysis) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("store: marshal overnight analysis: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO overnight_analyses (symbol, trading_date, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(symbol, trading_date) DO UPDATE SET payload = excluded.payload
	`, a.Symbol, tradingDate, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: save overnight analysis: %w", err)
	}
	return s.appendJSONL("overnight_summary.jsonl", a)
}

// OvernightAnalysesFor returns every OvernightAnalysis recorded for
// tradingDate, used by MorningHandoff to assemble the OvernightSummary.
func (s *Store) OvernightAnalysesFor(ctx context.Context, tradingDate string) ([]core.OvernightAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM overnight_analyses WHERE trading_date = ?
	`, tradingDate)
	if err != nil {
		return nil, fmt.Errorf("store: query overnight analyses: %w", err)
	}
	defer rows.Close()

	var out []core.OvernightAnalysis
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan overnight analysis: %w", err)
		}
		var a core.OvernightAnalysis
		if err := json.Unmarshal([]byte(payload), &a); err != nil {
			return nil, fmt.Errorf("store: unmarshal overnight analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
