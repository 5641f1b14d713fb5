package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// SaveDecision persists decision atomically and appends it to
// decisions.jsonl, satisfying spec.md §7's audit invariant: an order may
// not submit until its Decision is durably recorded. Callers MUST persist
// before submitting to the Broker, never after.
func (s *Store) SaveDecision(ctx context.Context, d core.Decision) error {
	riskFactors, err := json.Marshal(d.RiskFactors)
	if err != nil {
		return fmt.Errorf("store: marshal risk factors: %w", err)
	}
	qualityScores, err := json.Marshal(d.QualityScores)
	if err != nil {
		return fmt.Errorf("store: marshal quality scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, symbol, action, shares, price_snapshot, confidence,
			sentiment, reasoning, risk_factors, quality_scores, llm_raw_response,
			timestamp, trigger, query_type, executed, execution_reason, order_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			executed = excluded.executed,
			execution_reason = excluded.execution_reason,
			order_id = excluded.order_id
	`,
		d.ID, d.Symbol, string(d.Action), d.Shares, d.PriceSnapshot.String(), d.Confidence,
		string(d.Sentiment), d.Reasoning, string(riskFactors), string(qualityScores), d.LLMRawResponse,
		d.Timestamp.UTC(), string(d.Trigger), string(d.QueryType), boolToInt(d.Executed), d.ExecutionReason, d.OrderID,
	)
	if err != nil {
		return fmt.Errorf("store: save decision: %w", err)
	}

	return s.appendJSONL("decisions.jsonl", d)
}

// Decisions returns every Decision for symbol recorded at or after since,
// oldest first. An unknown symbol or empty range returns an empty slice,
// never an error.
func (s *Store) Decisions(ctx context.Context, symbol string, since time.Time) ([]core.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, action, shares, price_snapshot, confidence, sentiment, reasoning,
			risk_factors, quality_scores, llm_raw_response, timestamp, trigger, query_type,
			executed, execution_reason, order_id
		FROM decisions WHERE symbol = ? AND timestamp >= ? ORDER BY timestamp ASC
	`, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: query decisions: %w", err)
	}
	defer rows.Close()

	var out []core.Decision
	for rows.Next() {
		var d core.Decision
		var priceStr, riskFactorsJSON, qualityScoresJSON string
		var executed int
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Action, &d.Shares, &priceStr, &d.Confidence,
			&d.Sentiment, &d.Reasoning, &riskFactorsJSON, &qualityScoresJSON, &d.LLMRawResponse,
			&d.Timestamp, &d.Trigger, &d.QueryType, &executed, &d.ExecutionReason, &d.OrderID); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("store: parse price_snapshot: %w", err)
		}
		d.PriceSnapshot = price
		d.Executed = executed != 0
		_ = json.Unmarshal([]byte(riskFactorsJSON), &d.RiskFactors)
		_ = json.Unmarshal([]byte(qualityScoresJSON), &d.QualityScores)
		out = append(out, d)
	}
	return out, rows.Err()
}

// DecisionsOnOrAfter returns decisions across all symbols since cutoff,
// oldest first; used by WeeklySelfCritique's "last 7 days" window.
func (s *Store) DecisionsOnOrAfter(ctx context.Context, since time.Time) ([]core.Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, action, shares, price_snapshot, confidence, sentiment, reasoning,
			risk_factors, quality_scores, llm_raw_response, timestamp, trigger, query_type,
			executed, execution_reason, order_id
		FROM decisions WHERE timestamp >= ? ORDER BY timestamp ASC
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: query decisions since: %w", err)
	}
	defer rows.Close()

	var out []core.Decision
	for rows.Next() {
		var d core.Decision
		var priceStr, riskFactorsJSON, qualityScoresJSON string
		var executed int
		if err := rows.Scan(&d.ID, &d.Symbol, &d.Action, &d.Shares, &priceStr, &d.Confidence,
			&d.Sentiment, &d.Reasoning, &riskFactorsJSON, &qualityScoresJSON, &d.LLMRawResponse,
			&d.Timestamp, &d.Trigger, &d.QueryType, &executed, &d.ExecutionReason, &d.OrderID); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("store: parse price_snapshot: %w", err)
		}
		d.PriceSnapshot = price
		d.Executed = executed != 0
		_ = json.Unmarshal([]byte(riskFactorsJSON), &d.RiskFactors)
		_ = json.Unmarshal([]byte(qualityScoresJSON), &d.QualityScores)
		out = append(out, d)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
