package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LLMInteraction is one recorded Model.Complete call, independent of
// whether it ultimately produced a Decision (a DATA_REQUEST or a
// ParseError still gets logged here for audit/debugging).
type LLMInteraction struct {
	ID         string
	DecisionID string
	Symbol     string
	PolicyID   string
	ProviderID string
	ModelID    string
	Prompt     string
	RawResponse string
	LatencyMS  int64
	Error      string
	Timestamp  time.Time
}

// SaveLLMInteraction persists one Model call. ID is generated if absent.
func (s *Store) SaveLLMInteraction(ctx context.Context, li LLMInteraction) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	if li.Timestamp.IsZero() {
		li.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_interactions (id, decision_id, symbol, policy_id, provider_id, model_id,
			prompt, raw_response, latency_ms, error, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, li.ID, li.DecisionID, li.Symbol, li.PolicyID, li.ProviderID, li.ModelID,
		li.Prompt, li.RawResponse, li.LatencyMS, li.Error, li.Timestamp)
	if err != nil {
		return fmt.Errorf("store: save llm interaction: %w", err)
	}
	return nil
}

// LLMInteractionsFor returns every recorded Model call for symbol at or
// after since, oldest first, for audit (the integration tests use it for
// spec.md 8's one-row-per-call assertions; cmd/engine replay does not).
func (s *Store) LLMInteractionsFor(ctx context.Context, symbol string, since time.Time) ([]LLMInteraction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_id, symbol, policy_id, provider_id, model_id,
			prompt, raw_response, latency_ms, error, timestamp
		FROM llm_interactions WHERE symbol = ? AND timestamp >= ? ORDER BY timestamp ASC
	`, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: query llm interactions: %w", err)
	}
	defer rows.Close()

	var out []LLMInteraction
	for rows.Next() {
		var li LLMInteraction
		if err := rows.Scan(&li.ID, &li.DecisionID, &li.Symbol, &li.PolicyID, &li.ProviderID, &li.ModelID,
			&li.Prompt, &li.RawResponse, &li.LatencyMS, &li.Error, &li.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan llm interaction: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}
