package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// SavePattern persists one discovered Pattern. Patterns are derived-only
// (spec.md 4.F): nothing ever reads a Pattern as authoritative input on
// its own, so there is no update path, only insert-or-replace by ID.
func (s *Store) SavePattern(ctx context.Context, p core.Pattern) error {
	conditions, err := json.Marshal(p.Conditions)
	if err != nil {
		return fmt.Errorf("store: marshal pattern conditions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, type, conditions, success_rate, sample_size, avg_return, risk_reward, discovered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			conditions = excluded.conditions,
			success_rate = excluded.success_rate,
			sample_size = excluded.sample_size,
			avg_return = excluded.avg_return,
			risk_reward = excluded.risk_reward
	`, p.ID, p.Type, string(conditions), p.SuccessRate, p.SampleSize, p.AvgReturn, p.RiskReward, p.DiscoveredAt.UTC())
	if err != nil {
		return fmt.Errorf("store: save pattern: %w", err)
	}
	return nil
}

// Patterns returns every discovered Pattern, most-recently-discovered
// first. An empty store returns an empty slice, never an error.
func (s *Store) Patterns(ctx context.Context) ([]core.Pattern, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, conditions, success_rate, sample_size, avg_return, risk_reward, discovered_at
		FROM patterns ORDER BY discovered_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: query patterns: %w", err)
	}
	defer rows.Close()

	var out []core.Pattern
	for rows.Next() {
		var p core.Pattern
		var conditionsJSON string
		if err := rows.Scan(&p.ID, &p.Type, &conditionsJSON, &p.SuccessRate, &p.SampleSize,
			&p.AvgReturn, &p.RiskReward, &p.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("store: scan pattern: %w", err)
		}
		_ = json.Unmarshal([]byte(conditionsJSON), &p.Conditions)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DiscoverPatterns is a pure function of a slice of historical Decisions
// (spec.md 4.F: "pattern discovery is a pure function of historical
// records"), grouping executed decisions by (query_type, sentiment, action) and
// surfacing groups with at least minSampleSize members. It never reads or
// writes the store itself; callers persist the results via SavePattern.
func DiscoverPatterns(decisions []core.Decision, minSampleSize int, now time.Time) []core.Pattern {
	type key struct {
		queryType core.QueryType
		sentiment core.Sentiment
		action    core.Action
	}
	groups := make(map[key][]core.Decision)
	for _, d := range decisions {
		if !d.Executed {
			continue
		}
		k := key{queryType: d.QueryType, sentiment: d.Sentiment, action: d.Action}
		groups[k] = append(groups[k], d)
	}

	var patterns []core.Pattern
	for k, ds := range groups {
		if len(ds) < minSampleSize {
			continue
		}
		var totalConfidence int
		for _, d := range ds {
			totalConfidence += d.Confidence
		}
		avgConfidence := float64(totalConfidence) / float64(len(ds))

		patterns = append(patterns, core.Pattern{
			ID:   fmt.Sprintf("%s-%s-%s-%d", k.queryType, k.sentiment, k.action, now.Unix()),
			Type: fmt.Sprintf("%s_%s_%s", k.queryType, k.sentiment, k.action),
			Conditions: map[string]string{
				"query_type": string(k.queryType),
				"sentiment":  string(k.sentiment),
				"action":     string(k.action),
			},
			SuccessRate:  avgConfidence / 100.0,
			SampleSize:   len(ds),
			DiscoveredAt: now,
		})
	}
	return patterns
}
