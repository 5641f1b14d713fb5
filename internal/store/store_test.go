package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DatabaseConfig{
		SQLitePath:  filepath.Join(dir, "test.db"),
		ArtifactDir: filepath.Join(dir, "artifacts"),
	}
	s, err := Open(cfg, logging.NewStandardLogger("error", "test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_SaveAndReadDecision(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d := core.Decision{
		ID: "dec-1", Symbol: "AAPL", Action: core.ActionBuy, Shares: 10,
		PriceSnapshot: decimal.NewFromFloat(150.25), Confidence: 80,
		Sentiment: core.SentimentBullish, Reasoning: "strong momentum",
		RiskFactors:   []core.RiskFactor{{Severity: core.SeverityLow, Text: "earnings in 2 weeks"}},
		QualityScores: map[string]int{"specificity": 80},
		Timestamp:     time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC),
		Trigger:       core.TriggerScheduledCycle, QueryType: core.QueryNewOpportunity,
		Executed: true, OrderID: "ord-1",
	}
	require.NoError(t, s.SaveDecision(ctx, d))

	got, err := s.Decisions(ctx, "AAPL", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "dec-1", got[0].ID)
	assert.True(t, d.PriceSnapshot.Equal(got[0].PriceSnapshot))
	assert.Equal(t, "earnings in 2 weeks", got[0].RiskFactors[0].Text)
	assert.Equal(t, 80, got[0].QualityScores["specificity"])
}

func TestStore_DecisionsEmptyRangeReturnsEmptyNotError(t *testing.T) {
	s := testStore(t)
	got, err := s.Decisions(context.Background(), "NOSYMBOL", time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_RecordTradeAccumulatesDailyPerformance(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	equity := decimal.NewFromInt(100000)

	require.NoError(t, s.RecordTrade(ctx, "2026-07-30", equity, -0.01, true))
	require.NoError(t, s.RecordTrade(ctx, "2026-07-30", equity, -0.005, true))

	perf, err := s.DailyPerformanceFor(ctx, "2026-07-30")
	require.NoError(t, err)
	assert.Equal(t, 2, perf.TradesExecuted)
	assert.InDelta(t, -0.015, perf.RealizedPnLPct, 0.0001)
	assert.Equal(t, 2, perf.ConsecutiveLosses)

	require.NoError(t, s.RecordTrade(ctx, "2026-07-30", equity, 0.02, false))
	perf, err = s.DailyPerformanceFor(ctx, "2026-07-30")
	require.NoError(t, err)
	assert.Equal(t, 0, perf.ConsecutiveLosses)
}

func TestStore_DailyPerformanceMissingDateReturnsZeroValue(t *testing.T) {
	s := testStore(t)
	perf, err := s.DailyPerformanceFor(context.Background(), "2099-01-01")
	require.NoError(t, err)
	assert.Equal(t, 0, perf.TradesExecuted)
}

func TestStore_PatternsRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	p := core.Pattern{
		ID: "pat-1", Type: "bullish_buy_success", Conditions: map[string]string{"rsi": "oversold"},
		SuccessRate: 0.72, SampleSize: 12, AvgReturn: 0.034, RiskReward: 1.8,
		DiscoveredAt: time.Now().UTC(),
	}
	require.NoError(t, s.SavePattern(ctx, p))

	got, err := s.Patterns(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pat-1", got[0].ID)
	assert.Equal(t, "oversold", got[0].Conditions["rsi"])
}

func TestDiscoverPatterns_RequiresMinSampleSize(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	decisions := []core.Decision{
		{QueryType: core.QueryNewOpportunity, Sentiment: core.SentimentBullish, Action: core.ActionBuy, Confidence: 80, Executed: true},
		{QueryType: core.QueryNewOpportunity, Sentiment: core.SentimentBullish, Action: core.ActionBuy, Confidence: 90, Executed: true},
	}

	assert.Empty(t, DiscoverPatterns(decisions, 3, now))

	patterns := DiscoverPatterns(decisions, 2, now)
	require.Len(t, patterns, 1)
	assert.Equal(t, 2, patterns[0].SampleSize)
	assert.InDelta(t, 0.85, patterns[0].SuccessRate, 0.001)
}

func TestDiscoverPatterns_IgnoresUnexecutedDecisions(t *testing.T) {
	now := time.Now().UTC()
	decisions := []core.Decision{
		{QueryType: core.QueryNewOpportunity, Sentiment: core.SentimentBullish, Action: core.ActionBuy, Confidence: 80, Executed: false},
	}
	assert.Empty(t, DiscoverPatterns(decisions, 1, now))
}

func TestStore_NewsTimelineRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	tl := core.SymbolTimeline{
		Symbol: "AAPL", Date: "2026-07-30",
		Articles: []core.NewsArticle{{ID: "a1", Headline: "Apple beats estimates"}},
	}
	require.NoError(t, s.SaveNewsTimeline(ctx, tl))

	got, found, err := s.NewsTimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a1", got.Articles[0].ID)

	_, found, err = s.NewsTimelineFor(ctx, "AAPL", "2099-01-01")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_OvernightAnalysesRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	a := core.OvernightAnalysis{Symbol: "MSFT", Iterations: 4, AnalysisDepth: core.DepthDeep}
	require.NoError(t, s.SaveOvernightAnalysis(ctx, "2026-07-30", a))

	got, err := s.OvernightAnalysesFor(ctx, "2026-07-30")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MSFT", got[0].Symbol)
}
