package integration

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// spec.md 4.J step 3 and spec.md 8 scenario 5: an EveningDeepLearning
// session already recommended selling a held symbol above the profile's
// min_sell_conf, recorded within OvernightMaxAge. RunCycle's overnight
// sell-first pass must act on that recommendation directly and never ask
// the model again — no response is registered for TSLA, so any call
// would surface as a scriptedModel "no response" error instead.
func TestScenario_OvernightHandoffSellsBeforeAnyPositionReviewPrompt(t *testing.T) {
	cfg := defaultAgentConfig(core.ProfileRotator) // MinSellConf 40

	h := newHarness(t, decimal.NewFromInt(100000), testRiskConfig(), cfg)
	h.broker.seedPosition(t, "TSLA", 50, decimal.NewFromInt(200))
	h.broker.SetLastPrice("TSLA", decimal.NewFromInt(205))
	h.broker.SeedBars("TSLA", flatBars(60, 205))

	tradingDate := "2026-07-31"
	err := h.store.SaveOvernightAnalysis(context.Background(), tradingDate, core.OvernightAnalysis{
		Symbol:    "TSLA",
		Timestamp: time.Now().UTC().Add(-2 * time.Hour),
		FinalRecommendation: core.FinalRecommendation{
			Action:     core.ActionSell,
			Confidence: 80,
			Reasoning:  "overnight news broke thesis, exit before the open",
		},
		AnalysisDepth: core.DepthDeep,
	})
	require.NoError(t, err)

	decisions, err := h.agent.RunCycle(context.Background(), []string{"TSLA"}, core.StateActiveTrading, tradingDate)
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, core.ActionSell, d.Action)
	assert.Equal(t, core.QueryPositionReview, d.QueryType)
	assert.Equal(t, 80, d.Confidence)
	assert.Empty(t, d.LLMRawResponse, "the overnight sell must not call the model again")
	assert.True(t, d.Executed)
	assert.Equal(t, "filled", d.ExecutionReason)
	assert.Equal(t, 0, h.model.callCount(), "no model call should have happened for TSLA")

	account, err := h.broker.GetAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, account.HasPosition("TSLA"))
}
