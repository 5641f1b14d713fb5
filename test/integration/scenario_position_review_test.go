package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// spec.md 8 scenario 2: a held winner, a rotator profile, and a buying
// power/equity ratio so low the cycle trigger becomes CAPITAL_CONSTRAINT.
// A sell at confidence above the rotator's min_sell_conf is routed through
// POSITION_REVIEW and approved — selling under an exposure cap is always
// advisory, never blocking.
func TestScenario_PositionReviewFlatWinnerUnderCapitalConstraint(t *testing.T) {
	cfg := defaultAgentConfig(core.ProfileRotator)

	h := newHarness(t, decimal.NewFromFloat(30100), testRiskConfig(), cfg)
	h.broker.seedPosition(t, "AAPL", 114, decimal.NewFromFloat(263.46))
	h.broker.SetLastPrice("AAPL", decimal.NewFromFloat(263.81))
	h.broker.SeedBars("AAPL", flatBars(60, 263.81))
	h.model.respond("AAPL", sellDecisionJSON(45))

	account, err := h.broker.GetAccount(context.Background())
	require.NoError(t, err)
	ratio, _ := account.BuyingPower.Div(account.Equity).Float64()
	require.Less(t, ratio, 0.05, "fixture must actually trigger CAPITAL_CONSTRAINT")

	decisions, err := h.agent.RunCycle(context.Background(), []string{"AAPL"}, core.StateActiveTrading, "2026-07-31")
	require.NoError(t, err)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, core.ActionSell, d.Action)
	assert.Equal(t, core.QueryPositionReview, d.QueryType)
	assert.Equal(t, core.TriggerCapitalConstraint, d.Trigger)
	assert.GreaterOrEqual(t, d.Confidence, 40)
	assert.True(t, d.Executed)
	assert.Equal(t, "filled", d.ExecutionReason)

	finalAccount, err := h.broker.GetAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, finalAccount.HasPosition("AAPL"))
}
