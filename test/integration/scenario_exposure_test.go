package integration

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// spec.md 8 scenario 3: portfolio exposure already over
// max_portfolio_exposure_pct. A new buy (MSFT) must be rejected with
// reason "exposure"; a sell of an existing holding (META) must still be
// approved, carrying the "advisory_exposure" warning, since RiskGate
// never blocks a sell on exposure alone (selling only ever reduces it).
//
// A third held symbol (AMZN, scripted to hold) keeps exposure over the
// cap even after META's sell settles mid-cycle — without it, RunCycle's
// account refresh after a successful POSITION_REVIEW sell would zero out
// exposure before the NEW_OPPORTUNITY pass ever evaluates MSFT.
// collaborators.PaperBroker also carries no margin/leverage, so exposure
// can only approach 1.0 through ordinary cash-settled buys — it can never
// organically reach spec.md 8's literal 1.998 example; the cap here is
// set below what an almost-fully-invested account can reach instead,
// exercising the same buy-blocked/sell-advisory property.
func TestScenario_PortfolioExposureBlocksBuyButAllowsSell(t *testing.T) {
	riskCfg := testRiskConfig()
	riskCfg.MaxPositionPctOfEquity = 1.0
	riskCfg.MaxPortfolioExposurePct = 0.5

	cfg := defaultAgentConfig(core.ProfileModerate)

	h := newHarness(t, decimal.NewFromInt(200000), riskCfg, cfg)
	h.broker.seedPosition(t, "AMZN", 200, decimal.NewFromInt(600)) // 120000, stays held
	h.broker.SetLastPrice("AMZN", decimal.NewFromInt(600))
	h.broker.SeedBars("AMZN", flatBars(60, 600))
	h.broker.seedPosition(t, "META", 200, decimal.NewFromInt(300)) // 60000, sold this cycle
	h.broker.SetLastPrice("META", decimal.NewFromInt(300))
	h.broker.SeedBars("META", flatBars(60, 300))
	h.broker.SetLastPrice("MSFT", decimal.NewFromInt(300))
	h.broker.SeedBars("MSFT", flatBars(60, 300))

	account, err := h.broker.GetAccount(context.Background())
	require.NoError(t, err)
	require.Greater(t, account.Exposure(), riskCfg.MaxPortfolioExposurePct, "fixture must already exceed the exposure cap")

	h.model.respond("MSFT", buyDecisionJSON(70, 0))
	h.model.respond("META", sellDecisionJSON(70))
	h.model.respond("AMZN", holdDecisionJSON())

	decisions, err := h.agent.RunCycle(context.Background(), []string{"MSFT"}, core.StateActiveTrading, "2026-07-31")
	require.NoError(t, err)
	require.Len(t, decisions, 2) // AMZN's hold is persisted directly, never returned

	byAction := make(map[core.Action]core.Decision, 2)
	for _, d := range decisions {
		byAction[d.Action] = d
	}

	buy, ok := byAction[core.ActionBuy]
	require.True(t, ok, "MSFT buy must still be evaluated even though it is rejected")
	assert.False(t, buy.Executed)
	assert.Equal(t, "exposure", buy.ExecutionReason)

	sell, ok := byAction[core.ActionSell]
	require.True(t, ok)
	assert.True(t, sell.Executed)
	assert.Equal(t, "filled", sell.ExecutionReason)

	finalAccount, err := h.broker.GetAccount(context.Background())
	require.NoError(t, err)
	assert.False(t, finalAccount.HasPosition("META"))
	assert.True(t, finalAccount.HasPosition("AMZN"))
	assert.False(t, finalAccount.HasPosition("MSFT"))
}
