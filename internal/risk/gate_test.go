package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

func testConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPctOfEquity:   0.10,
		MaxPortfolioExposurePct:  1.50,
		MaxDailyLossPct:          0.02,
		MaxConsecutiveLosses:     3,
		MaxTradesPerDay:          10,
		MinConfidenceToTrade:     60,
		CooldownAfterLossMinutes: 30,
	}
}

func testGate() *Gate {
	return New(testConfig(), logging.NewStandardLogger("error", "test"))
}

func baseAccount() core.AccountState {
	return core.AccountState{
		Equity:      decimal.NewFromInt(100000),
		Cash:        decimal.NewFromInt(50000),
		BuyingPower: decimal.NewFromInt(50000),
	}
}

func buyDecision(symbol string, shares int64, price float64, confidence int) core.Decision {
	return core.Decision{
		Symbol:        symbol,
		Action:        core.ActionBuy,
		Shares:        shares,
		PriceSnapshot: decimal.NewFromFloat(price),
		Confidence:    confidence,
	}
}

func TestGate_Hold_AlwaysApproved(t *testing.T) {
	g := testGate()
	decision := core.Decision{Action: core.ActionHold, Confidence: 0}
	result := g.Evaluate(decision, baseAccount(), core.StateOvernightSleep, DailyState{}, core.ProfileModerate)
	assert.True(t, result.Approved)
}

func TestGate_ConfidenceBelowThreshold(t *testing.T) {
	g := testGate()
	decision := buyDecision("AAPL", 10, 100, 50) // moderate min_buy_conf is 65
	result := g.Evaluate(decision, baseAccount(), core.StateActiveTrading, DailyState{}, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "confidence_below_threshold", result.Reason)
}

func TestGate_MarketNotTradeable(t *testing.T) {
	g := testGate()
	decision := buyDecision("AAPL", 10, 100, 90)
	result := g.Evaluate(decision, baseAccount(), core.StateEveningAnalysis, DailyState{}, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "market_not_tradeable", result.Reason)
}

func TestGate_PositionSizeExceedsCap(t *testing.T) {
	g := testGate()
	// 200 shares * $100 = $20,000 = 20% of $100,000 equity, cap is 10%.
	decision := buyDecision("AAPL", 200, 100, 90)
	result := g.Evaluate(decision, baseAccount(), core.StateActiveTrading, DailyState{}, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "position_size", result.Reason)
}

func TestGate_InsufficientBuyingPower(t *testing.T) {
	g := testGate()
	account := baseAccount()
	account.BuyingPower = decimal.NewFromInt(500)
	decision := buyDecision("AAPL", 10, 100, 90) // $1,000 notional, within position-size cap
	result := g.Evaluate(decision, account, core.StateActiveTrading, DailyState{}, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "insufficient_buying_power", result.Reason)
}

func TestGate_DailyLossLimitBlocksBuys(t *testing.T) {
	g := testGate()
	decision := buyDecision("AAPL", 10, 100, 90)
	daily := DailyState{RealizedPnLPct: -0.03}
	result := g.Evaluate(decision, baseAccount(), core.StateActiveTrading, daily, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "daily_loss_limit", result.Reason)
}

func TestGate_TradeFrequencyCap(t *testing.T) {
	g := testGate()
	decision := buyDecision("AAPL", 10, 100, 90)
	daily := DailyState{TradesExecutedToday: 10}
	result := g.Evaluate(decision, baseAccount(), core.StateActiveTrading, daily, core.ProfileModerate)
	assert.False(t, result.Approved)
	assert.Equal(t, "trade_frequency", result.Reason)
}

// TestGate_AsymmetricExposure reproduces spec 8's portfolio-exposure
// scenario: an account already near the exposure cap has a buy rejected
// and a sell approved-with-warning for the same cap breach.
func TestGate_AsymmetricExposure(t *testing.T) {
	g := testGate()
	account := core.AccountState{
		Equity:      decimal.NewFromInt(100000),
		Cash:        decimal.NewFromInt(2000),
		BuyingPower: decimal.NewFromInt(2000),
		Positions: []core.Position{
			{Symbol: "META", Qty: 1000, MarketValue: decimal.NewFromInt(155000)},
		},
	}
	require.InDelta(t, 1.55, account.Exposure(), 0.01)

	t.Run("buy on a new symbol is rejected for exposure", func(t *testing.T) {
		decision := buyDecision("MSFT", 5, 300, 90) // small notional, but cap already breached
		result := g.Evaluate(decision, account, core.StateActiveTrading, DailyState{}, core.ProfileModerate)
		assert.False(t, result.Approved)
		assert.Equal(t, "exposure", result.Reason)
	})

	t.Run("sell on the held symbol is approved with an advisory warning", func(t *testing.T) {
		decision := core.Decision{
			Symbol: "META", Action: core.ActionSell, Shares: 200,
			PriceSnapshot: decimal.NewFromInt(149), Confidence: 90,
		}
		result := g.Evaluate(decision, account, core.StateActiveTrading, DailyState{}, core.ProfileModerate)
		assert.True(t, result.Approved)
		assert.Contains(t, result.Warnings, "advisory_exposure")
	})
}

func TestGate_ConsecutiveLossWarning(t *testing.T) {
	g := testGate()
	decision := buyDecision("AAPL", 1, 100, 90)
	daily := DailyState{ConsecutiveLosses: 3}
	result := g.Evaluate(decision, baseAccount(), core.StateActiveTrading, daily, core.ProfileModerate)
	assert.True(t, result.Approved)
	assert.Contains(t, result.Warnings, "consecutive_loss_cooldown")
}

func TestGate_SellBypassesConfidenceBuyThreshold(t *testing.T) {
	g := testGate()
	account := baseAccount()
	account.Positions = []core.Position{{Symbol: "AAPL", Qty: 10, MarketValue: decimal.NewFromInt(1000)}}
	decision := core.Decision{
		Symbol: "AAPL", Action: core.ActionSell, Shares: 10,
		PriceSnapshot: decimal.NewFromInt(100), Confidence: 62, // below moderate min_buy_conf(65) but above min_sell_conf(60)
	}
	result := g.Evaluate(decision, account, core.StateActiveTrading, DailyState{}, core.ProfileModerate)
	assert.True(t, result.Approved)
}
