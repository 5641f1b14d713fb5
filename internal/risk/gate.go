// Package risk implements RiskGate, the final checkpoint every Decision
// passes through before TradingAgent is allowed to submit an order.
// RiskGate never mutates state; it is a pure function of the Decision, the
// account snapshot at cycle start, and the day's running counters, grounded
// on the teacher's internal/services/risk package (risk_manager_agent.go's
// ordered-check shape, consecutive_loss_tracker.go and daily_loss_tracker.go's
// counter semantics, position_size_throttle.go's equity-pct cap) before that
// package was deleted as unwired float64-threshold infra with no Decision/
// Position/AccountState types to check against.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/prompt"
)

// DailyState is the day's running counters, owned and persisted by
// LearningStore; RiskGate only reads them.
type DailyState struct {
	RealizedPnLPct      float64 // today's realized P&L as a fraction of start-of-day equity; negative is a loss
	TradesExecutedToday int
	ConsecutiveLosses   int
}

// Gate evaluates Decisions against RiskConfig's thresholds.
type Gate struct {
	cfg    config.RiskConfig
	logger *logging.StandardLogger
}

// New builds a Gate bound to cfg.
func New(cfg config.RiskConfig, logger *logging.StandardLogger) *Gate {
	return &Gate{cfg: cfg, logger: logger.WithComponent("risk_gate")}
}

// Evaluate runs the seven ordered checks from spec 4.E against decision and
// returns the first rejection encountered, or an approval carrying any
// advisory warnings. Evaluate never mutates decision, account, or daily.
// Check 1 (confidence threshold) is profile-relative, since TradingAgent
// always knows which profile the account runs under.
func (g *Gate) Evaluate(decision core.Decision, account core.AccountState, marketState core.MarketState, daily DailyState, profile core.Profile) core.RiskResult {
	if decision.Action == core.ActionHold {
		return core.RiskResult{Approved: true}
	}
	return g.evaluateWithProfile(decision, account, marketState, daily, profile, nil)
}

func (g *Gate) evaluateWithProfile(decision core.Decision, account core.AccountState, marketState core.MarketState, daily DailyState, profile core.Profile, warnings []string) core.RiskResult {
	log := g.logger.WithSymbol(decision.Symbol)

	// 1. Confidence threshold.
	params, ok := prompt.ProfileParamsFor(profile)
	if ok {
		threshold := params.MinBuyConf
		if decision.Action == core.ActionSell {
			threshold = params.MinSellConf
		}
		if decision.Confidence < threshold {
			return g.reject(log, "confidence_below_threshold",
				fmt.Sprintf("confidence %d below %s threshold %d for %s", decision.Confidence, profile, threshold, decision.Action))
		}
	}

	// 2. Action-type gate: orders only submit while the market is open for
	// trading; everything else (including overnight-sell execution, which
	// TradingAgent fires at the start of an ACTIVE_TRADING cycle) must wait.
	if marketState != core.StateActiveTrading {
		return g.reject(log, "market_not_tradeable",
			fmt.Sprintf("market state %s does not accept orders", marketState))
	}

	notional, _ := decision.PriceSnapshot.Mul(decimal.NewFromInt(decision.Shares)).Float64()
	if notional < 0 {
		notional = -notional
	}
	equity, _ := account.Equity.Float64()
	if equity <= 0 {
		return g.reject(log, "no_equity", "account equity is zero or negative")
	}

	// 3. Position size vs equity, buys only: a sell closes a held position
	// and is never blocked by its size.
	positionPct := notional / equity
	if decision.Action == core.ActionBuy && positionPct > g.cfg.MaxPositionPctOfEquity {
		return g.reject(log, "position_size",
			fmt.Sprintf("position %.4f of equity exceeds cap %.4f", positionPct, g.cfg.MaxPositionPctOfEquity))
	}

	// 4. Buying power, buys only.
	if decision.Action == core.ActionBuy {
		buyingPower, _ := account.BuyingPower.Float64()
		if notional > buyingPower {
			return g.reject(log, "insufficient_buying_power",
				fmt.Sprintf("notional %.2f exceeds buying power %.2f", notional, buyingPower))
		}
	}

	// 5. Asymmetric portfolio exposure. A buy that would push total exposure
	// over the cap is rejected outright; a sell is only ever advisory here
	// since selling reduces exposure and should never be blocked by it.
	currentExposure := account.Exposure()
	projectedExposure := currentExposure + notional/equity
	if decision.Action == core.ActionBuy && projectedExposure > g.cfg.MaxPortfolioExposurePct {
		return g.reject(log, "exposure",
			fmt.Sprintf("projected exposure %.4f exceeds cap %.4f", projectedExposure, g.cfg.MaxPortfolioExposurePct))
	}
	if currentExposure > g.cfg.MaxPortfolioExposurePct {
		warnings = append(warnings, "advisory_exposure")
	}

	// 6. Daily loss limit: once today's realized loss breaches the cap, no
	// further buys are approved (closing positions remains allowed).
	if decision.Action == core.ActionBuy && -daily.RealizedPnLPct >= g.cfg.MaxDailyLossPct {
		return g.reject(log, "daily_loss_limit",
			fmt.Sprintf("today's realized loss %.4f breaches cap %.4f", -daily.RealizedPnLPct, g.cfg.MaxDailyLossPct))
	}
	if daily.ConsecutiveLosses >= g.cfg.MaxConsecutiveLosses {
		warnings = append(warnings, "consecutive_loss_cooldown")
	}

	// 7. Trade frequency.
	if g.cfg.MaxTradesPerDay > 0 && daily.TradesExecutedToday >= g.cfg.MaxTradesPerDay {
		return g.reject(log, "trade_frequency",
			fmt.Sprintf("%d trades already executed today, cap is %d", daily.TradesExecutedToday, g.cfg.MaxTradesPerDay))
	}

	log.WithFields(map[string]interface{}{"action": string(decision.Action), "notional": notional}).Debug("risk gate approved")
	return core.RiskResult{Approved: true, Warnings: warnings}
}

func (g *Gate) reject(log *logging.StandardLogger, reason, detail string) core.RiskResult {
	log.WithFields(map[string]interface{}{"reason": reason}).Info(detail)
	return core.RiskResult{Approved: false, Reason: reason}
}
