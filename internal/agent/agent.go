// Package agent implements TradingAgent (spec.md 4.J): the per-cycle
// orchestrator that turns a MarketState tick into zero or more Decisions,
// routed Broker-ward through RiskGate, and recorded to LearningStore.
//
// Grounded on the teacher's internal/services/trader_agent.go for the
// overall "assemble context, call the model, parse, size, execute, record"
// pipeline shape and its config-with-defaults/metrics-struct idiom
// (TraderAgentConfig/DefaultTraderAgentConfig, TraderAgentMetrics' mutex-
// guarded counters), generalized from the teacher's crypto-margin
// TradingAction vocabulary (open_long/close_short/add_to_position/...) to
// this engine's plain core.Action (buy/sell/hold) and its six-step cycle
// from spec.md 4.J rather than the teacher's single MakeDecision call.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/collaborators"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/indicators"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/prompt"
	"github.com/nyxtrader/decisioncore/internal/risk"
	"github.com/nyxtrader/decisioncore/internal/store"
)

// LearningStore is the subset of store.Store's API TradingAgent depends
// on, named here (rather than duck-typed behind an unexported interface)
// because every method it calls is already a thin, stable data-access
// surface; *store.Store satisfies this directly.
type LearningStore interface {
	SaveDecision(ctx context.Context, d core.Decision) error
	OvernightAnalysesFor(ctx context.Context, tradingDate string) ([]core.OvernightAnalysis, error)
	RecordTrade(ctx context.Context, tradingDate string, startingEquity decimal.Decimal, realized float64, wasLoss bool) error
	DailyPerformanceFor(ctx context.Context, tradingDate string) (store.DailyPerformance, error)
	SaveLLMInteraction(ctx context.Context, li store.LLMInteraction) error
}

// Config holds the thresholds and budgets spec.md 4.J pins as defaults,
// grounded on the teacher's DefaultTraderAgentConfig() pattern.
type Config struct {
	Profile core.Profile

	// FillTimeout bounds how long PlaceMarketOrder's fill is awaited
	// before the order is abandoned with ErrNoFill (spec.md 4.J: 30s
	// default, no retry same cycle).
	FillTimeout time.Duration

	// NewOpportunityBudget caps how many NEW_OPPORTUNITY symbols are
	// evaluated per cycle (spec.md 4.J step 5 default: 10).
	NewOpportunityBudget int

	// BuyingPowerFloorPct stops NEW_OPPORTUNITY evaluation once
	// buying_power/equity falls at or below this fraction.
	BuyingPowerFloorPct float64

	// CapitalConstraintThreshold is the buying_power/equity ratio below
	// which the cycle trigger becomes CAPITAL_CONSTRAINT instead of
	// SCHEDULED_CYCLE (spec.md 4.J step 2 default: 0.05).
	CapitalConstraintThreshold float64

	// OvernightMaxAge bounds how stale an OvernightAnalysis may be and
	// still authorize an immediate sell (spec.md 4.J step 3 default: 18h).
	OvernightMaxAge time.Duration

	// IndicatorWindowBars is how many trailing bars are fetched per
	// symbol to feed indicators.Engine.Analyze.
	IndicatorWindowBars int

	// PositionSizePctOfEquity caps how much of account equity a single
	// new buy targets, kept below RiskConfig's MaxPositionPctOfEquity so
	// a sized buy is ordinarily approved rather than routinely rejected.
	PositionSizePctOfEquity float64
}

// DefaultConfig returns spec.md 4.J's stated defaults for every field
// except Profile, which has no sensible default and must be set by the
// caller.
func DefaultConfig() Config {
	return Config{
		FillTimeout:                30 * time.Second,
		NewOpportunityBudget:       10,
		BuyingPowerFloorPct:        0.02,
		CapitalConstraintThreshold: 0.05,
		OvernightMaxAge:            18 * time.Hour,
		IndicatorWindowBars:        indicators.MinimumBars * 2,
		PositionSizePctOfEquity:    0.08,
	}
}

// TradingAgent runs one trading cycle at a time; RunCycle is not
// reentrant and must be serialized by the caller (Scheduler owns this
// guarantee per spec.md 5's single-logical-goroutine model).
type TradingAgent struct {
	broker    collaborators.Broker
	store     LearningStore
	risk      *risk.Gate
	model     ai.Model
	parser    *ai.ResponseParser
	engine    *indicators.Engine
	logger    *logging.StandardLogger
	cfg       Config
	metrics   *Metrics
}

// New builds a TradingAgent from its collaborators.
func New(broker collaborators.Broker, st LearningStore, gate *risk.Gate, model ai.Model, parser *ai.ResponseParser, engine *indicators.Engine, logger *logging.StandardLogger, cfg Config) *TradingAgent {
	return &TradingAgent{
		broker:  broker,
		store:   st,
		risk:    gate,
		model:   model,
		parser:  parser,
		engine:  engine,
		logger:  logger.WithComponent("trading_agent"),
		cfg:     cfg,
		metrics: newMetrics(),
	}
}

// Metrics returns a point-in-time snapshot of cycle counters.
func (a *TradingAgent) Metrics() Metrics { return a.metrics.Snapshot() }

// RunCycle executes spec.md 4.J's six-step cycle once: refresh account,
// determine trigger, execute overnight sells first, review held
// positions, evaluate new opportunities up to budget, and persist every
// Decision reached. tradingDate is the YYYY-MM-DD key LearningStore's
// daily counters and overnight analyses are filed under.
func (a *TradingAgent) RunCycle(ctx context.Context, watchlist []string, marketState core.MarketState, tradingDate string) ([]core.Decision, error) {
	a.metrics.recordCycle()
	log := a.logger.WithFields(map[string]interface{}{"trading_date": tradingDate})

	// Step 1: refresh AccountState; abort the cycle on failure rather
	// than act on stale positions.
	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		if classifyBrokerError(err) == brokerErrorFatal {
			a.metrics.recordBrokerFatal()
			return nil, fmt.Errorf("agent: fatal broker error refreshing account: %w", err)
		}
		a.metrics.recordBrokerTransient()
		return nil, fmt.Errorf("agent: transient broker error refreshing account, skipping cycle: %w", err)
	}

	// Step 2: determine trigger from the account snapshot taken at
	// cycle start — never recomputed mid-cycle.
	trigger := a.determineTrigger(account)
	log = log.WithFields(map[string]interface{}{"trigger": string(trigger)})

	heldAtStart := make(map[string]bool, len(account.Positions))
	for _, p := range account.Positions {
		heldAtStart[p.Symbol] = true
	}

	var decisions []core.Decision

	// Step 3: overnight sell-first pass.
	overnightBySymbol, err := a.loadOvernightBySymbol(ctx, tradingDate)
	if err != nil {
		log.WithError(err).Warn("failed to load overnight analyses, proceeding without them")
		overnightBySymbol = map[string]core.OvernightAnalysis{}
	}

	handled := make(map[string]bool, len(heldAtStart))
	for symbol := range heldAtStart {
		overnight, ok := overnightBySymbol[symbol]
		if !ok || !a.overnightAuthorizesSell(overnight) {
			continue
		}
		d, executed, err := a.executeOvernightSell(ctx, symbol, account, marketState, trigger, overnight, tradingDate)
		if err != nil {
			log.WithSymbol(symbol).WithError(err).Warn("overnight sell execution failed")
			continue
		}
		decisions = append(decisions, d)
		handled[symbol] = true
		if executed {
			account = a.refreshAfterFill(ctx, account, log)
		}
	}

	// Step 4: POSITION_REVIEW for every remaining held symbol.
	for symbol := range heldAtStart {
		if handled[symbol] {
			continue
		}
		overnight := overnightBySymbol[symbol]
		d, err := a.evaluateSymbol(ctx, symbol, core.QueryPositionReview, trigger, account, marketState, &overnight, tradingDate)
		if err != nil {
			log.WithSymbol(symbol).WithError(err).Warn("position review failed, skipping symbol")
			continue
		}
		if d == nil {
			continue
		}
		decisions = append(decisions, *d)
		if d.Executed {
			account = a.refreshAfterFill(ctx, account, log)
		}
	}

	// Step 5: NEW_OPPORTUNITY for watchlist symbols not already held,
	// up to budget or the buying-power floor.
	evaluated := 0
	for _, symbol := range sortedWatchlist(watchlist) {
		if heldAtStart[symbol] {
			continue
		}
		if evaluated >= a.cfg.NewOpportunityBudget {
			log.Debug("new opportunity budget exhausted")
			break
		}
		if account.Equity.IsZero() || account.BuyingPower.Div(account.Equity).InexactFloat64() <= a.cfg.BuyingPowerFloorPct {
			log.Debug("buying power floor reached, stopping new opportunity scan")
			break
		}
		evaluated++
		d, err := a.evaluateSymbol(ctx, symbol, core.QueryNewOpportunity, trigger, account, marketState, nil, tradingDate)
		if err != nil {
			log.WithSymbol(symbol).WithError(err).Warn("new opportunity evaluation failed, skipping symbol")
			continue
		}
		if d == nil {
			continue
		}
		decisions = append(decisions, *d)
		if d.Executed {
			account = a.refreshAfterFill(ctx, account, log)
		}
	}

	// Step 6: log every Decision reached this cycle.
	for _, d := range decisions {
		if err := a.store.SaveDecision(ctx, d); err != nil {
			log.WithSymbol(d.Symbol).WithError(err).Error("failed to persist decision")
		}
	}

	return decisions, nil
}

func sortedWatchlist(symbols []string) []string {
	out := append([]string{}, symbols...)
	sort.Strings(out)
	return out
}

func (a *TradingAgent) determineTrigger(account core.AccountState) core.Trigger {
	if account.Equity.IsZero() {
		return core.TriggerCapitalConstraint
	}
	ratio := account.BuyingPower.Div(account.Equity).InexactFloat64()
	if ratio < a.cfg.CapitalConstraintThreshold {
		return core.TriggerCapitalConstraint
	}
	return core.TriggerScheduledCycle
}

// refreshAfterFill re-reads AccountState after an executed order so the
// next routing decision in this cycle sees current cash/positions; a
// refresh failure logs and returns the prior snapshot rather than
// aborting an otherwise-healthy cycle.
func (a *TradingAgent) refreshAfterFill(ctx context.Context, prior core.AccountState, log *logging.StandardLogger) core.AccountState {
	fresh, err := a.broker.GetAccount(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to refresh account after fill, continuing with stale snapshot")
		return prior
	}
	return fresh
}

func (a *TradingAgent) loadOvernightBySymbol(ctx context.Context, tradingDate string) (map[string]core.OvernightAnalysis, error) {
	analyses, err := a.store.OvernightAnalysesFor(ctx, tradingDate)
	if err != nil {
		return nil, fmt.Errorf("agent: load overnight analyses: %w", err)
	}
	out := make(map[string]core.OvernightAnalysis, len(analyses))
	for _, a2 := range analyses {
		existing, ok := out[a2.Symbol]
		if !ok || a2.Timestamp.After(existing.Timestamp) {
			out[a2.Symbol] = a2
		}
	}
	return out, nil
}

// overnightAuthorizesSell implements spec.md 4.J step 3's eligibility
// check: recommendation is sell, confidence clears the profile's
// min_sell_conf, and the analysis is no older than OvernightMaxAge.
func (a *TradingAgent) overnightAuthorizesSell(overnight core.OvernightAnalysis) bool {
	rec := overnight.FinalRecommendation
	if rec.Action != core.ActionSell {
		return false
	}
	params, ok := prompt.ProfileParamsFor(a.cfg.Profile)
	if ok && rec.Confidence < params.MinSellConf {
		return false
	}
	return time.Since(overnight.Timestamp) <= a.cfg.OvernightMaxAge
}

// executeOvernightSell builds a Decision directly from the overnight
// recommendation (no fresh model call; the overnight session already did
// the analysis) and routes it through RiskGate and Broker exactly like
// any other sell Decision.
func (a *TradingAgent) executeOvernightSell(ctx context.Context, symbol string, account core.AccountState, marketState core.MarketState, trigger core.Trigger, overnight core.OvernightAnalysis, tradingDate string) (core.Decision, bool, error) {
	pos, ok := account.Position(symbol)
	if !ok {
		return core.Decision{}, false, fmt.Errorf("agent: overnight sell for %s but no open position", symbol)
	}

	d := core.Decision{
		ID:             fmt.Sprintf("%s-overnight-sell-%d", symbol, time.Now().UnixNano()),
		Symbol:         symbol,
		Action:         core.ActionSell,
		Shares:         pos.Qty,
		PriceSnapshot:  pos.CurrentPrice,
		Confidence:     overnight.FinalRecommendation.Confidence,
		Reasoning:      overnight.FinalRecommendation.Reasoning,
		LLMRawResponse: "",
		Timestamp:      time.Now().UTC(),
		Trigger:        trigger,
		QueryType:      core.QueryPositionReview,
	}

	daily, err := a.dailyState(ctx, tradingDate)
	if err != nil {
		return core.Decision{}, false, err
	}

	result := a.risk.Evaluate(d, account, marketState, daily, a.cfg.Profile)
	return a.finalizeDecision(ctx, d, result, account, tradingDate)
}

// evaluateSymbol runs the full per-symbol pipeline: indicator analysis,
// prompt assembly, model completion, response parsing, and (for a
// non-hold outcome) RiskGate + Broker execution. A nil *core.Decision
// return means nothing actionable resulted (e.g. a parse failure, or the
// model returned hold) and the cycle should move on without error.
func (a *TradingAgent) evaluateSymbol(ctx context.Context, symbol string, queryType core.QueryType, trigger core.Trigger, account core.AccountState, marketState core.MarketState, overnight *core.OvernightAnalysis, tradingDate string) (*core.Decision, error) {
	log := a.logger.WithSymbol(symbol)

	indicatorSet, err := a.analyzeSymbol(ctx, symbol)
	if err != nil && !errors.Is(err, core.ErrInsufficientData) {
		return nil, fmt.Errorf("agent: indicators for %s: %w", symbol, err)
	}

	bundle := &prompt.Bundle{}
	if indicatorSet != nil {
		bundle.Indicators = map[string]*core.IndicatorSet{symbol: indicatorSet}
	}

	queryCtx := core.QueryContext{
		QueryType:           queryType,
		Trigger:             trigger,
		Profile:             a.cfg.Profile,
		PrimarySymbol:       symbol,
		PortfolioState:      accountToSnapshot(account),
		OvernightContext:    overnight,
		ExpectedFormat:      core.FormatStandardDecision,
		IncludeNews:         true,
		IncludeMarketRegime: true,
	}

	builtPrompt, err := prompt.NewAssembler(bundle).Build(queryCtx)
	if err != nil {
		return nil, fmt.Errorf("agent: assemble prompt for %s: %w", symbol, err)
	}

	// spec.md 7: ModelUnavailable/ModelTimeout degrades the cycle rather
	// than aborting it. A model-call failure never propagates as a hard
	// error here — it becomes a confidence-0 hold Decision so the symbol
	// is still accounted for in the decision log and no buy or sell is
	// ever considered for it this cycle, matching the same
	// record-but-take-no-action shape as the model-returned-hold branch
	// below.
	callStart := time.Now()
	raw, err := a.model.Complete(ctx, builtPrompt)
	latencyMS := time.Since(callStart).Milliseconds()

	// Every Model.Complete call is recorded independently of whether it
	// ultimately yields a Decision (spec.md 4.F): a safe-mode failure or a
	// parse failure still leaves an audit trail of exactly what the model
	// was asked and what, if anything, it returned.
	interaction := store.LLMInteraction{
		Symbol:    symbol,
		Prompt:    builtPrompt,
		LatencyMS: latencyMS,
		Timestamp: time.Now().UTC(),
	}

	if err != nil {
		interaction.Error = err.Error()
		if saveErr := a.store.SaveLLMInteraction(ctx, interaction); saveErr != nil {
			log.WithError(saveErr).Warn("failed to persist llm interaction")
		}
		log.WithError(fmt.Errorf("%w: %v", core.ErrSafeMode, err)).Warn("model completion failed, degrading to safe mode")
		a.metrics.recordSafeMode()
		return &core.Decision{
			ID:              uuid.NewString(),
			Symbol:          symbol,
			Action:          core.ActionHold,
			Confidence:      0,
			Reasoning:       fmt.Sprintf("safe_mode: model completion failed: %v", err),
			Trigger:         trigger,
			QueryType:       queryType,
			Timestamp:       time.Now().UTC(),
			Executed:        false,
			ExecutionReason: "safe_mode",
		}, nil
	}

	interaction.RawResponse = raw

	parsed := a.parser.Parse(raw, queryType, trigger, core.FormatStandardDecision)
	if parsed.Outcome != ai.OutcomeOK || parsed.Decision == nil {
		a.metrics.recordParseFailure()
		interaction.Error = string(parsed.Outcome)
		if saveErr := a.store.SaveLLMInteraction(ctx, interaction); saveErr != nil {
			log.WithError(saveErr).Warn("failed to persist llm interaction")
		}
		log.WithFields(map[string]interface{}{"outcome": string(parsed.Outcome)}).Warn("response parse did not yield a decision")
		return nil, nil
	}

	d := *parsed.Decision
	d.ID = uuid.NewString()
	d.Symbol = symbol
	d.Trigger = trigger
	d.QueryType = queryType
	d.Timestamp = time.Now().UTC()
	d.LLMRawResponse = raw
	d.QualityScores = parsed.QualityScores

	interaction.DecisionID = d.ID
	if saveErr := a.store.SaveLLMInteraction(ctx, interaction); saveErr != nil {
		log.WithError(saveErr).Warn("failed to persist llm interaction")
	}

	if d.Action == core.ActionHold {
		a.metrics.recordSkipped()
		if err := a.store.SaveDecision(ctx, d); err != nil {
			log.WithError(err).Error("failed to persist hold decision")
		}
		return nil, nil
	}

	// The model's response schema carries no price or share count (spec.md
	// 4.D: the LLM is never trusted with sizing); TradingAgent fills both
	// in from the market snapshot before the Decision ever reaches RiskGate.
	if !a.sizeDecision(&d, account, indicatorSet) {
		log.Debug("decision could not be sized, treating as a skip")
		a.metrics.recordSkipped()
		return nil, nil
	}

	daily, err := a.dailyState(ctx, tradingDate)
	if err != nil {
		return nil, err
	}

	result := a.risk.Evaluate(d, account, marketState, daily, a.cfg.Profile)
	final, _, err := a.finalizeDecision(ctx, d, result, account, tradingDate)
	return &final, err
}

// sizeDecision fills d.PriceSnapshot and d.Shares from the market
// snapshot: a sell closes the entire held position, a buy targets
// PositionSizePctOfEquity of account equity, capped by buying power.
// Returns false when no current price is available or a buy would size
// to zero shares, signaling the caller to treat the cycle as a skip.
func (a *TradingAgent) sizeDecision(d *core.Decision, account core.AccountState, indicatorSet *core.IndicatorSet) bool {
	var price decimal.Decimal
	switch {
	case d.Action == core.ActionSell:
		pos, ok := account.Position(d.Symbol)
		if !ok {
			return false
		}
		price = pos.CurrentPrice
		d.Shares = pos.Qty
	case indicatorSet != nil && indicatorSet.Close != nil:
		price = decimal.NewFromFloat(*indicatorSet.Close)
	default:
		return false
	}

	d.PriceSnapshot = price
	if d.Action != core.ActionBuy {
		return d.Shares > 0
	}
	if price.IsZero() || price.IsNegative() {
		return false
	}

	target := account.Equity.Mul(decimal.NewFromFloat(a.cfg.PositionSizePctOfEquity))
	if account.BuyingPower.LessThan(target) {
		target = account.BuyingPower
	}
	shares := target.Div(price).IntPart()
	if shares <= 0 {
		return false
	}
	d.Shares = shares
	return true
}

func (a *TradingAgent) analyzeSymbol(ctx context.Context, symbol string) (*core.IndicatorSet, error) {
	end := time.Now().UTC()
	start := end.Add(-time.Duration(a.cfg.IndicatorWindowBars) * 24 * time.Hour)
	bars, err := a.broker.GetBars(ctx, symbol, start, end, "1d")
	if err != nil {
		return nil, err
	}
	window := indicators.OHLCVWindow{Symbol: symbol}
	for _, b := range bars {
		window.Open = append(window.Open, b.Open)
		window.High = append(window.High, b.High)
		window.Low = append(window.Low, b.Low)
		window.Close = append(window.Close, b.Close)
		window.Volume = append(window.Volume, b.Volume)
	}
	set, err := a.engine.Analyze(ctx, window)
	if err != nil {
		if errors.Is(err, core.ErrInsufficientData) || core.KindOf(err) == core.KindInsufficientData {
			return nil, core.ErrInsufficientData
		}
		return nil, err
	}
	return set, nil
}

// finalizeDecision applies a RiskResult to d: on rejection, marks the
// decision un-executed and records why; on approval, submits the order
// and awaits its fill within FillTimeout.
func (a *TradingAgent) finalizeDecision(ctx context.Context, d core.Decision, result core.RiskResult, account core.AccountState, tradingDate string) (core.Decision, bool, error) {
	if !result.Approved {
		d.Executed = false
		d.ExecutionReason = result.Reason
		a.metrics.recordRejected()
		return d, false, nil
	}

	side := collaborators.OrderSideBuy
	if d.Action == core.ActionSell {
		side = collaborators.OrderSideSell
	}

	order, err := a.broker.PlaceMarketOrder(ctx, d.Symbol, d.Shares, side)
	if err != nil {
		if classifyBrokerError(err) == brokerErrorFatal {
			a.metrics.recordBrokerFatal()
			return d, false, fmt.Errorf("agent: fatal broker error placing order for %s: %w", d.Symbol, err)
		}
		a.metrics.recordBrokerTransient()
		d.Executed = false
		d.ExecutionReason = "transient broker error: " + err.Error()
		return d, false, nil
	}

	filled, err := a.awaitFill(ctx, order)
	if err != nil {
		d.Executed = false
		switch {
		case errors.Is(err, core.ErrNoFill):
			d.ExecutionReason = "fill_timeout"
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			d.ExecutionReason = "cancelled_post_submit"
		default:
			d.ExecutionReason = err.Error()
		}
		return d, false, nil
	}

	d.Executed = true
	d.OrderID = filled.ID
	d.PriceSnapshot = filled.FillPrice
	d.ExecutionReason = "filled"
	a.metrics.recordExecuted(string(d.Action))

	a.recordTradeOutcome(ctx, filled, account, tradingDate)
	return d, true, nil
}

// awaitFill polls GetOrder until it reports FILLED/REJECTED/CANCELLED or
// FillTimeout elapses (spec.md 4.J: "no retry same cycle" on timeout).
func (a *TradingAgent) awaitFill(ctx context.Context, order collaborators.Order) (collaborators.Order, error) {
	if order.Status == collaborators.OrderStatusFilled {
		return order, nil
	}
	if order.Status == collaborators.OrderStatusRejected || order.Status == collaborators.OrderStatusCancelled {
		return order, fmt.Errorf("agent: order %s was %s: %s", order.ID, order.Status, order.Message)
	}

	deadline := time.Now().Add(a.cfg.FillTimeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return order, ctx.Err()
		case <-ticker.C:
			refreshed, err := a.broker.GetOrder(ctx, order.ID)
			if err != nil {
				return order, err
			}
			switch refreshed.Status {
			case collaborators.OrderStatusFilled:
				return refreshed, nil
			case collaborators.OrderStatusRejected, collaborators.OrderStatusCancelled:
				return refreshed, fmt.Errorf("agent: order %s was %s: %s", refreshed.ID, refreshed.Status, refreshed.Message)
			}
			if time.Now().After(deadline) {
				return refreshed, core.ErrNoFill
			}
		}
	}
}

// recordTradeOutcome updates LearningStore's daily counters. realizedPct
// is only meaningful for sells that close or reduce a position; buys
// contribute zero P&L at execution time.
func (a *TradingAgent) recordTradeOutcome(ctx context.Context, order collaborators.Order, account core.AccountState, tradingDate string) {
	realizedPct := 0.0
	wasLoss := false
	if order.Side == collaborators.OrderSideSell {
		if pos, ok := account.Position(order.Symbol); ok && !account.Equity.IsZero() {
			pnl := order.FillPrice.Sub(pos.AvgEntryPrice).Mul(decimal.NewFromInt(order.Qty))
			realizedPct = pnl.Div(account.Equity).InexactFloat64()
			wasLoss = pnl.IsNegative()
		}
	}
	if err := a.store.RecordTrade(ctx, tradingDate, account.Equity, realizedPct, wasLoss); err != nil {
		a.logger.WithSymbol(order.Symbol).WithError(err).Error("failed to record trade outcome")
	}
}

func (a *TradingAgent) dailyState(ctx context.Context, tradingDate string) (risk.DailyState, error) {
	perf, err := a.store.DailyPerformanceFor(ctx, tradingDate)
	if err != nil {
		return risk.DailyState{}, fmt.Errorf("agent: load daily performance: %w", err)
	}
	return risk.DailyState{
		RealizedPnLPct:      perf.RealizedPnLPct,
		TradesExecutedToday: perf.TradesExecuted,
		ConsecutiveLosses:   perf.ConsecutiveLosses,
	}, nil
}

func accountToSnapshot(account core.AccountState) *core.PortfolioSnapshot {
	return &core.PortfolioSnapshot{
		Equity:      account.Equity,
		Cash:        account.Cash,
		BuyingPower: account.BuyingPower,
		Positions:   account.Positions,
		Exposure:    account.Exposure(),
	}
}

// brokerErrorClass distinguishes a retry-next-cycle failure from one
// that must halt trading and alert an operator (spec.md 4.J: "Broker
// errors: classify transient (retry next cycle) vs fatal (halt trading,
// alert)").
type brokerErrorClass int

const (
	brokerErrorTransient brokerErrorClass = iota
	brokerErrorFatal
)

// classifyBrokerError treats any error explicitly tagged
// core.KindBrokerUnavailable, or a context deadline or cancellation, as a transient
// condition the next cycle may retry; anything else is unexpected and
// therefore fatal, since TradingAgent has no basis to assume it's safe
// to keep trading against a Broker misbehaving in an unrecognized way.
func classifyBrokerError(err error) brokerErrorClass {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return brokerErrorTransient
	}
	if core.KindOf(err) == core.KindBrokerUnavailable {
		return brokerErrorTransient
	}
	return brokerErrorFatal
}
