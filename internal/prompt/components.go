package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// Priorities, descending render order. Ties are broken by registration
// order in NewAssembler, per spec 4.C.
const (
	priorityQueryType        = 100
	priorityTrigger          = 95
	priorityTradingProfile   = 90
	priorityPositionData     = 85
	priorityTechnicalData    = 80
	priorityPortfolioSummary = 75
	priorityComparativeData  = 70
	priorityMarketRegime     = 65
	priorityNews             = 60
	priorityOvernightContext = 55
	priorityTaskInstruction  = 20
	priorityResponseFormat   = 10
)

// --- QueryType ---

type queryTypeComponent struct{}

func newQueryTypeComponent() Component { return queryTypeComponent{} }

func (queryTypeComponent) Priority() int { return priorityQueryType }

func (queryTypeComponent) IsRelevant(core.QueryContext) bool { return true }

func (queryTypeComponent) Render(ctx core.QueryContext) (string, error) {
	return fmt.Sprintf("## Query Type: %s", ctx.QueryType), nil
}

// --- Trigger ---

type triggerComponent struct{}

func newTriggerComponent() Component { return triggerComponent{} }

func (triggerComponent) Priority() int { return priorityTrigger }

func (triggerComponent) IsRelevant(core.QueryContext) bool { return true }

func (triggerComponent) Render(ctx core.QueryContext) (string, error) {
	return fmt.Sprintf("## Trigger: %s", ctx.Trigger), nil
}

// --- TradingProfile ---

// ProfileParams is the authoritative per-profile table from spec 4.C.
type ProfileParams struct {
	MinBuyConf  int
	MinSellConf int
	Posture     string
}

var profileTable = map[core.Profile]ProfileParams{
	core.ProfileConservative: {75, 70, "capital preservation"},
	core.ProfileModerate:     {65, 60, "balanced"},
	core.ProfileAggressive:   {55, 50, "momentum"},
	core.ProfileRotator:      {60, 40, "prioritize selling to free capital"},
	core.ProfileMomentum:     {55, 50, "ride trends"},
	core.ProfileValue:        {70, 65, "contrarian"},
}

// ProfileParamsFor returns the authoritative (min_buy_conf, min_sell_conf,
// posture) tuple for profile, used by both PromptAssembler and RiskGate
// so the two never drift apart.
func ProfileParamsFor(profile core.Profile) (ProfileParams, bool) {
	p, ok := profileTable[profile]
	return p, ok
}

type tradingProfileComponent struct{}

func newTradingProfileComponent() Component { return tradingProfileComponent{} }

func (tradingProfileComponent) Priority() int { return priorityTradingProfile }

func (tradingProfileComponent) IsRelevant(core.QueryContext) bool { return true }

func (tradingProfileComponent) Render(ctx core.QueryContext) (string, error) {
	params, ok := ProfileParamsFor(ctx.Profile)
	if !ok {
		return fmt.Sprintf("## Trading Profile: %s", ctx.Profile), nil
	}
	return fmt.Sprintf(
		"## Trading Profile: %s (%s)\nMinimum confidence to buy: %d. Minimum confidence to sell: %d.",
		ctx.Profile, params.Posture, params.MinBuyConf, params.MinSellConf,
	), nil
}

// --- TechnicalData ---

type technicalDataComponent struct {
	bundle *Bundle
}

func newTechnicalDataComponent(bundle *Bundle) Component {
	return technicalDataComponent{bundle: bundle}
}

func (technicalDataComponent) Priority() int { return priorityTechnicalData }

func (technicalDataComponent) IsRelevant(ctx core.QueryContext) bool {
	switch ctx.QueryType {
	case core.QueryNewOpportunity, core.QueryPositionReview, core.QueryPortfolioAudit, core.QueryTradePostmortem:
		return true
	default:
		return false
	}
}

func (c technicalDataComponent) Render(ctx core.QueryContext) (string, error) {
	if ctx.QueryType == core.QueryTradePostmortem {
		return c.renderPostmortem(ctx), nil
	}
	if ctx.QueryType == core.QueryPortfolioAudit {
		return c.renderCompactTable(ctx), nil
	}
	return c.renderDetailed(ctx), nil
}

func (c technicalDataComponent) renderCompactTable(ctx core.QueryContext) string {
	if ctx.PortfolioState == nil || len(ctx.PortfolioState.Positions) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("## Technical Snapshot\n")
	sb.WriteString("symbol | close | rsi14 | trend | momentum\n")
	for _, pos := range ctx.PortfolioState.Positions {
		set := c.bundle.Indicators[pos.Symbol]
		sb.WriteString(fmt.Sprintf("%s | %s\n", pos.Symbol, formatIndicatorRow(set)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (c technicalDataComponent) renderDetailed(ctx core.QueryContext) string {
	set := c.bundle.Indicators[ctx.PrimarySymbol]
	if set == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Technical Data: %s\n", ctx.PrimarySymbol))
	writeField(&sb, "Close", set.Close)
	writeField(&sb, "RSI-14", set.RSI14)
	writeField(&sb, "MACD", set.MACD)
	writeField(&sb, "MACD Signal", set.MACDSignal)
	writeField(&sb, "SMA-20", set.SMA20)
	writeField(&sb, "SMA-50", set.SMA50)
	writeField(&sb, "ATR-14", set.ATR14)
	if ctx.DetailLevel == core.DetailDetailed {
		writeField(&sb, "Bollinger Upper", set.BollingerUpper)
		writeField(&sb, "Bollinger Lower", set.BollingerLower)
		writeField(&sb, "Support", set.Support)
		writeField(&sb, "Resistance", set.Resistance)
		writeField(&sb, "Historical Vol", set.HistoricalVol)
	}
	sb.WriteString(fmt.Sprintf("Momentum: %s. Trend: %s. Volatility: %s. Composite: %s.\n",
		set.Signals.Momentum, set.Signals.Trend, set.Signals.Volatility, set.Signals.Composite))
	return strings.TrimRight(sb.String(), "\n")
}

func (c technicalDataComponent) renderPostmortem(ctx core.QueryContext) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Technical Data at Entry and Exit: %s\n", ctx.PrimarySymbol))
	sb.WriteString("### At entry\n")
	sb.WriteString(formatIndicatorRow(c.bundle.EntryIndicators) + "\n")
	sb.WriteString("### At exit\n")
	sb.WriteString(formatIndicatorRow(c.bundle.ExitIndicators))
	return sb.String()
}

func writeField(sb *strings.Builder, label string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(sb, "%s: %.4f\n", label, *v)
}

func formatIndicatorRow(set *core.IndicatorSet) string {
	if set == nil {
		return "no data"
	}
	closeStr, rsiStr := "absent", "absent"
	if set.Close != nil {
		closeStr = fmt.Sprintf("%.2f", *set.Close)
	}
	if set.RSI14 != nil {
		rsiStr = fmt.Sprintf("%.1f", *set.RSI14)
	}
	return fmt.Sprintf("%s | %s | %s | %s", closeStr, rsiStr, set.Signals.Trend, set.Signals.Momentum)
}

// --- PositionData ---

type positionDataComponent struct{}

func newPositionDataComponent() Component { return positionDataComponent{} }

func (positionDataComponent) Priority() int { return priorityPositionData }

func (positionDataComponent) IsRelevant(ctx core.QueryContext) bool {
	switch ctx.QueryType {
	case core.QueryPositionReview, core.QueryTradePostmortem:
		return ctx.PortfolioState != nil && len(positionFor(ctx)) > 0
	default:
		return false
	}
}

func positionFor(ctx core.QueryContext) []core.Position {
	if ctx.PortfolioState == nil {
		return nil
	}
	var out []core.Position
	for _, p := range ctx.PortfolioState.Positions {
		if p.Symbol == ctx.PrimarySymbol {
			out = append(out, p)
		}
	}
	return out
}

func (positionDataComponent) Render(ctx core.QueryContext) (string, error) {
	positions := positionFor(ctx)
	if len(positions) == 0 {
		return "", nil
	}
	p := positions[0]
	pnlPct := p.UnrealizedPnLPct * 100
	return fmt.Sprintf(
		"## Position Data\nYOU ALREADY OWN %s: qty=%d, avg_entry=%s, current_price=%s, unrealized_pnl=%.2f%%, days_held=%d",
		p.Symbol, p.Qty, p.AvgEntryPrice.StringFixed(2), p.CurrentPrice.StringFixed(2), pnlPct, p.DaysHeld,
	), nil
}

// --- PortfolioSummary ---

type portfolioSummaryComponent struct{}

func newPortfolioSummaryComponent() Component { return portfolioSummaryComponent{} }

func (portfolioSummaryComponent) Priority() int { return priorityPortfolioSummary }

func (portfolioSummaryComponent) IsRelevant(ctx core.QueryContext) bool {
	return ctx.QueryType == core.QueryPortfolioAudit && ctx.PortfolioState != nil
}

func (portfolioSummaryComponent) Render(ctx core.QueryContext) (string, error) {
	p := ctx.PortfolioState
	var sb strings.Builder
	sb.WriteString("## Portfolio Summary\n")
	sb.WriteString(fmt.Sprintf("Equity: %s. Cash: %s. Buying power: %s. Exposure: %.1f%%.\n",
		p.Equity.StringFixed(2), p.Cash.StringFixed(2), p.BuyingPower.StringFixed(2), p.Exposure*100))
	for _, pos := range p.Positions {
		sb.WriteString(fmt.Sprintf("- %s: qty=%d, value=%s, pnl=%.2f%%\n",
			pos.Symbol, pos.Qty, pos.MarketValue.StringFixed(2), pos.UnrealizedPnLPct*100))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// --- ComparativeData ---

type comparativeDataComponent struct{}

func newComparativeDataComponent() Component { return comparativeDataComponent{} }

func (comparativeDataComponent) Priority() int { return priorityComparativeData }

func (comparativeDataComponent) IsRelevant(ctx core.QueryContext) bool {
	switch ctx.QueryType {
	case core.QueryPortfolioAudit, core.QueryComparativeAnalysis:
		return len(ctx.ComparisonSymbols) > 0
	default:
		return false
	}
}

func (comparativeDataComponent) Render(ctx core.QueryContext) (string, error) {
	symbols := append([]string{}, ctx.ComparisonSymbols...)
	sort.Strings(symbols)
	return "## Comparison Symbols\n" + strings.Join(symbols, ", "), nil
}

// --- News ---

type newsComponent struct {
	bundle *Bundle
}

func newNewsComponent(bundle *Bundle) Component { return newsComponent{bundle: bundle} }

func (newsComponent) Priority() int { return priorityNews }

func (newsComponent) IsRelevant(ctx core.QueryContext) bool {
	switch ctx.QueryType {
	case core.QueryNewOpportunity, core.QueryPositionReview:
		return ctx.IncludeNews
	case core.QueryComparativeAnalysis:
		return true
	default:
		return false
	}
}

func (c newsComponent) Render(ctx core.QueryContext) (string, error) {
	timeline := c.bundle.Timelines[ctx.PrimarySymbol]
	if timeline == nil || len(timeline.Articles) == 0 {
		return "", nil
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## News: %s\n", ctx.PrimarySymbol))
	for _, a := range timeline.Articles {
		sb.WriteString(fmt.Sprintf("- [%s] %s\n", a.Timestamp.Format("15:04"), a.Headline))
	}
	if timeline.Synthesis != nil {
		sb.WriteString(fmt.Sprintf("Synthesis: %s (net_sentiment=%.2f, recommendation=%s)\n",
			timeline.Synthesis.Narrative, timeline.Synthesis.NetSentiment, timeline.Synthesis.Recommendation))
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// --- MarketRegime ---

type marketRegimeComponent struct {
	bundle *Bundle
}

func newMarketRegimeComponent(bundle *Bundle) Component { return marketRegimeComponent{bundle: bundle} }

func (marketRegimeComponent) Priority() int { return priorityMarketRegime }

func (marketRegimeComponent) IsRelevant(ctx core.QueryContext) bool {
	switch ctx.QueryType {
	case core.QueryMarketRegime:
		return true
	case core.QueryPortfolioAudit:
		return ctx.IncludeMarketRegime
	default:
		return false
	}
}

func (c marketRegimeComponent) Render(core.QueryContext) (string, error) {
	if c.bundle.MarketRegimeLabel == "" {
		return "", nil
	}
	return "## Market Regime: " + c.bundle.MarketRegimeLabel, nil
}

// --- OvernightContext ---

type overnightContextComponent struct{}

func newOvernightContextComponent() Component { return overnightContextComponent{} }

func (overnightContextComponent) Priority() int { return priorityOvernightContext }

func (overnightContextComponent) IsRelevant(ctx core.QueryContext) bool {
	return ctx.QueryType == core.QueryPositionReview && ctx.OvernightContext != nil
}

func (overnightContextComponent) Render(ctx core.QueryContext) (string, error) {
	o := ctx.OvernightContext
	rec := o.FinalRecommendation
	return fmt.Sprintf(
		"## Overnight Analysis\nDepth: %s. Iterations: %d. Recommendation: %s (confidence=%d). %s",
		o.AnalysisDepth, o.Iterations, rec.Action, rec.Confidence, rec.Reasoning,
	), nil
}
