package overnight

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// SynthesisRecommendation is one symbol's overnight news-synthesis verdict,
// carried into OvernightSummary for TradingAgent's first cycle.
type SynthesisRecommendation struct {
	Symbol         string              `json:"symbol"`
	Recommendation core.Recommendation `json:"recommendation"`
	Confidence     float64             `json:"confidence"`
	NetSentiment   float64             `json:"net_sentiment"`
}

// GapCandidate flags a symbol whose latest quote has moved more than
// GapThresholdPct from its previous session's close.
type GapCandidate struct {
	Symbol        string          `json:"symbol"`
	PreviousClose decimal.Decimal `json:"previous_close"`
	LatestPrice   decimal.Decimal `json:"latest_price"`
	GapPct        float64         `json:"gap_pct"`
}

// OvernightSummary is the 06:00 handoff artifact: synthesis recommendations
// plus gap candidates. Per the Open-Question resolution already recorded
// against AppendEarningsAnalysis (internal/store/artifacts.go), no earnings
// calendar field is populated here — this engine has no earnings-calendar
// collaborator wired, so that task is a no-op rather than a stub field.
type OvernightSummary struct {
	TradingDate   string                    `json:"trading_date"`
	GeneratedAt   time.Time                 `json:"generated_at"`
	Synthesis     []SynthesisRecommendation `json:"synthesis"`
	GapCandidates []GapCandidate            `json:"gap_candidates"`
}

// MorningHandoff aggregates each watchlist symbol's overnight news
// synthesis and premarket gap into one summary, persisted to the
// premarket_scanner stream for audit and returned directly so the caller
// (Scheduler's 06:00 task) can hand it straight to TradingAgent.
func (p *Pipeline) MorningHandoff(ctx context.Context, tradingDate string, symbols []string) (OvernightSummary, error) {
	summary := OvernightSummary{
		TradingDate: tradingDate,
		GeneratedAt: time.Now(),
	}

	for _, symbol := range symbols {
		if timeline, found, err := p.news.TimelineFor(ctx, symbol, tradingDate); err == nil && found && timeline.Synthesis != nil {
			summary.Synthesis = append(summary.Synthesis, SynthesisRecommendation{
				Symbol:         symbol,
				Recommendation: timeline.Synthesis.Recommendation,
				Confidence:     timeline.Synthesis.Confidence,
				NetSentiment:   timeline.Synthesis.NetSentiment,
			})
		}

		if gap, ok := p.gapFor(ctx, symbol); ok {
			summary.GapCandidates = append(summary.GapCandidates, gap)
		}
	}

	if err := p.store.AppendPremarketScanner(summary); err != nil {
		p.logger.WithError(err).Error("failed to append premarket scanner record")
	}
	return summary, nil
}

// gapFor compares the latest quote to the most recent daily bar's close.
// A Broker error (market-data outage, symbol not found) simply drops the
// symbol from gap consideration rather than failing the whole handoff.
func (p *Pipeline) gapFor(ctx context.Context, symbol string) (GapCandidate, bool) {
	latest, err := p.broker.GetLatestPrice(ctx, symbol)
	if err != nil || latest.IsZero() {
		return GapCandidate{}, false
	}

	end := time.Now()
	bars, err := p.broker.GetBars(ctx, symbol, end.Add(-5*24*time.Hour), end, "1Day")
	if err != nil || len(bars) == 0 {
		return GapCandidate{}, false
	}
	prevClose := decimal.NewFromFloat(bars[len(bars)-1].Close)
	if prevClose.IsZero() {
		return GapCandidate{}, false
	}

	gapPct := latest.Sub(prevClose).Div(prevClose).InexactFloat64()
	if gapPct < 0 {
		gapPct = -gapPct
	}
	if gapPct < p.cfg.GapThresholdPct {
		return GapCandidate{}, false
	}

	return GapCandidate{
		Symbol:        symbol,
		PreviousClose: prevClose,
		LatestPrice:   latest,
		GapPct:        gapPct,
	}, true
}
