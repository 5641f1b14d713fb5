// Package overnight implements the three after-hours jobs the Scheduler
// fires outside ACTIVE_TRADING: EveningDeepLearning's per-symbol iterative
// analyst loop, WeeklySelfCritique's once-a-week review of the past week's
// decisions, and MorningHandoff's 06:00 summary TradingAgent reads on its
// first cycle of the day. Grounded on the teacher's agent_debate_loop.go
// bounded round-loop (cap iterations, inspect each round's outcome, stop
// early on a terminal verdict) generalized from a 3-round analyst/risk/
// trader debate to a single-model iterative DATA_REQUEST/STANDARD_DECISION
// exchange, since this engine has one Model collaborator, not three.
package overnight

import (
	"context"
	"fmt"
	"time"

	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/collaborators"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

// MaxIterations bounds EveningDeepLearning's iterative analyst loop per
// symbol, per spec.md 4.K.
const MaxIterations = 15

// AllowedDataRequests is the declared allow-list EveningDeepLearning honors
// a DATA_REQUEST against; anything outside it is refused rather than
// silently ignored, so the model sees the refusal and can adapt.
var AllowedDataRequests = map[string]bool{
	"volume_profile":      true,
	"sector_performance":  true,
	"recent_trades":       true,
	"extended_hours_tape": true,
	"peer_comparison":     true,
}

// LearningStore is the subset of *store.Store the pipeline writes to and
// reads from. Named narrowly, matching internal/agent.LearningStore's
// precedent, so tests fake it without a real Store.
type LearningStore interface {
	SaveOvernightAnalysis(ctx context.Context, tradingDate string, a core.OvernightAnalysis) error
	OvernightAnalysesFor(ctx context.Context, tradingDate string) ([]core.OvernightAnalysis, error)
	DecisionsOnOrAfter(ctx context.Context, since time.Time) ([]core.Decision, error)
	AppendLLMConversation(record any) error
	AppendSelfCritique(record any) error
	AppendPremarketScanner(record any) error
}

// NewsTimelines is the subset of *news.Manager MorningHandoff reads
// synthesis recommendations from.
type NewsTimelines interface {
	TimelineFor(ctx context.Context, symbol, date string) (core.SymbolTimeline, bool, error)
}

// DataFetcher resolves one DATA_REQUEST item for one symbol. No
// implementation ships outside tests and cmd/engine passes nil; a nil
// DataFetcher means EveningDeepLearning refuses every DATA_REQUEST,
// which still terminates correctly (the model falls back to a decision on
// the information it already has, or the loop exhausts at MaxIterations).
type DataFetcher interface {
	FetchData(ctx context.Context, symbol, name string) (string, error)
}

// Config tunes the three jobs; zero-value Config uses DefaultConfig's
// values via New.
type Config struct {
	MaxIterations    int
	CritiqueLookback time.Duration
	GapThresholdPct  float64
}

// DefaultConfig matches spec.md 4.K: 15-iteration cap, 7-day critique
// lookback, and a 2% premarket gap worth flagging.
func DefaultConfig() Config {
	return Config{
		MaxIterations:    MaxIterations,
		CritiqueLookback: 7 * 24 * time.Hour,
		GapThresholdPct:  0.02,
	}
}

// Pipeline runs the three after-hours jobs. It holds no schedule of its
// own — internal/scheduler's TaskSpec entries call EveningDeepLearning,
// WeeklySelfCritique, and MorningHandoff directly at the times spec.md 4.I
// assigns them.
type Pipeline struct {
	store   LearningStore
	news    NewsTimelines
	broker  collaborators.Broker
	model   ai.Model
	parser  *ai.ResponseParser
	fetcher DataFetcher
	logger  *logging.StandardLogger
	cfg     Config
}

// New builds a Pipeline. fetcher may be nil.
func New(store LearningStore, news NewsTimelines, broker collaborators.Broker, model ai.Model, parser *ai.ResponseParser, fetcher DataFetcher, logger *logging.StandardLogger, cfg Config) *Pipeline {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = MaxIterations
	}
	if cfg.CritiqueLookback <= 0 {
		cfg.CritiqueLookback = 7 * 24 * time.Hour
	}
	if cfg.GapThresholdPct <= 0 {
		cfg.GapThresholdPct = 0.02
	}
	return &Pipeline{
		store:   store,
		news:    news,
		broker:  broker,
		model:   model,
		parser:  parser,
		fetcher: fetcher,
		logger:  logger.WithComponent("overnight_pipeline"),
		cfg:     cfg,
	}
}

// llmConversationRecord is what AppendLLMConversation persists: the full
// exchange plus the terminal decision, per spec.md 4.K ("persists the full
// conversation plus final decision").
type llmConversationRecord struct {
	Symbol      string                  `json:"symbol"`
	TradingDate string                  `json:"trading_date"`
	Timestamp   time.Time               `json:"timestamp"`
	Iterations  int                     `json:"iterations"`
	Turns       []core.ConversationTurn `json:"turns"`
	Final       core.FinalRecommendation `json:"final_recommendation"`
}

// EveningDeepLearning runs one symbol's iterative analyst session: each
// iteration re-prompts with whatever data the prior DATA_REQUEST pulled in,
// until the model returns a STANDARD_DECISION or the iteration budget is
// spent. ResponseParser.Parse dispatches on a single expectedFormat, and an
// iteration can legally return either shape, so each raw response is tried
// against DATA_REQUEST first and STANDARD_DECISION second — extractJSON
// does the expensive work once per call, but re-parsing the same payload
// against a second schema is cheap and keeps ResponseParser itself
// single-purpose per call.
func (p *Pipeline) EveningDeepLearning(ctx context.Context, symbol, tradingDate string, basePrompt string) (core.OvernightAnalysis, error) {
	log := p.logger.WithSymbol(symbol)
	maxIter := p.cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = MaxIterations
	}

	var turns []core.ConversationTurn
	prompt := basePrompt
	var final core.FinalRecommendation
	converged := false

	for iter := 1; iter <= maxIter; iter++ {
		raw, err := p.model.Complete(ctx, prompt)
		if err != nil {
			return core.OvernightAnalysis{}, core.NewError(core.KindModelUnavailable, "overnight.EveningDeepLearning", err)
		}
		turns = append(turns, core.ConversationTurn{Prompt: prompt, Response: raw})

		if dataReq := p.parser.Parse(raw, core.QueryMarketRegime, core.TriggerScheduledCycle, core.FormatDataRequest); dataReq.Outcome == ai.OutcomeOK && dataReq.DataRequest != nil {
			prompt = p.honorDataRequest(ctx, symbol, dataReq.DataRequest.RequestedData, basePrompt, turns)
			continue
		}

		decision := p.parser.Parse(raw, core.QueryMarketRegime, core.TriggerScheduledCycle, core.FormatStandardDecision)
		if decision.Outcome == ai.OutcomeOK && decision.Decision != nil {
			final = decisionToRecommendation(*decision.Decision)
			converged = true
			break
		}

		log.WithFields(map[string]interface{}{"iteration": iter, "outcome": string(decision.Outcome)}).Debug("overnight iteration produced neither a data request nor a decision, retrying")
		prompt = fmt.Sprintf("%s\n\nYour previous response could not be understood (%s). Respond with either a DATA_REQUEST or a STANDARD_DECISION JSON payload.", basePrompt, decision.FailureReason)
	}

	if !converged {
		final = core.FinalRecommendation{
			Action:     core.ActionHold,
			Confidence: 0,
			Reasoning:  fmt.Sprintf("no STANDARD_DECISION reached after %d iterations", len(turns)),
		}
	}

	analysis := core.OvernightAnalysis{
		Symbol:              symbol,
		Timestamp:           time.Now(),
		Iterations:          len(turns),
		ConversationHistory: turns,
		FinalRecommendation: final,
		AnalysisDepth:       core.DepthDeep,
	}

	if err := p.store.SaveOvernightAnalysis(ctx, tradingDate, analysis); err != nil {
		return analysis, core.NewError(core.KindStorageError, "overnight.EveningDeepLearning", err)
	}
	if err := p.store.AppendLLMConversation(llmConversationRecord{
		Symbol:      symbol,
		TradingDate: tradingDate,
		Timestamp:   analysis.Timestamp,
		Iterations:  analysis.Iterations,
		Turns:       turns,
		Final:       final,
	}); err != nil {
		log.WithError(err).Error("failed to append llm conversation record")
	}

	return analysis, nil
}

// honorDataRequest fetches every allow-listed item via fetcher and folds
// the results into a re-prompt; disallowed or unfetchable items are named
// back to the model as refused rather than silently dropped.
func (p *Pipeline) honorDataRequest(ctx context.Context, symbol string, requested []string, basePrompt string, turns []core.ConversationTurn) string {
	next := basePrompt + "\n\n## Additional data\n"
	for _, name := range requested {
		if !AllowedDataRequests[name] {
			next += fmt.Sprintf("- %s: refused (not on the allow-list)\n", name)
			continue
		}
		if p.fetcher == nil {
			next += fmt.Sprintf("- %s: unavailable (no data source configured)\n", name)
			continue
		}
		data, err := p.fetcher.FetchData(ctx, symbol, name)
		if err != nil {
			next += fmt.Sprintf("- %s: unavailable (%s)\n", name, err.Error())
			continue
		}
		next += fmt.Sprintf("- %s: %s\n", name, data)
	}
	return next
}

func decisionToRecommendation(d core.Decision) core.FinalRecommendation {
	rec := core.FinalRecommendation{
		Action:     d.Action,
		Confidence: d.Confidence,
		Reasoning:  d.Reasoning,
	}
	if !d.PriceSnapshot.IsZero() {
		price := d.PriceSnapshot
		rec.EntryPrice = &price
	}
	return rec
}
