// Package core defines the shared domain types that flow between the
// Decision Core's components: MarketClock, IndicatorEngine, PromptAssembler,
// ResponseParser, RiskGate, LearningStore, UniverseManager, NewsTimeline,
// Scheduler, TradingAgent, and OvernightPipeline.
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketState is the closed enumeration MarketClock maps wall-clock time to.
type MarketState string

const (
	StateActiveTrading   MarketState = "ACTIVE_TRADING"
	StateMarketClosing   MarketState = "MARKET_CLOSING"
	StateEveningAnalysis MarketState = "EVENING_ANALYSIS"
	StateOvernightSleep  MarketState = "OVERNIGHT_SLEEP"
	StatePremarketPrep   MarketState = "PREMARKET_PREP"
	StateUnknown         MarketState = "UNKNOWN"
)

// Bar is a timestamped OHLCV tuple for one symbol at one timeframe.
type Bar struct {
	Symbol    string
	Timeframe string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Signal is an engine-emitted enumeration label. Raw numbers never cross a
// component boundary without one of these attached.
type Signal string

const (
	SignalOverbought Signal = "OVERBOUGHT"
	SignalOversold   Signal = "OVERSOLD"
	SignalBullish    Signal = "BULLISH"
	SignalBearish    Signal = "BEARISH"
	SignalNeutral    Signal = "NEUTRAL"
	SignalNearUpper  Signal = "NEAR_UPPER"
	SignalNearLower  Signal = "NEAR_LOWER"
	SignalMiddle     Signal = "MIDDLE"
)

// IndicatorSignals is the derived labels block that accompanies every
// IndicatorSet so the model never sees raw numbers unaccompanied.
type IndicatorSignals struct {
	Momentum   Signal // OVERBOUGHT | OVERSOLD | NEUTRAL (from RSI)
	Trend      Signal // BULLISH | BEARISH | NEUTRAL (from MACD)
	Volatility Signal // NEAR_UPPER | NEAR_LOWER | MIDDLE (from Bollinger)
	Composite  Signal // BULLISH | BEARISH | NEUTRAL
}

// IndicatorSet is the derived numeric snapshot computed by IndicatorEngine.
// All fields are pointers so "absent" (first window-1 positions, or
// InsufficientData) is representable without a sentinel NaN.
type IndicatorSet struct {
	Symbol    string
	Timestamp time.Time

	Close *float64
	High  *float64
	Low   *float64

	SMA20 *float64
	SMA50 *float64
	EMA12 *float64
	EMA26 *float64
	MACD  *float64
	MACDSignal    *float64
	MACDHistogram *float64

	RSI14 *float64

	BollingerUpper *float64
	BollingerMid   *float64
	BollingerLower *float64
	ATR14          *float64
	StdDev         *float64
	HistoricalVol  *float64

	VolumeSMA   *float64
	VolumeRatio *float64
	OBV         *float64

	Support    *float64
	Resistance *float64

	Signals IndicatorSignals
}

// Position is a non-zero holding in one symbol, owned by TradingAgent and
// refreshed at cycle start from the Broker.
type Position struct {
	Symbol           string
	Qty              int64 // signed: negative means short
	AvgEntryPrice    decimal.Decimal
	CurrentPrice     decimal.Decimal
	MarketValue      decimal.Decimal
	UnrealizedPnLAbs decimal.Decimal
	UnrealizedPnLPct float64
	DaysHeld         int
}

// AccountState is regenerated every cycle; the Broker is always the
// source of truth, never the Core's own cache.
type AccountState struct {
	Equity             decimal.Decimal
	Cash               decimal.Decimal
	BuyingPower        decimal.Decimal
	DaytimeTradesUsed  int
	Positions          []Position
	Timestamp          time.Time
}

// HasPosition reports whether symbol is currently held (qty != 0).
func (a AccountState) HasPosition(symbol string) bool {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.Qty != 0 {
			return true
		}
	}
	return false
}

// Position returns the held Position for symbol, if any.
func (a AccountState) Position(symbol string) (Position, bool) {
	for _, p := range a.Positions {
		if p.Symbol == symbol && p.Qty != 0 {
			return p, true
		}
	}
	return Position{}, false
}

// Exposure is sum(|position.market_value|) / equity, used by RiskGate's
// asymmetric portfolio-exposure check.
func (a AccountState) Exposure() float64 {
	if a.Equity.IsZero() {
		return 0
	}
	total := decimal.Zero
	for _, p := range a.Positions {
		total = total.Add(p.MarketValue.Abs())
	}
	f, _ := total.Div(a.Equity).Float64()
	return f
}

// QueryType is the closed enumeration of LLM query shapes.
type QueryType string

const (
	QueryNewOpportunity     QueryType = "NEW_OPPORTUNITY"
	QueryPositionReview     QueryType = "POSITION_REVIEW"
	QueryPortfolioAudit     QueryType = "PORTFOLIO_AUDIT"
	QueryComparativeAnalysis QueryType = "COMPARATIVE_ANALYSIS"
	QueryTradePostmortem    QueryType = "TRADE_POSTMORTEM"
	QueryMarketRegime       QueryType = "MARKET_REGIME"
	QuerySectorRotation     QueryType = "SECTOR_ROTATION"
	QueryRiskAssessment     QueryType = "RISK_ASSESSMENT"
)

// Trigger is the closed enumeration of reasons a cycle or query fired.
type Trigger string

const (
	TriggerScheduledCycle     Trigger = "SCHEDULED_CYCLE"
	TriggerCapitalConstraint  Trigger = "CAPITAL_CONSTRAINT"
	TriggerPriceAlert         Trigger = "PRICE_ALERT"
	TriggerNewsEvent          Trigger = "NEWS_EVENT"
	TriggerTechnicalSignal    Trigger = "TECHNICAL_SIGNAL"
	TriggerPerformanceConcern Trigger = "PERFORMANCE_CONCERN"
	TriggerUserRequest        Trigger = "USER_REQUEST"
)

// Profile is the closed enumeration of risk/behavior presets.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileModerate     Profile = "moderate"
	ProfileAggressive   Profile = "aggressive"
	ProfileRotator      Profile = "rotator"
	ProfileMomentum     Profile = "momentum"
	ProfileValue        Profile = "value"
)

// ExpectedFormat is the closed enumeration of response shapes the
// PromptAssembler asks for and the ResponseParser validates against.
type ExpectedFormat string

const (
	FormatStandardDecision ExpectedFormat = "STANDARD_DECISION"
	FormatRanking          ExpectedFormat = "RANKING"
	FormatComparison       ExpectedFormat = "COMPARISON"
	FormatDataRequest      ExpectedFormat = "DATA_REQUEST"
)

// DetailLevel controls how much TechnicalData/PositionData rendering detail
// PromptAssembler emits.
type DetailLevel string

const (
	DetailMinimal  DetailLevel = "minimal"
	DetailStandard DetailLevel = "standard"
	DetailDetailed DetailLevel = "detailed"
)

// PortfolioSnapshot is the subset of AccountState a QueryContext carries
// for PORTFOLIO_AUDIT / COMPARATIVE_ANALYSIS rendering.
type PortfolioSnapshot struct {
	Equity      decimal.Decimal
	Cash        decimal.Decimal
	BuyingPower decimal.Decimal
	Positions   []Position
	Exposure    float64
}

// QueryContext is constructed by TradingAgent and consumed by
// PromptAssembler; it fully determines which PromptComponents render.
type QueryContext struct {
	QueryType           QueryType
	Trigger             Trigger
	Profile             Profile
	PrimarySymbol       string
	ComparisonSymbols   []string
	PortfolioState      *PortfolioSnapshot
	OvernightContext    *OvernightAnalysis
	ExpectedFormat      ExpectedFormat
	IncludeNews         bool
	IncludeMarketRegime bool
	DetailLevel         DetailLevel
}

// Action is the closed enumeration of trading actions.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Sentiment is the closed enumeration of sentiment labels a Decision carries.
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// Severity is the closed enumeration for RiskFactor.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RiskFactor is one reasoning-supplied risk callout attached to a Decision.
type RiskFactor struct {
	Severity Severity
	Text     string
}

// Decision is immutable once recorded; it is the one typed artifact that
// bridges unstructured LLM text and structured trading action.
type Decision struct {
	ID              string
	Symbol          string
	Action          Action
	Shares          int64
	PriceSnapshot   decimal.Decimal
	Confidence      int // 0..100
	Sentiment       Sentiment
	Reasoning       string
	RiskFactors     []RiskFactor
	QualityScores   map[string]int
	LLMRawResponse  string
	Timestamp       time.Time
	Trigger         Trigger
	QueryType       QueryType
	Executed        bool
	ExecutionReason string // "fill_timeout", "safe_mode", "cancelled_post_submit", ...
	OrderID         string
}

// RiskResult is always derived fresh by RiskGate, never persisted standalone.
type RiskResult struct {
	Approved bool
	Reason   string
	Warnings []string
}

// RankedPosition is one row of a Ranking.
type RankedPosition struct {
	Symbol string
	Rank   int
	Score  int // 0..100
	Action string // keep | hold | sell
	Reason string
}

// Ranking is the structured output of an expected_format=RANKING response.
type Ranking struct {
	RankedPositions []RankedPosition
	Summary         string
}

// NewsArticle is one accumulated overnight headline.
type NewsArticle struct {
	ID         string // source URL, or hash of headline+timestamp
	Timestamp  time.Time
	Headline   string
	Summary    string
	Source     string
	Symbols    []string
	Sentiment  *float64
	Importance *float64
}

// Recommendation is the closed enumeration NarrativeSynthesis concludes with.
type Recommendation string

const (
	RecommendBuy          Recommendation = "BUY"
	RecommendSell         Recommendation = "SELL"
	RecommendHold         Recommendation = "HOLD"
	RecommendWaitClarity  Recommendation = "WAIT_FOR_CLARITY"
)

// NarrativeSynthesis is the LLM-produced evolution-of-the-news summary for
// one (symbol, trading-date). Absent during accumulation.
type NarrativeSynthesis struct {
	Narrative      string
	NetSentiment   float64
	Confidence     float64 // 0..1
	KeyThemes      []string
	Contradictions []string
	Recommendation Recommendation
	Reasoning      string
	SynthesizedAt  time.Time
	Stale          bool // set true by the 06:00-09:30 validation phase
	Revision       int  // 0 = original; >0 = appended revision, never overwrite
}

// SymbolTimeline is the per-(symbol, trading-date) ordered sequence of
// NewsArticle plus its (possibly absent) synthesis.
type SymbolTimeline struct {
	Symbol     string
	Date       string // YYYY-MM-DD in market timezone
	Articles   []NewsArticle
	Synthesis  *NarrativeSynthesis
	Revisions  []NarrativeSynthesis
}

// AnalysisDepth is the closed enumeration OvernightAnalysis records.
type AnalysisDepth string

const (
	DepthShallow  AnalysisDepth = "shallow"
	DepthStandard AnalysisDepth = "standard"
	DepthDeep     AnalysisDepth = "deep"
)

// FinalRecommendation is the terminal structured output of an
// EveningDeepLearning iterative-analyst session.
type FinalRecommendation struct {
	Action      Action
	Confidence  int
	EntryPrice  *decimal.Decimal
	TargetPrice *decimal.Decimal
	StopLoss    *decimal.Decimal
	Reasoning   string
}

// ConversationTurn is one exchange in an iterative-analyst session.
type ConversationTurn struct {
	Prompt   string
	Response string
}

// OvernightAnalysis is the persisted artifact of one EveningDeepLearning
// session for one symbol.
type OvernightAnalysis struct {
	Symbol               string
	Timestamp            time.Time
	Iterations           int
	ConversationHistory  []ConversationTurn
	FinalRecommendation  FinalRecommendation
	AnalysisDepth        AnalysisDepth
}

// Pattern is a discovered, derived-only regularity; never authoritative
// input on its own.
type Pattern struct {
	ID          string
	Type        string
	Conditions  map[string]string // indicator -> range/enum description
	SuccessRate float64           // 0..1
	SampleSize  int
	AvgReturn   float64
	RiskReward  float64
	DiscoveredAt time.Time
}

// ComparisonCandidate is one scored symbol in a COMPARISON response.
type ComparisonCandidate struct {
	Symbol string
	Score  int // 0..100
	Reason string
}

// Comparison is the structured output of an expected_format=COMPARISON
// response: a winner plus optional runner-up/avoid calls.
type Comparison struct {
	Winner   ComparisonCandidate
	RunnerUp *ComparisonCandidate
	Avoid    *ComparisonCandidate
}

// DataRequest is the structured output of an expected_format=DATA_REQUEST
// response: the model declining to decide until it has more information.
type DataRequest struct {
	RequestedData []string
	Reason        string
}

// UniverseReason is the closed enumeration of why a symbol is tracked.
type UniverseReason string

const (
	ReasonHoldings      UniverseReason = "holdings"
	ReasonWatchlist     UniverseReason = "watchlist"
	ReasonSectorLeader  UniverseReason = "sector_leader"
	ReasonHighVolume    UniverseReason = "high_volume"
	ReasonRecentMover   UniverseReason = "recent_mover"
	ReasonNewsPromoted  UniverseReason = "news_promoted"
)

// UniverseEntry is one tracked symbol with its priority tier.
// Priority 1 entries are always included; priority 2 next; priority 3
// fills to the configured cap.
type UniverseEntry struct {
	Symbol   string
	Reason   UniverseReason
	Priority int // 1, 2, or 3
	AddedAt  time.Time
}
