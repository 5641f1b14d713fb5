package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/prompt"
)

// Outcome is the closed enumeration a ResponseParser.Parse call resolves
// to, mirroring spec.md 4.D's ParsedResult union: these are modeled values,
// not Go errors, because a parse/schema failure is an expected business
// outcome the caller (TradingAgent) must branch on, not a fault.
type Outcome string

const (
	OutcomeOK                 Outcome = "OK"
	OutcomeParseError         Outcome = "PARSE_ERROR"
	OutcomeSchemaError        Outcome = "SCHEMA_ERROR"
	OutcomeCopyPasteSuspected Outcome = "COPY_PASTE_SUSPECTED"
)

// ParsedResult is the one artifact ResponseParser.Parse produces.
// Exactly one of Decision/Ranking/Comparison/DataRequest is populated,
// selected by the QueryContext's ExpectedFormat, and only when
// Outcome == OutcomeOK.
type ParsedResult struct {
	Outcome       Outcome
	Decision      *core.Decision
	Ranking       *core.Ranking
	Comparison    *core.Comparison
	DataRequest   *core.DataRequest
	QualityScores map[string]int
	RawText       string
	FailureReason string
}

// ResponseParser implements spec.md 4.D: JSON extraction, schema
// validation per expected_format, quality scoring, and the anti-copy-paste
// guard against internal/prompt's TaskInstruction templates.
type ResponseParser struct{}

// NewResponseParser builds a ResponseParser. It is stateless.
func NewResponseParser() *ResponseParser { return &ResponseParser{} }

// Parse extracts and validates raw (the Model's completion) against
// queryType/trigger/expectedFormat, computes quality scores, and runs the
// anti-copy-paste guard. It never returns a non-nil error for a
// malformed/invalid LLM response — that is OutcomeParseError/
// OutcomeSchemaError/OutcomeCopyPasteSuspected in the result, exactly the
// union spec.md 4.D names.
func (p *ResponseParser) Parse(raw string, queryType core.QueryType, trigger core.Trigger, expectedFormat core.ExpectedFormat) *ParsedResult {
	jsonText, ok := extractJSON(raw)
	if !ok {
		return &ParsedResult{Outcome: OutcomeParseError, RawText: raw, FailureReason: "no JSON payload found"}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return &ParsedResult{Outcome: OutcomeParseError, RawText: raw, FailureReason: err.Error()}
	}

	switch expectedFormat {
	case core.FormatStandardDecision:
		return p.parseStandardDecision(payload, raw, queryType, trigger)
	case core.FormatRanking:
		return p.parseRanking(payload, raw, trigger)
	case core.FormatComparison:
		return p.parseComparison(payload, raw)
	case core.FormatDataRequest:
		return p.parseDataRequest(payload, raw)
	default:
		return &ParsedResult{Outcome: OutcomeSchemaError, RawText: raw, FailureReason: fmt.Sprintf("unknown expected_format %q", expectedFormat)}
	}
}

func (p *ResponseParser) parseStandardDecision(payload map[string]interface{}, raw string, queryType core.QueryType, trigger core.Trigger) *ParsedResult {
	actionStr, _ := payload["action"].(string)
	action := core.Action(actionStr)
	if action != core.ActionBuy && action != core.ActionSell && action != core.ActionHold {
		return schemaErr(raw, "action must be one of buy, sell, hold")
	}

	confidenceF, ok := numericField(payload["confidence"])
	if !ok || confidenceF < 0 || confidenceF > 100 {
		return schemaErr(raw, "confidence must be a number in [0,100]")
	}

	sentimentStr, _ := payload["sentiment"].(string)
	sentiment := core.Sentiment(sentimentStr)
	if sentiment != core.SentimentBullish && sentiment != core.SentimentBearish && sentiment != core.SentimentNeutral {
		return schemaErr(raw, "sentiment must be one of bullish, bearish, neutral")
	}

	reasoning, _ := payload["reasoning"].(string)
	if strings.TrimSpace(reasoning) == "" {
		return schemaErr(raw, "reasoning must be non-empty")
	}

	riskFactors, err := parseRiskFactors(payload["risk_factors"])
	if err != nil {
		return schemaErr(raw, err.Error())
	}

	if suspected, template := copyPasteSuspected(reasoning, queryType); suspected {
		return &ParsedResult{
			Outcome:       OutcomeCopyPasteSuspected,
			RawText:       raw,
			FailureReason: fmt.Sprintf("reasoning matches task instruction template verbatim: %q", template),
		}
	}

	decision := &core.Decision{
		Action:         action,
		Confidence:     int(confidenceF),
		Sentiment:      sentiment,
		Reasoning:      reasoning,
		RiskFactors:    riskFactors,
		LLMRawResponse: raw,
		Trigger:        trigger,
		QueryType:      queryType,
	}

	scores := scoreStandardDecision(decision)
	decision.QualityScores = scores

	return &ParsedResult{Outcome: OutcomeOK, Decision: decision, QualityScores: scores, RawText: raw}
}

func (p *ResponseParser) parseRanking(payload map[string]interface{}, raw string, trigger core.Trigger) *ParsedResult {
	rawPositions, ok := payload["ranked_positions"].([]interface{})
	if !ok || len(rawPositions) == 0 {
		return schemaErr(raw, "ranked_positions must be a non-empty list")
	}

	positions := make([]core.RankedPosition, 0, len(rawPositions))
	seenRanks := make(map[int]bool)
	for _, rp := range rawPositions {
		m, ok := rp.(map[string]interface{})
		if !ok {
			return schemaErr(raw, "each ranked_positions entry must be an object")
		}
		symbol, _ := m["symbol"].(string)
		rankF, rankOK := numericField(m["rank"])
		scoreF, scoreOK := numericField(m["score"])
		action, _ := m["action"].(string)
		reason, _ := m["reason"].(string)
		if symbol == "" || !rankOK || !scoreOK || action == "" {
			return schemaErr(raw, "ranked_positions entries require symbol, rank, score, action")
		}
		rank := int(rankF)
		if seenRanks[rank] {
			return schemaErr(raw, "ranks must form a permutation of 1..N, no duplicates")
		}
		seenRanks[rank] = true
		positions = append(positions, core.RankedPosition{
			Symbol: symbol, Rank: rank, Score: int(scoreF), Action: action, Reason: reason,
		})
	}
	for i := 1; i <= len(positions); i++ {
		if !seenRanks[i] {
			return schemaErr(raw, "ranks must form a permutation of 1..N with no gaps")
		}
	}

	summary, _ := payload["summary"].(string)
	ranking := &core.Ranking{RankedPositions: positions, Summary: summary}
	scores := scoreRanking(ranking, trigger)

	return &ParsedResult{Outcome: OutcomeOK, Ranking: ranking, QualityScores: scores, RawText: raw}
}

func (p *ResponseParser) parseComparison(payload map[string]interface{}, raw string) *ParsedResult {
	winner, ok := parseComparisonCandidate(payload["winner"])
	if !ok {
		return schemaErr(raw, "winner is required with symbol, score, reason")
	}
	comparison := &core.Comparison{Winner: winner}
	if runnerUp, ok := parseComparisonCandidate(payload["runner_up"]); ok {
		comparison.RunnerUp = &runnerUp
	}
	if avoid, ok := parseComparisonCandidate(payload["avoid"]); ok {
		comparison.Avoid = &avoid
	}

	scores := scoreComparison(comparison)
	return &ParsedResult{Outcome: OutcomeOK, Comparison: comparison, QualityScores: scores, RawText: raw}
}

func (p *ResponseParser) parseDataRequest(payload map[string]interface{}, raw string) *ParsedResult {
	needsMore, _ := payload["needs_more_data"].(bool)
	if !needsMore {
		return schemaErr(raw, "needs_more_data must be true")
	}
	rawRequested, ok := payload["requested_data"].([]interface{})
	if !ok || len(rawRequested) == 0 {
		return schemaErr(raw, "requested_data must be a non-empty list")
	}
	requested := make([]string, 0, len(rawRequested))
	for _, v := range rawRequested {
		if s, ok := v.(string); ok && s != "" {
			requested = append(requested, s)
		}
	}
	if len(requested) == 0 {
		return schemaErr(raw, "requested_data entries must be non-empty strings")
	}

	reason, _ := payload["reason"].(string)
	return &ParsedResult{
		Outcome:     OutcomeOK,
		DataRequest: &core.DataRequest{RequestedData: requested, Reason: reason},
		RawText:     raw,
	}
}

func schemaErr(raw, reason string) *ParsedResult {
	return &ParsedResult{Outcome: OutcomeSchemaError, RawText: raw, FailureReason: reason}
}

func parseComparisonCandidate(v interface{}) (core.ComparisonCandidate, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return core.ComparisonCandidate{}, false
	}
	symbol, _ := m["symbol"].(string)
	scoreF, scoreOK := numericField(m["score"])
	reason, _ := m["reason"].(string)
	if symbol == "" || !scoreOK {
		return core.ComparisonCandidate{}, false
	}
	return core.ComparisonCandidate{Symbol: symbol, Score: int(scoreF), Reason: reason}, true
}

func parseRiskFactors(v interface{}) ([]core.RiskFactor, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("risk_factors must be a list")
	}
	factors := make([]core.RiskFactor, 0, len(raw))
	for _, rf := range raw {
		m, ok := rf.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("each risk_factors entry must be an object")
		}
		severity, _ := m["severity"].(string)
		text, _ := m["text"].(string)
		sev := core.Severity(severity)
		if sev != core.SeverityLow && sev != core.SeverityMedium && sev != core.SeverityHigh {
			return nil, fmt.Errorf("risk factor severity must be LOW, MEDIUM, or HIGH")
		}
		factors = append(factors, core.RiskFactor{Severity: sev, Text: text})
	}
	return factors, nil
}

func numericField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// copyPasteSuspected reports whether reasoning reproduces, verbatim, any
// sentence-length chunk of the TaskInstruction template for queryType.
func copyPasteSuspected(reasoning string, queryType core.QueryType) (bool, string) {
	template, ok := prompt.TaskInstructionFor(queryType)
	if !ok {
		return false, ""
	}
	for _, sentence := range strings.Split(template, ". ") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) > 25 && strings.Contains(reasoning, sentence) {
			return true, sentence
		}
	}
	return false, ""
}

// scoreStandardDecision implements spec.md 4.D's weighted quality formula:
// 0.3 decisiveness, 0.25 specificity, 0.2 risk_awareness, 0.25 reasoning_depth.
func scoreStandardDecision(d *core.Decision) map[string]int {
	decisiveness := d.Confidence
	if d.Action == core.ActionHold {
		decisiveness = decisiveness * 70 / 100 // hold is the least decisive action
	}

	specificity := 0
	lower := strings.ToLower(d.Reasoning)
	for _, marker := range []string{"rsi", "macd", "support", "resistance", "bollinger", "atr", "volume", "$", "%"} {
		if strings.Contains(lower, marker) {
			specificity += 12
		}
	}
	if specificity > 100 {
		specificity = 100
	}

	riskAwareness := len(d.RiskFactors) * 20
	for _, rf := range d.RiskFactors {
		if rf.Severity == core.SeverityHigh {
			riskAwareness += 15
		}
	}
	if riskAwareness > 100 {
		riskAwareness = 100
	}

	reasoningDepth := len(strings.Fields(d.Reasoning)) * 2
	if reasoningDepth > 100 {
		reasoningDepth = 100
	}

	overall := int(0.3*float64(decisiveness) + 0.25*float64(specificity) + 0.2*float64(riskAwareness) + 0.25*float64(reasoningDepth))

	return map[string]int{
		"decisiveness":    decisiveness,
		"specificity":     specificity,
		"risk_awareness":  riskAwareness,
		"reasoning_depth": reasoningDepth,
		"overall":         overall,
	}
}

// scoreRanking implements spec.md 4.D's RANKING quality dimensions.
func scoreRanking(r *core.Ranking, trigger core.Trigger) map[string]int {
	rankDistribution := 100 // parseRanking already rejected gaps/duplicates

	scores := make([]int, len(r.RankedPositions))
	for i, p := range r.RankedPositions {
		scores[i] = p.Score
	}
	scoreSeparation := variance(scores)
	if scoreSeparation > 100 {
		scoreSeparation = 100
	}

	actionClarity := 60
	if trigger == core.TriggerCapitalConstraint {
		actionClarity = 0
		for _, p := range r.RankedPositions {
			if p.Action == "sell" {
				actionClarity = 100
				break
			}
		}
	}

	reasoningQuality := len(strings.Fields(r.Summary)) * 3
	if reasoningQuality > 100 {
		reasoningQuality = 100
	}

	overall := (rankDistribution + scoreSeparation + actionClarity + reasoningQuality) / 4

	return map[string]int{
		"rank_distribution": rankDistribution,
		"score_separation":  scoreSeparation,
		"action_clarity":    actionClarity,
		"reasoning_quality": reasoningQuality,
		"overall":           overall,
	}
}

// scoreComparison implements spec.md 4.D's COMPARISON quality dimensions.
func scoreComparison(c *core.Comparison) map[string]int {
	decisiveness := c.Winner.Score

	differentiation := 0
	if c.RunnerUp != nil {
		differentiation = c.Winner.Score - c.RunnerUp.Score
		if differentiation < 0 {
			differentiation = -differentiation
		}
		if differentiation > 100 {
			differentiation = 100
		}
	}

	reasoningClarity := len(strings.Fields(c.Winner.Reason)) * 4
	if reasoningClarity > 100 {
		reasoningClarity = 100
	}

	recommendationStrength := 50
	if c.Avoid != nil {
		recommendationStrength += 25
	}
	if c.RunnerUp != nil {
		recommendationStrength += 25
	}

	overall := (decisiveness + differentiation + reasoningClarity + recommendationStrength) / 4

	return map[string]int{
		"decisiveness":            decisiveness,
		"differentiation":         differentiation,
		"reasoning_clarity":       reasoningClarity,
		"recommendation_strength": recommendationStrength,
		"overall":                 overall,
	}
}

func variance(values []int) int {
	if len(values) < 2 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := float64(sum) / float64(len(values))
	var sq float64
	for _, v := range values {
		d := float64(v) - mean
		sq += d * d
	}
	return int(sq / float64(len(values)))
}
