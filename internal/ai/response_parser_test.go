package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/prompt"
)

func TestResponseParser_StandardDecision_Valid(t *testing.T) {
	p := NewResponseParser()
	raw := "```json\n" + `{
		"action": "buy",
		"confidence": 78,
		"sentiment": "bullish",
		"reasoning": "RSI at 28 shows oversold momentum, MACD just crossed bullish, support held near $150.",
		"risk_factors": [{"severity": "MEDIUM", "text": "earnings in 3 days"}]
	}` + "\n```"

	result := p.Parse(raw, core.QueryNewOpportunity, core.TriggerScheduledCycle, core.FormatStandardDecision)
	require.Equal(t, OutcomeOK, result.Outcome)
	require.NotNil(t, result.Decision)
	assert.Equal(t, core.ActionBuy, result.Decision.Action)
	assert.Equal(t, 78, result.Decision.Confidence)
	assert.Len(t, result.Decision.RiskFactors, 1)
	assert.Greater(t, result.QualityScores["overall"], 0)
}

func TestResponseParser_StandardDecision_InvalidAction(t *testing.T) {
	p := NewResponseParser()
	raw := `{"action": "short", "confidence": 50, "sentiment": "neutral", "reasoning": "unclear signal"}`
	result := p.Parse(raw, core.QueryNewOpportunity, core.TriggerScheduledCycle, core.FormatStandardDecision)
	assert.Equal(t, OutcomeSchemaError, result.Outcome)
}

func TestResponseParser_NoJSON_ParseError(t *testing.T) {
	p := NewResponseParser()
	result := p.Parse("I think we should hold, no structured answer here.", core.QueryNewOpportunity, core.TriggerScheduledCycle, core.FormatStandardDecision)
	assert.Equal(t, OutcomeParseError, result.Outcome)
}

func TestResponseParser_CopyPasteGuard_RejectsVerbatimTemplate(t *testing.T) {
	p := NewResponseParser()
	template, ok := prompt.TaskInstructionFor(core.QueryNewOpportunity)
	require.True(t, ok)
	sentence := ""
	for _, s := range splitSentences(template) {
		if len(s) > 25 {
			sentence = s
			break
		}
	}
	require.NotEmpty(t, sentence)

	raw := `{"action": "hold", "confidence": 50, "sentiment": "neutral", "reasoning": "` + sentence + `"}`
	result := p.Parse(raw, core.QueryNewOpportunity, core.TriggerScheduledCycle, core.FormatStandardDecision)
	assert.Equal(t, OutcomeCopyPasteSuspected, result.Outcome)
}

func splitSentences(template string) []string {
	var out []string
	start := 0
	for i := 0; i+1 < len(template); i++ {
		if template[i] == '.' && template[i+1] == ' ' {
			out = append(out, template[start:i])
			start = i + 2
		}
	}
	out = append(out, template[start:])
	return out
}

func TestResponseParser_Ranking_RejectsNonPermutationRanks(t *testing.T) {
	p := NewResponseParser()
	raw := `{
		"ranked_positions": [
			{"symbol": "AAPL", "rank": 1, "score": 80, "action": "keep", "reason": "strong"},
			{"symbol": "MSFT", "rank": 1, "score": 70, "action": "hold", "reason": "ok"}
		],
		"summary": "AAPL leads"
	}`
	result := p.Parse(raw, core.QueryPortfolioAudit, core.TriggerScheduledCycle, core.FormatRanking)
	assert.Equal(t, OutcomeSchemaError, result.Outcome)
}

func TestResponseParser_Ranking_Valid(t *testing.T) {
	p := NewResponseParser()
	raw := `{
		"ranked_positions": [
			{"symbol": "AAPL", "rank": 1, "score": 85, "action": "keep", "reason": "strong momentum"},
			{"symbol": "MSFT", "rank": 2, "score": 40, "action": "sell", "reason": "needs capital freed"}
		],
		"summary": "Free capital by trimming MSFT"
	}`
	result := p.Parse(raw, core.QueryPortfolioAudit, core.TriggerCapitalConstraint, core.FormatRanking)
	require.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, 100, result.QualityScores["action_clarity"])
}

func TestResponseParser_Comparison_Valid(t *testing.T) {
	p := NewResponseParser()
	raw := `{
		"winner": {"symbol": "AAPL", "score": 82, "reason": "stronger relative trend"},
		"runner_up": {"symbol": "MSFT", "score": 65, "reason": "steady but slower"}
	}`
	result := p.Parse(raw, core.QueryComparativeAnalysis, core.TriggerScheduledCycle, core.FormatComparison)
	require.Equal(t, OutcomeOK, result.Outcome)
	require.NotNil(t, result.Comparison)
	assert.Equal(t, "AAPL", result.Comparison.Winner.Symbol)
}

func TestResponseParser_DataRequest_Valid(t *testing.T) {
	p := NewResponseParser()
	raw := `{"needs_more_data": true, "requested_data": ["sector beta", "insider transactions"], "reason": "insufficient context"}`
	result := p.Parse(raw, core.QueryRiskAssessment, core.TriggerUserRequest, core.FormatDataRequest)
	require.Equal(t, OutcomeOK, result.Outcome)
	require.NotNil(t, result.DataRequest)
	assert.Len(t, result.DataRequest.RequestedData, 2)
}

func TestResponseParser_DataRequest_RejectsFalseFlag(t *testing.T) {
	p := NewResponseParser()
	raw := `{"needs_more_data": false, "requested_data": ["x"]}`
	result := p.Parse(raw, core.QueryRiskAssessment, core.TriggerUserRequest, core.FormatDataRequest)
	assert.Equal(t, OutcomeSchemaError, result.Outcome)
}
