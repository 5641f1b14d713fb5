package prompt

import (
	"fmt"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// taskInstructionTemplates holds per-QueryType structural guidance only —
// no concrete price, share-count, or confidence figures that a lazy model
// could copy verbatim into its answer. ResponseParser's anti-copy-paste
// guard (internal/ai) diffs a candidate response against these same
// strings, so the two packages share one source of truth instead of each
// keeping its own copy.
var taskInstructionTemplates = map[core.QueryType]string{
	core.QueryNewOpportunity: "Decide whether to open a new position. State the action, " +
		"a confidence level grounded in the technical data above, and the reasoning that " +
		"connects them. Do not invent data not shown above.",
	core.QueryPositionReview: "Decide whether to hold, add to, or exit the position described " +
		"above. Weigh the unrealized P&L against current technical and news context, not " +
		"against the entry price alone.",
	core.QueryPortfolioAudit: "Review the whole portfolio for concentration, correlated risk, " +
		"and stale theses. Produce a ranked assessment of which positions most warrant " +
		"attention, worst first.",
	core.QueryComparativeAnalysis: "Compare the listed symbols against each other, not against " +
		"an absolute bar. Explain which is relatively stronger and why.",
	core.QueryTradePostmortem: "Explain what changed between the entry and exit technical " +
		"snapshots, and whether the original thesis played out as expected.",
	core.QueryMarketRegime: "Characterize the current market regime and what it implies for " +
		"risk appetite this cycle.",
	core.QuerySectorRotation: "Identify which sectors are gaining or losing relative strength " +
		"and what that implies for current holdings.",
	core.QueryRiskAssessment: "Assess the portfolio's aggregate risk exposure against the " +
		"configured limits and flag anything approaching a threshold.",
}

// TaskInstructionFor returns the structural guidance text for queryType, and
// whether one is defined. Exported so internal/ai's ResponseParser can run
// its copy-paste check against the exact same literal.
func TaskInstructionFor(queryType core.QueryType) (string, bool) {
	t, ok := taskInstructionTemplates[queryType]
	return t, ok
}

type taskInstructionComponent struct{}

func newTaskInstructionComponent() Component { return taskInstructionComponent{} }

func (taskInstructionComponent) Priority() int { return priorityTaskInstruction }

func (taskInstructionComponent) IsRelevant(core.QueryContext) bool { return true }

func (taskInstructionComponent) Render(ctx core.QueryContext) (string, error) {
	text, ok := TaskInstructionFor(ctx.QueryType)
	if !ok {
		text = "Analyze the data above and respond per the requested format."
	}
	return "## Task\n" + text, nil
}

// responseFormatSkeletons holds the JSON shape PromptAssembler asks for per
// ExpectedFormat; ResponseParser (internal/ai/response_parser.go) checks
// candidate responses for the same field names with its own validation
// code, so the two are kept in step by hand.
var responseFormatSkeletons = map[core.ExpectedFormat]string{
	core.FormatStandardDecision: `{
  "action": "buy|sell|hold",
  "confidence": 0-100,
  "sentiment": "bullish|bearish|neutral",
  "reasoning": "string",
  "risk_factors": [{"severity": "LOW|MEDIUM|HIGH", "text": "string"}]
}`,
	core.FormatRanking: `{
  "ranked_positions": [{"symbol": "string", "rank": 1, "score": 0-100, "action": "keep|hold|sell", "reason": "string"}],
  "summary": "string"
}`,
	core.FormatComparison: `{
  "winner": {"symbol": "string", "score": 0-100, "reason": "string"},
  "runner_up": {"symbol": "string", "score": 0-100, "reason": "string"},
  "avoid": {"symbol": "string", "score": 0-100, "reason": "string"}
}`,
	core.FormatDataRequest: `{
  "needs_more_data": true,
  "requested_data": ["string"],
  "reason": "string"
}`,
}

type responseFormatComponent struct{}

func newResponseFormatComponent() Component { return responseFormatComponent{} }

func (responseFormatComponent) Priority() int { return priorityResponseFormat }

func (responseFormatComponent) IsRelevant(core.QueryContext) bool { return true }

func (responseFormatComponent) Render(ctx core.QueryContext) (string, error) {
	skeleton, ok := responseFormatSkeletons[ctx.ExpectedFormat]
	if !ok {
		return "", fmt.Errorf("prompt: no response format skeleton for %q", ctx.ExpectedFormat)
	}
	return fmt.Sprintf("## Required Response Format: %s\nRespond with exactly one JSON object matching:\n```json\n%s\n```",
		ctx.ExpectedFormat, skeleton), nil
}
