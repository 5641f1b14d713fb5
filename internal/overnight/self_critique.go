package overnight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// critiqueTemplate is the fixed prompt spec.md 4.K calls for: unlike
// EveningDeepLearning's assembled, per-query PromptComponents, the weekly
// critique always asks the same four questions of the same shape of data,
// so it is not worth routing through internal/prompt's Assembler.
const critiqueTemplate = `You are reviewing one week of trading decisions made by an automated engine.
For each decision below you are given the action taken, the confidence reported, whether it was executed, and the reasoning given at the time.

Score the week on four dimensions, each 0-100, and explain each score in one sentence:
- decisiveness: did the engine act on its own analysis, or hedge/hold when the evidence called for action?
- calibration: did stated confidence track actual outcomes?
- reasoning_quality: was the stated reasoning specific to the symbol and the moment, or generic boilerplate?
- risk_awareness: did the reasoning correctly anticipate the risk factors that mattered?

Then list, in priority order, the concrete changes that would most improve next week's decisions.

Decisions:
%s`

// SelfCritiqueRecord is what AppendSelfCritique persists: the raw model
// output alongside the period it covers, rather than an attempt to parse
// free-form prose into a schema ResponseParser was never built to validate.
type SelfCritiqueRecord struct {
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	DecisionCount int       `json:"decision_count"`
	Critique      string    `json:"critique"`
}

// WeeklySelfCritique loads the last CritiqueLookback of decisions from
// LearningStore, submits them against the fixed critique template, and
// persists the model's verdict to the self_critique stream. Called once a
// week by the Scheduler; returns the decision count seen so an empty week
// (no trading activity) is distinguishable from a Model failure.
func (p *Pipeline) WeeklySelfCritique(ctx context.Context, now time.Time) (SelfCritiqueRecord, error) {
	since := now.Add(-p.cfg.CritiqueLookback)
	decisions, err := p.store.DecisionsOnOrAfter(ctx, since)
	if err != nil {
		return SelfCritiqueRecord{}, core.NewError(core.KindStorageError, "overnight.WeeklySelfCritique", err)
	}

	record := SelfCritiqueRecord{
		PeriodStart:   since,
		PeriodEnd:     now,
		DecisionCount: len(decisions),
	}

	if len(decisions) == 0 {
		record.Critique = "no decisions recorded in the lookback window"
		if err := p.store.AppendSelfCritique(record); err != nil {
			p.logger.WithError(err).Error("failed to append empty self-critique record")
		}
		return record, nil
	}

	prompt := fmt.Sprintf(critiqueTemplate, summarizeDecisions(decisions))
	raw, err := p.model.Complete(ctx, prompt)
	if err != nil {
		return record, core.NewError(core.KindModelUnavailable, "overnight.WeeklySelfCritique", err)
	}
	record.Critique = raw

	if err := p.store.AppendSelfCritique(record); err != nil {
		p.logger.WithError(err).Error("failed to append self-critique record")
	}
	return record, nil
}

func summarizeDecisions(decisions []core.Decision) string {
	var b strings.Builder
	for _, d := range decisions {
		fmt.Fprintf(&b, "- %s %s confidence=%d sentiment=%s reasoning=%q\n",
			d.Symbol, d.Action, d.Confidence, d.Sentiment, truncate(d.Reasoning, 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
