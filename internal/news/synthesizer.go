package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/core"
)

// synthesisTemplate asks for a narrative-synthesis shape ai.ResponseParser
// was never built to validate (spec.md 4.D's formats are decision/ranking/
// comparison/data-request, not narrative synthesis), so LLMSynthesizer
// parses its own small, fixed schema directly.
const synthesisTemplate = `You are summarizing the overnight news flow for %s.
Given the headlines below, produce a JSON object with exactly these fields:
{"narrative": "...", "net_sentiment": -1.0 to 1.0, "confidence": 0.0 to 1.0, "key_themes": ["..."], "contradictions": ["..."], "recommendation": "BUY"|"SELL"|"HOLD"|"WAIT_FOR_CLARITY", "reasoning": "..."}

%s%s`

// LLMSynthesizer implements news.Synthesizer over an ai.Model, grounded on
// the teacher's sentiment_service.go (aggregate many articles into one
// scored verdict) generalized from a numeric sentiment score to the full
// NarrativeSynthesis shape spec.md 4.H requires.
type LLMSynthesizer struct {
	model ai.Model
}

// NewLLMSynthesizer builds a Synthesizer backed by model.
func NewLLMSynthesizer(model ai.Model) *LLMSynthesizer {
	return &LLMSynthesizer{model: model}
}

type synthesisPayload struct {
	Narrative      string   `json:"narrative"`
	NetSentiment   float64  `json:"net_sentiment"`
	Confidence     float64  `json:"confidence"`
	KeyThemes      []string `json:"key_themes"`
	Contradictions []string `json:"contradictions"`
	Recommendation string   `json:"recommendation"`
	Reasoning      string   `json:"reasoning"`
}

// Synthesize submits the accumulated articles (plus the prior synthesis,
// if any, so the model can reconcile rather than restart) and parses the
// model's fixed-schema response into a core.NarrativeSynthesis.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, symbol string, articles []core.NewsArticle, previous *core.NarrativeSynthesis) (core.NarrativeSynthesis, error) {
	prompt := fmt.Sprintf(synthesisTemplate, symbol, renderArticles(articles), renderPrevious(previous))

	raw, err := s.model.Complete(ctx, prompt)
	if err != nil {
		return core.NarrativeSynthesis{}, core.NewError(core.KindModelUnavailable, "news.Synthesize", err)
	}

	jsonText, ok := ai.ExtractJSON(raw)
	if !ok {
		return core.NarrativeSynthesis{}, core.NewError(core.KindParseError, "news.Synthesize", fmt.Errorf("no JSON payload found in synthesis response"))
	}

	var payload synthesisPayload
	if err := json.Unmarshal([]byte(jsonText), &payload); err != nil {
		return core.NarrativeSynthesis{}, core.NewError(core.KindParseError, "news.Synthesize", err)
	}

	rec := core.Recommendation(payload.Recommendation)
	switch rec {
	case core.RecommendBuy, core.RecommendSell, core.RecommendHold, core.RecommendWaitClarity:
	default:
		return core.NarrativeSynthesis{}, core.NewError(core.KindSchemaError, "news.Synthesize", fmt.Errorf("recommendation %q is not a recognized value", payload.Recommendation))
	}

	revision := 0
	if previous != nil {
		revision = previous.Revision + 1
	}

	return core.NarrativeSynthesis{
		Narrative:      payload.Narrative,
		NetSentiment:   payload.NetSentiment,
		Confidence:     payload.Confidence,
		KeyThemes:      payload.KeyThemes,
		Contradictions: payload.Contradictions,
		Recommendation: rec,
		Reasoning:      payload.Reasoning,
		SynthesizedAt:  time.Now(),
		Revision:       revision,
	}, nil
}

func renderArticles(articles []core.NewsArticle) string {
	var b strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Timestamp.Format(time.RFC3339), a.Source, a.Headline)
	}
	return b.String()
}

func renderPrevious(previous *core.NarrativeSynthesis) string {
	if previous == nil {
		return ""
	}
	return fmt.Sprintf("\nPrior synthesis (revision %d): %s\n", previous.Revision, previous.Narrative)
}
