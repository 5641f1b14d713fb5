// Package prompt implements PromptAssembler: a compositional prompt
// builder that selects typed PromptComponents keyed by a QueryContext,
// sorts by priority, filters by relevance, and joins renders with a
// blank-line separator, grounded on internal/prompt/builder.go's
// priority/disclosure-driven section assembly (applyDisclosureLevel,
// combinePrompts) but replacing its skill-registry lookup with the
// fixed, compile-time component registry spec 4.C/9 mandates (no
// reflective "extension" components).
package prompt

import (
	"fmt"
	"strings"

	"github.com/nyxtrader/decisioncore/internal/core"
)

// Component is the polymorphic prompt unit spec.md 3 defines: priority
// determines render order (descending, ties by registration order),
// IsRelevant gates inclusion for a given QueryContext, Render produces
// the text block.
type Component interface {
	Priority() int
	IsRelevant(ctx core.QueryContext) bool
	Render(ctx core.QueryContext) (string, error)
}

// Bundle is the data a component may need beyond the QueryContext
// itself — the "data bundle" spec 4.C references — assembled by
// TradingAgent/OvernightPipeline before calling Build.
type Bundle struct {
	Indicators map[string]*core.IndicatorSet // by symbol
	Timelines  map[string]*core.SymbolTimeline
	MarketRegimeLabel string
	EntryIndicators   *core.IndicatorSet // TRADE_POSTMORTEM: at entry
	ExitIndicators    *core.IndicatorSet // TRADE_POSTMORTEM: at exit
}

// Assembler builds prompts from the fixed component registry.
type Assembler struct {
	components []Component
}

// NewAssembler returns an Assembler wired with the full, spec-mandated
// component set, fed by bundle for data-carrying components.
func NewAssembler(bundle *Bundle) *Assembler {
	if bundle == nil {
		bundle = &Bundle{}
	}
	return &Assembler{
		components: []Component{
			newQueryTypeComponent(),
			newTriggerComponent(),
			newTradingProfileComponent(),
			newTechnicalDataComponent(bundle),
			newPositionDataComponent(),
			newPortfolioSummaryComponent(),
			newNewsComponent(bundle),
			newMarketRegimeComponent(bundle),
			newComparativeDataComponent(),
			newTaskInstructionComponent(),
			newResponseFormatComponent(),
			newOvernightContextComponent(),
		},
	}
}

// Build selects relevant components, sorts by priority descending
// (stable: ties keep registration order), renders each, and joins with
// a blank-line separator — deterministic, so identical (ctx, bundle)
// always produces byte-identical output per spec's testable property.
func (a *Assembler) Build(ctx core.QueryContext) (string, error) {
	type scored struct {
		component Component
		priority  int
		order     int
	}

	var selected []scored
	for i, c := range a.components {
		if c.IsRelevant(ctx) {
			selected = append(selected, scored{component: c, priority: c.Priority(), order: i})
		}
	}

	// Stable sort by priority descending; slices.SortStableFunc would
	// work too but a manual insertion keeps behavior explicit and
	// dependency-free for this small, fixed-size list.
	for i := 1; i < len(selected); i++ {
		j := i
		for j > 0 && selected[j-1].priority < selected[j].priority {
			selected[j-1], selected[j] = selected[j], selected[j-1]
			j--
		}
	}

	var parts []string
	for _, s := range selected {
		text, err := s.component.Render(ctx)
		if err != nil {
			return "", fmt.Errorf("prompt: render component: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, text)
	}

	return strings.Join(parts, "\n\n"), nil
}
