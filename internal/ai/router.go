package ai

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Router selects a provider/model pair for a completion call, scoring
// candidates on cost, latency fit, and capability richness so routine
// scheduled-cycle calls can route cheap while overnight analysis routes to a
// higher-quality model, all behind the same Model interface.
type Router struct {
	registry *Registry
}

// NewRouter creates a new AI model router
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// RoutingConstraints defines constraints for model selection
type RoutingConstraints struct {
	RequiredCaps      ModelCapability
	MaxInputCost      decimal.Decimal
	MaxOutputCost     decimal.Decimal
	LatencyPreference string // "fast", "balanced", "accurate"
	AllowedProviders  []string
	BlockedProviders  []string
	MinContextTokens  int
}

// RoutingResult represents a routing decision
type RoutingResult struct {
	Model        ModelInfo
	Provider     ProviderInfo
	Score        float64
	Reason       string
	Alternatives []ModelInfo
}

// Route selects the best model based on constraints
func (r *Router) Route(ctx context.Context, constraints RoutingConstraints) (*RoutingResult, error) {
	models, err := r.registry.FindModelsByCapability(ctx, constraints.RequiredCaps)
	if err != nil {
		return nil, fmt.Errorf("ai: list candidate models: %w", err)
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("ai: no models match the required capabilities")
	}

	var candidates []ModelInfo
	for _, model := range models {
		if r.matchesConstraints(model, constraints) {
			candidates = append(candidates, model)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("ai: no models match all routing constraints")
	}

	scored := r.scoreModels(candidates, constraints)
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	winner := scored[0]

	providers, err := r.registry.GetActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("ai: list providers: %w", err)
	}
	var provider ProviderInfo
	for _, p := range providers {
		if p.ID == winner.Model.ProviderID {
			provider = p
			break
		}
	}

	var alternatives []ModelInfo
	for i, s := range scored {
		if i > 0 && i <= 3 {
			alternatives = append(alternatives, s.Model)
		}
	}

	return &RoutingResult{
		Model:        winner.Model,
		Provider:     provider,
		Score:        winner.Score,
		Reason:       winner.Reason,
		Alternatives: alternatives,
	}, nil
}

func (r *Router) matchesConstraints(model ModelInfo, constraints RoutingConstraints) bool {
	if model.Status != "active" {
		return false
	}
	if len(constraints.AllowedProviders) > 0 {
		found := false
		for _, p := range constraints.AllowedProviders {
			if p == model.ProviderID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, p := range constraints.BlockedProviders {
		if p == model.ProviderID {
			return false
		}
	}
	if constraints.MaxInputCost.GreaterThan(decimal.Zero) && model.Cost.InputCost.GreaterThan(constraints.MaxInputCost) {
		return false
	}
	if constraints.MaxOutputCost.GreaterThan(decimal.Zero) && model.Cost.OutputCost.GreaterThan(constraints.MaxOutputCost) {
		return false
	}
	if constraints.MinContextTokens > 0 && model.Limits.ContextLimit < constraints.MinContextTokens {
		return false
	}
	return true
}

// ScoredModel represents a model with its routing score
type ScoredModel struct {
	Model  ModelInfo
	Score  float64
	Reason string
}

func (r *Router) scoreModels(models []ModelInfo, constraints RoutingConstraints) []ScoredModel {
	var scored []ScoredModel

	for _, model := range models {
		score := 0.0
		var reasons []string

		totalCost := model.Cost.InputCost.Add(model.Cost.OutputCost)
		if totalCost.GreaterThan(decimal.Zero) {
			one := decimal.NewFromFloat(1.0)
			hundred := decimal.NewFromFloat(100.0)
			costScore, _ := hundred.Div(one.Add(totalCost)).Float64()
			score += costScore * 0.3
			reasons = append(reasons, fmt.Sprintf("cost-efficient ($%s/1M)", totalCost.String()))
		}

		latencyScore := r.scoreLatency(model, constraints.LatencyPreference)
		score += latencyScore * 0.25
		if latencyScore > 80 {
			reasons = append(reasons, "low-latency")
		}

		capScore := r.scoreCapabilities(model)
		score += capScore * 0.2
		if capScore > 50 {
			reasons = append(reasons, "rich-capabilities")
		}

		if model.Limits.ContextLimit > 100000 {
			score += 15.0
			reasons = append(reasons, "large-context")
		}
		if model.ProviderID == "openai" || model.ProviderID == "anthropic" {
			score += 10.0
			reasons = append(reasons, "reliable-provider")
		}

		scored = append(scored, ScoredModel{Model: model, Score: score, Reason: joinReasons(reasons)})
	}

	return scored
}

func (r *Router) scoreLatency(model ModelInfo, preference string) float64 {
	switch model.LatencyClass {
	case "fast":
		if preference == "fast" {
			return 100.0
		}
		return 80.0
	case "balanced":
		if preference == "balanced" {
			return 100.0
		}
		if preference == "fast" {
			return 60.0
		}
		return 80.0
	case "accurate":
		if preference == "accurate" {
			return 100.0
		}
		return 40.0
	default:
		return 50.0
	}
}

func (r *Router) scoreCapabilities(model ModelInfo) float64 {
	score := 0.0
	if model.Capabilities.SupportsTools {
		score += 25.0
	}
	if model.Capabilities.SupportsVision {
		score += 25.0
	}
	if model.Capabilities.SupportsReasoning {
		score += 25.0
	}
	if model.StructuredOutput {
		score += 25.0
	}
	return score
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	result := reasons[0]
	for i := 1; i < len(reasons); i++ {
		result += ", " + reasons[i]
	}
	return result
}
