package ai

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PolicyType defines the type of routing policy
type PolicyType string

const (
	// PolicyTypeCostOptimized prioritizes low cost; TradingAgent's routine
	// scheduled cycles use this so a 5-minute cadence stays cheap.
	PolicyTypeCostOptimized PolicyType = "cost_optimized"
	// PolicyTypeLatencyOptimized prioritizes fast responses.
	PolicyTypeLatencyOptimized PolicyType = "latency_optimized"
	// PolicyTypeQualityOptimized prioritizes high-quality responses;
	// OvernightPipeline's iterative analyst sessions use this.
	PolicyTypeQualityOptimized PolicyType = "quality_optimized"
	// PolicyTypeBalanced balances cost, latency, and quality.
	PolicyTypeBalanced PolicyType = "balanced"
)

// RoutingPolicy defines a configurable policy for model selection
type RoutingPolicy struct {
	ID          string
	Name        string
	Type        PolicyType
	Description string
	Constraints RoutingConstraints
	Weights     PolicyWeights
	Fallback    *FallbackPolicy
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PolicyWeights holds a policy's per-factor scoring weights. Router's
// model scoring does not read them: it applies its own fixed weights to
// every policy.
type PolicyWeights struct {
	CostWeight        float64
	LatencyWeight     float64
	CapabilityWeight  float64
	ReliabilityWeight float64
}

// DefaultPolicyWeights returns balanced weights
func DefaultPolicyWeights() PolicyWeights {
	return PolicyWeights{CostWeight: 0.25, LatencyWeight: 0.25, CapabilityWeight: 0.25, ReliabilityWeight: 0.25}
}

// PolicyWeightsByType returns preset weights for common policy types
func PolicyWeightsByType(policyType PolicyType) PolicyWeights {
	switch policyType {
	case PolicyTypeCostOptimized:
		return PolicyWeights{CostWeight: 0.50, LatencyWeight: 0.15, CapabilityWeight: 0.20, ReliabilityWeight: 0.15}
	case PolicyTypeLatencyOptimized:
		return PolicyWeights{CostWeight: 0.15, LatencyWeight: 0.50, CapabilityWeight: 0.20, ReliabilityWeight: 0.15}
	case PolicyTypeQualityOptimized:
		return PolicyWeights{CostWeight: 0.15, LatencyWeight: 0.15, CapabilityWeight: 0.40, ReliabilityWeight: 0.30}
	default:
		return DefaultPolicyWeights()
	}
}

// FallbackPolicy defines fallback behavior when primary routing fails
type FallbackPolicy struct {
	Enabled           bool
	AlternativeModels []string
}

// PolicyEngine manages routing policies and executes routing decisions
type PolicyEngine struct {
	router   *Router
	policies map[string]*RoutingPolicy
	mu       sync.RWMutex
	metrics  PolicyMetrics
}

// PolicyMetrics tracks policy execution counts.
type PolicyMetrics struct {
	TotalRequests    int64
	SuccessfulRoutes int64
	FailedRoutes     int64
	FallbackTriggers int64
}

// NewPolicyEngine creates a new policy engine
func NewPolicyEngine(router *Router) *PolicyEngine {
	return &PolicyEngine{router: router, policies: make(map[string]*RoutingPolicy)}
}

// RegisterPolicy registers a new routing policy
func (pe *PolicyEngine) RegisterPolicy(policy *RoutingPolicy) error {
	if policy.ID == "" {
		return fmt.Errorf("ai: policy ID is required")
	}
	if policy.Type == "" {
		return fmt.Errorf("ai: policy type is required")
	}

	if policy.Weights.CostWeight == 0 && policy.Weights.LatencyWeight == 0 {
		policy.Weights = PolicyWeightsByType(policy.Type)
	}
	pe.normalizeWeights(&policy.Weights)

	policy.UpdatedAt = time.Now().UTC()
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = policy.UpdatedAt
	}

	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.policies[policy.ID] = policy
	return nil
}

func (pe *PolicyEngine) normalizeWeights(weights *PolicyWeights) {
	total := weights.CostWeight + weights.LatencyWeight + weights.CapabilityWeight + weights.ReliabilityWeight
	if total > 0 {
		weights.CostWeight /= total
		weights.LatencyWeight /= total
		weights.CapabilityWeight /= total
		weights.ReliabilityWeight /= total
	}
}

// GetPolicy retrieves a policy by ID
func (pe *PolicyEngine) GetPolicy(policyID string) (*RoutingPolicy, error) {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	policy, exists := pe.policies[policyID]
	if !exists {
		return nil, fmt.Errorf("ai: policy %q not found", policyID)
	}
	return policy, nil
}

// RouteWithPolicy routes a completion call using a previously registered policy.
func (pe *PolicyEngine) RouteWithPolicy(ctx context.Context, policyID string) (*RoutingResult, error) {
	policy, err := pe.GetPolicy(policyID)
	if err != nil {
		pe.recordFailure()
		return nil, err
	}

	result, err := pe.router.Route(ctx, policy.Constraints)
	pe.recordOutcome(err)

	if err != nil {
		if policy.Fallback != nil && policy.Fallback.Enabled {
			return pe.executeFallback(ctx, policy)
		}
		return nil, err
	}

	return result, nil
}

func (pe *PolicyEngine) executeFallback(ctx context.Context, policy *RoutingPolicy) (*RoutingResult, error) {
	for range policy.Fallback.AlternativeModels {
		result, err := pe.router.Route(ctx, policy.Constraints)
		if err == nil {
			pe.mu.Lock()
			pe.metrics.FallbackTriggers++
			pe.mu.Unlock()
			return result, nil
		}
	}
	return nil, fmt.Errorf("ai: fallback routing exhausted for policy %q", policy.ID)
}

func (pe *PolicyEngine) recordOutcome(err error) {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.metrics.TotalRequests++
	if err != nil {
		pe.metrics.FailedRoutes++
	} else {
		pe.metrics.SuccessfulRoutes++
	}
}

func (pe *PolicyEngine) recordFailure() {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	pe.metrics.TotalRequests++
	pe.metrics.FailedRoutes++
}

// Metrics returns a snapshot of policy execution counters.
func (pe *PolicyEngine) Metrics() PolicyMetrics {
	pe.mu.RLock()
	defer pe.mu.RUnlock()
	return pe.metrics
}

// PresetPolicies returns the policy templates TradingAgent and
// OvernightPipeline register at startup.
func PresetPolicies() []*RoutingPolicy {
	now := time.Now().UTC()
	return []*RoutingPolicy{
		{
			ID:          "scheduled-cycle",
			Name:        "Scheduled Cycle",
			Type:        PolicyTypeCostOptimized,
			Description: "Cheap, fast model for the 5-minute TradingAgent cadence",
			Weights:     PolicyWeightsByType(PolicyTypeCostOptimized),
			Constraints: RoutingConstraints{LatencyPreference: "fast"},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          "overnight-analysis",
			Name:        "Overnight Analysis",
			Type:        PolicyTypeQualityOptimized,
			Description: "Higher-quality model for EveningDeepLearning's iterative analyst sessions",
			Weights:     PolicyWeightsByType(PolicyTypeQualityOptimized),
			Constraints: RoutingConstraints{LatencyPreference: "accurate", RequiredCaps: ModelCapability{SupportsReasoning: true}},
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}
