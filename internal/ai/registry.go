// Package ai provides the Model collaborator that TradingAgent and
// OvernightPipeline complete prompts against. Provider/model metadata comes
// from models.dev; Redis caches it so every cycle doesn't refetch.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// ModelsDevAPIURL is the endpoint for models.dev API
	ModelsDevAPIURL = "https://models.dev/api.json"

	// CacheKey is the Redis key for caching model registry
	CacheKey = "decisioncore:ai:model_registry"

	// CacheTTL is the cache duration for model registry
	CacheTTL = 24 * time.Hour
)

// ModelCapability represents model capability flags
type ModelCapability struct {
	SupportsTools     bool `json:"supports_tools"`
	SupportsVision    bool `json:"supports_vision"`
	SupportsReasoning bool `json:"supports_reasoning"`
}

// ModelCost represents cost metadata for a model
type ModelCost struct {
	InputCost     decimal.Decimal `json:"input_cost"`
	OutputCost    decimal.Decimal `json:"output_cost"`
	ReasoningCost decimal.Decimal `json:"reasoning_cost,omitempty"`
	CacheReadCost decimal.Decimal `json:"cache_read_cost,omitempty"`
}

// ModelLimits represents token limits for a model
type ModelLimits struct {
	ContextLimit int `json:"context_limit"`
	InputLimit   int `json:"input_limit"`
	OutputLimit  int `json:"output_limit"`
}

// ModelInfo represents a single model's metadata from models.dev
type ModelInfo struct {
	ProviderID       string          `json:"provider_id"`
	ProviderLabel    string          `json:"provider_label"`
	ModelID          string          `json:"model_id"`
	DisplayName      string          `json:"display_name"`
	Family           string          `json:"family,omitempty"`
	Capabilities     ModelCapability `json:"capabilities"`
	Cost             ModelCost       `json:"cost"`
	Limits           ModelLimits     `json:"limits"`
	LatencyClass     string          `json:"latency_class"`
	Status           string          `json:"status"`
	RiskLevel        string          `json:"risk_level"`
	StructuredOutput bool            `json:"structured_output"`
	LastUpdated      string          `json:"last_updated"`
}

// ProviderInfo represents provider metadata
type ProviderInfo struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	EnvVars []string    `json:"env_vars"`
	Models  []ModelInfo `json:"models"`
}

// ModelRegistry represents the full models.dev registry
type ModelRegistry struct {
	Providers []ProviderInfo `json:"providers"`
	Models    []ModelInfo    `json:"models"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// Registry provides AI provider and model registry functionality
type Registry struct {
	client       *http.Client
	redis        *redis.Client
	logger       *zap.Logger
	modelsDevURL string
	cacheTTL     time.Duration

	mu         sync.RWMutex
	localCache *ModelRegistry
}

// RegistryOption configures the Registry
type RegistryOption func(*Registry)

// NewRegistry creates a new AI model registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		client:       &http.Client{Timeout: 30 * time.Second},
		modelsDevURL: ModelsDevAPIURL,
		cacheTTL:     CacheTTL,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithRedis sets the Redis client used to cache the registry across process
// restarts; without one the registry still works, refetching every cacheTTL.
func WithRedis(client *redis.Client) RegistryOption {
	return func(r *Registry) { r.redis = client }
}

// WithLogger sets the logger for the registry
func WithLogger(logger *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithCacheTTL sets the cache TTL for the registry
func WithCacheTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) { r.cacheTTL = ttl }
}

// WithModelsDevURL overrides the models.dev API URL, mainly for tests.
func WithModelsDevURL(url string) RegistryOption {
	return func(r *Registry) { r.modelsDevURL = url }
}

// FetchModels fetches the model registry from models.dev API
func (r *Registry) FetchModels(ctx context.Context) (*ModelRegistry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.modelsDevURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ai: build models.dev request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: fetch models.dev: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ai: models.dev returned status %d", resp.StatusCode)
	}

	var rawData map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&rawData); err != nil {
		return nil, fmt.Errorf("ai: decode models.dev response: %w", err)
	}

	registry := &ModelRegistry{Providers: []ProviderInfo{}, Models: []ModelInfo{}}

	for providerID, providerData := range rawData {
		pd, ok := providerData.(map[string]interface{})
		if !ok {
			continue
		}

		provider := ProviderInfo{ID: providerID}
		if name, ok := pd["name"].(string); ok {
			provider.Name = name
		}
		if envVars, ok := pd["env"].([]interface{}); ok {
			provider.EnvVars = make([]string, len(envVars))
			for i, v := range envVars {
				if s, ok := v.(string); ok {
					provider.EnvVars[i] = s
				}
			}
		}

		if modelsData, ok := pd["models"].(map[string]interface{}); ok {
			for modelID, modelData := range modelsData {
				md, ok := modelData.(map[string]interface{})
				if !ok {
					continue
				}

				model := ModelInfo{ProviderID: providerID, ProviderLabel: provider.Name, ModelID: modelID, Status: "active"}
				if name, ok := md["name"].(string); ok {
					model.DisplayName = name
				}
				if family, ok := md["family"].(string); ok {
					model.Family = family
				}
				if lastUpdated, ok := md["last_updated"].(string); ok {
					model.LastUpdated = lastUpdated
				}
				if toolCall, ok := md["tool_call"].(bool); ok {
					model.Capabilities.SupportsTools = toolCall
				}
				if reasoning, ok := md["reasoning"].(bool); ok {
					model.Capabilities.SupportsReasoning = reasoning
				}
				if status, ok := md["status"].(string); ok {
					model.Status = status
				}
				if costData, ok := md["cost"].(map[string]interface{}); ok {
					if input, ok := costData["input"].(float64); ok {
						model.Cost.InputCost = decimal.NewFromFloat(input)
					}
					if output, ok := costData["output"].(float64); ok {
						model.Cost.OutputCost = decimal.NewFromFloat(output)
					}
				}
				if limitData, ok := md["limit"].(map[string]interface{}); ok {
					if context, ok := limitData["context"].(float64); ok {
						model.Limits.ContextLimit = int(context)
					}
				}
				model.LatencyClass = inferLatencyClass(providerID)

				registry.Models = append(registry.Models, model)
			}
		}

		registry.Providers = append(registry.Providers, provider)
	}

	registry.FetchedAt = time.Now().UTC()

	r.mu.Lock()
	r.localCache = registry
	r.mu.Unlock()

	if r.redis != nil {
		if err := r.cacheToRedis(ctx, registry); err != nil {
			r.logger.Warn("ai: cache registry to redis", zap.Error(err))
		}
	}

	return registry, nil
}

// GetRegistry returns the current model registry, using cache if available
func (r *Registry) GetRegistry(ctx context.Context) (*ModelRegistry, error) {
	r.mu.RLock()
	if r.localCache != nil && time.Since(r.localCache.FetchedAt) < r.cacheTTL {
		cache := r.localCache
		r.mu.RUnlock()
		return cache, nil
	}
	r.mu.RUnlock()

	if r.redis != nil {
		if cached, err := r.getFromRedis(ctx); err == nil && cached != nil {
			r.mu.Lock()
			r.localCache = cached
			r.mu.Unlock()
			return cached, nil
		}
	}

	return r.FetchModels(ctx)
}

func (r *Registry) cacheToRedis(ctx context.Context, registry *ModelRegistry) error {
	data, err := json.Marshal(registry)
	if err != nil {
		return fmt.Errorf("ai: marshal registry: %w", err)
	}
	return r.redis.Set(ctx, CacheKey, data, r.cacheTTL).Err()
}

func (r *Registry) getFromRedis(ctx context.Context) (*ModelRegistry, error) {
	data, err := r.redis.Get(ctx, CacheKey).Bytes()
	if err != nil {
		return nil, err
	}
	var registry ModelRegistry
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("ai: unmarshal cached registry: %w", err)
	}
	return &registry, nil
}

// FindModelsByCapability returns active models that support specific capabilities
func (r *Registry) FindModelsByCapability(ctx context.Context, caps ModelCapability) ([]ModelInfo, error) {
	registry, err := r.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}

	var models []ModelInfo
	for _, model := range registry.Models {
		if model.Status != "active" {
			continue
		}
		if caps.SupportsTools && !model.Capabilities.SupportsTools {
			continue
		}
		if caps.SupportsVision && !model.Capabilities.SupportsVision {
			continue
		}
		if caps.SupportsReasoning && !model.Capabilities.SupportsReasoning {
			continue
		}
		models = append(models, model)
	}

	return models, nil
}

// GetActiveProviders returns all providers seen in the current registry
func (r *Registry) GetActiveProviders(ctx context.Context) ([]ProviderInfo, error) {
	registry, err := r.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return registry.Providers, nil
}

func inferLatencyClass(providerID string) string {
	fastProviders := map[string]bool{
		"openai": true, "anthropic": true, "google": true, "xai": true,
		"groq": true, "fireworks-ai": true, "togetherai": true,
	}
	accurateProviders := map[string]bool{
		"anthropic": true, "openai": true, "google-vertex": true,
	}
	if fastProviders[providerID] {
		return "fast"
	}
	if accurateProviders[providerID] {
		return "accurate"
	}
	return "balanced"
}
