package ai

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) *redis.Client {
	s := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: s.Addr()})
}

func TestNewRegistry(t *testing.T) {
	tests := []struct {
		name         string
		opts         []RegistryOption
		wantURL      string
		wantCacheTTL time.Duration
	}{
		{name: "default registry", wantURL: ModelsDevAPIURL, wantCacheTTL: CacheTTL},
		{name: "with logger", opts: []RegistryOption{WithLogger(zap.NewNop())}, wantURL: ModelsDevAPIURL, wantCacheTTL: CacheTTL},
		{name: "with custom TTL", opts: []RegistryOption{WithCacheTTL(time.Hour)}, wantURL: ModelsDevAPIURL, wantCacheTTL: time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.opts...)
			assert.NotNil(t, r)
			assert.Equal(t, tt.wantURL, r.modelsDevURL)
			assert.Equal(t, tt.wantCacheTTL, r.cacheTTL)
		})
	}
}

func TestRegistryCacheOperations(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	defer client.Close()

	registry := NewRegistry(WithRedis(client), WithLogger(zap.NewNop()))

	testRegistry := &ModelRegistry{
		FetchedAt: time.Now().UTC(),
		Models: []ModelInfo{
			{
				ProviderID:   "openai",
				ModelID:      "gpt-4",
				DisplayName:  "GPT-4",
				Capabilities: ModelCapability{SupportsTools: true},
				Cost:         ModelCost{InputCost: decimal.NewFromFloat(30.0), OutputCost: decimal.NewFromFloat(60.0)},
				Limits:       ModelLimits{ContextLimit: 8192},
				Status:       "active",
				LatencyClass: "balanced",
			},
			{
				ProviderID:   "anthropic",
				ModelID:      "claude-3-opus",
				DisplayName:  "Claude 3 Opus",
				Capabilities: ModelCapability{SupportsTools: true, SupportsReasoning: true},
				Cost:         ModelCost{InputCost: decimal.NewFromFloat(15.0), OutputCost: decimal.NewFromFloat(75.0)},
				Limits:       ModelLimits{ContextLimit: 200000},
				Status:       "active",
				LatencyClass: "accurate",
			},
		},
	}

	t.Run("cache to redis", func(t *testing.T) {
		err := registry.cacheToRedis(ctx, testRegistry)
		require.NoError(t, err)

		data, err := client.Get(ctx, CacheKey).Bytes()
		require.NoError(t, err)
		assert.NotEmpty(t, data)
	})

	t.Run("get from redis", func(t *testing.T) {
		cached, err := registry.getFromRedis(ctx)
		require.NoError(t, err)
		assert.Len(t, cached.Models, 2)
		assert.Equal(t, "gpt-4", cached.Models[0].ModelID)
	})

	t.Run("get registry uses local cache on second call", func(t *testing.T) {
		cached, err := registry.GetRegistry(ctx)
		require.NoError(t, err)
		assert.Len(t, cached.Models, 2)

		cached2, err := registry.GetRegistry(ctx)
		require.NoError(t, err)
		assert.Equal(t, cached.FetchedAt, cached2.FetchedAt)
	})
}

func TestFindModelsByCapability(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	defer client.Close()

	registry := NewRegistry(WithRedis(client))

	testRegistry := &ModelRegistry{
		FetchedAt: time.Now().UTC(),
		Models: []ModelInfo{
			{ProviderID: "openai", ModelID: "gpt-4", Status: "active", Capabilities: ModelCapability{SupportsTools: true}},
			{ProviderID: "anthropic", ModelID: "claude-3", Status: "active", Capabilities: ModelCapability{SupportsTools: true, SupportsVision: true}},
			{ProviderID: "openai", ModelID: "gpt-3.5", Status: "degraded", Capabilities: ModelCapability{SupportsTools: true}},
		},
	}

	require.NoError(t, registry.cacheToRedis(ctx, testRegistry))

	t.Run("find by tools capability excludes degraded", func(t *testing.T) {
		models, err := registry.FindModelsByCapability(ctx, ModelCapability{SupportsTools: true})
		require.NoError(t, err)
		assert.Len(t, models, 2)
	})

	t.Run("find by multiple capabilities", func(t *testing.T) {
		models, err := registry.FindModelsByCapability(ctx, ModelCapability{SupportsTools: true, SupportsVision: true})
		require.NoError(t, err)
		require.Len(t, models, 1)
		assert.Equal(t, "claude-3", models[0].ModelID)
	})

	t.Run("no matches", func(t *testing.T) {
		models, err := registry.FindModelsByCapability(ctx, ModelCapability{SupportsReasoning: true})
		require.NoError(t, err)
		assert.Len(t, models, 0)
	})
}

func TestModelInfoJSON(t *testing.T) {
	model := ModelInfo{
		ProviderID:   "openai",
		ModelID:      "gpt-4",
		DisplayName:  "GPT-4",
		Capabilities: ModelCapability{SupportsTools: true},
		Cost:         ModelCost{InputCost: decimal.NewFromFloat(30.0), OutputCost: decimal.NewFromFloat(60.0)},
		Limits:       ModelLimits{ContextLimit: 8192, OutputLimit: 4096},
		Status:       "active",
	}

	data, err := json.Marshal(model)
	require.NoError(t, err)

	var decoded ModelInfo
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, model.ProviderID, decoded.ProviderID)
	assert.Equal(t, model.ModelID, decoded.ModelID)
	assert.Equal(t, model.Capabilities.SupportsTools, decoded.Capabilities.SupportsTools)
	assert.True(t, model.Cost.InputCost.Equal(decoded.Cost.InputCost))
	assert.Equal(t, model.Limits.ContextLimit, decoded.Limits.ContextLimit)
}
