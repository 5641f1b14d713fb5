package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollaborator_Complete_RoutesThroughPolicyAndReturnsRawText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-3.5-turbo",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"action":"hold","confidence":60}`}},
			},
		})
	}))
	defer server.Close()
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", server.URL)

	registry, _ := setupTestRegistry(t)
	router := NewRouter(registry)
	policy := NewPolicyEngine(router)
	require.NoError(t, policy.RegisterPolicy(&RoutingPolicy{
		ID:      "cheap",
		Type:    PolicyTypeCostOptimized,
		Weights: PolicyWeightsByType(PolicyTypeCostOptimized),
		Constraints: RoutingConstraints{
			AllowedProviders: []string{"openai"},
		},
	}))

	client := NewClient(registry)
	collaborator := NewCollaborator(client, policy, "cheap")

	out, err := collaborator.Complete(context.Background(), "analyze AAPL")
	require.NoError(t, err)
	require.Contains(t, out, `"action":"hold"`)
}
