package ai

import (
	"context"
	"fmt"
)

// Model is the LLM collaborator TradingAgent/OvernightPipeline call with an
// assembled prompt and expect one raw string response back. It never sees
// QueryContext or Decision — those are internal/prompt's and
// internal/ai's ResponseParser's concerns respectively.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Collaborator implements Model over a policy-routed Client: RouteWithPolicy
// picks a provider/model pair for every call, so routine scheduled-cycle
// prompts can run against a cheap model while overnight deep analysis
// routes to a higher-quality one, without TradingAgent knowing either name.
type Collaborator struct {
	client      *Client
	policy      *PolicyEngine
	policyID    string
	systemRole  string
	temperature float64
	maxTokens   int
}

// CollaboratorOption configures a Collaborator.
type CollaboratorOption func(*Collaborator)

// WithSystemRole records a message role on the Collaborator. Complete does
// not use it: every call sends the prompt as a single "user" message with
// no preamble, since PromptAssembler already produces a complete,
// self-contained prompt.
func WithSystemRole(role string) CollaboratorOption {
	return func(c *Collaborator) { c.systemRole = role }
}

// WithCollaboratorTemperature sets the sampling temperature for every completion.
func WithCollaboratorTemperature(temp float64) CollaboratorOption {
	return func(c *Collaborator) { c.temperature = temp }
}

// WithCollaboratorMaxTokens bounds the response length.
func WithCollaboratorMaxTokens(tokens int) CollaboratorOption {
	return func(c *Collaborator) { c.maxTokens = tokens }
}

// NewCollaborator builds a Collaborator that routes every Complete call
// through policyID (one of PresetPolicies, or a caller-registered one).
func NewCollaborator(client *Client, policy *PolicyEngine, policyID string, opts ...CollaboratorOption) *Collaborator {
	c := &Collaborator{
		client:      client,
		policy:      policy,
		policyID:    policyID,
		temperature: 0.2,
		maxTokens:   1024,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete routes prompt to the policy's selected model and returns the raw
// text response, unparsed — internal/ai's ResponseParser does the rest.
func (c *Collaborator) Complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.policy.RouteWithPolicy(ctx, c.policyID)
	if err != nil {
		return "", fmt.Errorf("ai: route: %w", err)
	}

	messages := []Message{{Role: "user", Content: prompt}}

	resp, err := c.client.Chat(ctx, result.Model.ProviderID, result.Model.ModelID, messages,
		WithTemperature(c.temperature), WithMaxTokens(c.maxTokens))
	if err != nil {
		return "", fmt.Errorf("ai: chat via %s/%s: %w", result.Model.ProviderID, result.Model.ModelID, err)
	}

	return resp.Content, nil
}
