// Package ai provides the Model collaborator: provider/model metadata
// (Registry), cost/latency-aware selection (Router, PolicyEngine), and the
// single-turn chat completion Client those route to.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Client makes single-turn chat completion calls against whichever
// provider a Router selects. The Decision Core never streams and never
// asks the model to call tools — it sends one prompt, expects one JSON
// response, per spec.md 4.D.
type Client struct {
	httpClient *http.Client
	registry   *Registry
	logger     *zap.Logger
	mu         sync.RWMutex
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// ChatResponse represents a chat completion response.
type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// ClientOption configures the AI client.
type ClientOption func(*Client)

// WithClientHTTPClient sets a custom HTTP client.
func WithClientHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new AI client.
func NewClient(aiRegistry *Registry, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		registry:   aiRegistry,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Chat sends a chat request and returns the response.
func (c *Client) Chat(ctx context.Context, providerID, modelID string, messages []Message, opts ...ChatOption) (*ChatResponse, error) {
	providers, err := c.registry.GetActiveProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get providers: %w", err)
	}

	var provider *ProviderInfo
	for _, p := range providers {
		if p.ID == providerID {
			provider = &p
			break
		}
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s not found", providerID)
	}

	req := &ChatRequest{
		Model:    modelID,
		Messages: messages,
	}
	for _, opt := range opts {
		opt(req)
	}

	switch providerID {
	case "openai":
		return c.chatOpenAI(ctx, provider, req)
	case "anthropic":
		return c.chatAnthropic(ctx, provider, req)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", providerID)
	}
}

// ChatOption modifies a chat request.
type ChatOption func(*ChatRequest)

// WithTemperature sets the temperature.
func WithTemperature(temp float64) ChatOption {
	return func(r *ChatRequest) {
		r.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens.
func WithMaxTokens(tokens int) ChatOption {
	return func(r *ChatRequest) {
		r.MaxTokens = tokens
	}
}

// chatOpenAI makes a request to OpenAI API.
func (c *Client) chatOpenAI(ctx context.Context, provider *ProviderInfo, req *ChatRequest) (*ChatResponse, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for provider: %s", provider.ID)
	}

	apiURL := "https://api.openai.com/v1/chat/completions"
	if envURL := os.Getenv("OPENAI_BASE_URL"); envURL != "" {
		apiURL = envURL + "/chat/completions"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(response.Choices) == 0 {
		return &ChatResponse{Model: response.Model}, nil
	}

	return &ChatResponse{
		Content: response.Choices[0].Message.Content,
		Model:   response.Model,
	}, nil
}

// chatAnthropic makes a request to Anthropic API.
func (c *Client) chatAnthropic(ctx context.Context, provider *ProviderInfo, req *ChatRequest) (*ChatResponse, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("no API key for provider: %s", provider.ID)
	}

	apiURL := "https://api.anthropic.com/v1/messages"
	if envURL := os.Getenv("ANTHROPIC_BASE_URL"); envURL != "" {
		apiURL = envURL
	}

	type anthropicMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}

	msgs := make([]anthropicMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = anthropicMessage{Role: m.Role, Content: m.Content}
	}

	anthropicReq := map[string]interface{}{
		"model":      req.Model,
		"messages":   msgs,
		"max_tokens": 4096,
	}
	if req.Temperature > 0 {
		anthropicReq["temperature"] = req.Temperature
	}

	body, err := json.Marshal(anthropicReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text,omitempty"`
		} `json:"content"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var content string
	for _, block := range response.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &ChatResponse{
		Content: content,
		Model:   response.Model,
	}, nil
}
