package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// AnthropicAdapter handles Anthropic's text completion API.
type AnthropicAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	counter    TokenCounter
}

type anthropicRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokensToSample int      `json:"max_tokens_to_sample"`
	Temperature       *float32 `json:"temperature,omitempty"`
	TopP              *float32 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
}

type anthropicResponse struct {
	Completion string `json:"completion"`
	StopReason string `json:"stop_reason"`
	Model      string `json:"model"`
}

// NewAnthropicAdapter creates a new Anthropic adapter
func NewAnthropicAdapter(apiKey, baseURL string) *AnthropicAdapter {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
		// The completion API reports no token usage; the heuristic
		// estimate is used consistently for this family.
		counter: HeuristicCounter{},
	}
}

// GenerateText makes a completion request to Anthropic
func (a *AnthropicAdapter) GenerateText(ctx context.Context, p GenerateParams) (*GenerateResult, error) {
	req := anthropicRequest{
		Model:             p.Model,
		Prompt:            fmt.Sprintf("\n\nHuman: %s\n\nAssistant:", p.Prompt),
		MaxTokensToSample: p.MaxTokens,
	}
	if p.Temperature > 0 {
		req.Temperature = &p.Temperature
	}
	if p.TopP > 0 {
		req.TopP = &p.TopP
	}
	if p.TopK > 0 {
		req.TopK = &p.TopK
	}

	headers := map[string]string{
		"x-api-key":         a.apiKey,
		"anthropic-version": "2023-06-01",
	}

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.baseURL+"/v1/complete", headers, req)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}

	result := &GenerateResult{Text: resp.Completion}
	normalizeTokens(result, a.counter, p.Prompt, p.Model)

	return result, nil
}

// Embed is not offered by this API
func (a *AnthropicAdapter) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return nil, ErrUnsupported
}

// CountTokens estimates tokens for Anthropic models
func (a *AnthropicAdapter) CountTokens(text, model string) int {
	return a.counter.Count(text, model)
}

// Name returns the provider tag
func (a *AnthropicAdapter) Name() string {
	return ProviderAnthropic
}
