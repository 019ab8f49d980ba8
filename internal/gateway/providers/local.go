package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// LocalAdapter handles a generic self-hosted HTTP generation service.
// Such services disagree on response field names, so the adapter probes
// the common shapes instead of requiring one.
type LocalAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	counter    TokenCounter
}

type localRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float32 `json:"temperature,omitempty"`
	TopP        float32 `json:"top_p,omitempty"`
	TopK        int     `json:"top_k,omitempty"`
}

type localResponse struct {
	Text             string `json:"text"`
	Completion       string `json:"completion"`
	Response         string `json:"response"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// NewLocalAdapter creates a new generic local adapter
func NewLocalAdapter(apiKey, baseURL string) *LocalAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &LocalAdapter{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
		counter:    HeuristicCounter{},
	}
}

// GenerateText makes a generation request
func (a *LocalAdapter) GenerateText(ctx context.Context, p GenerateParams) (*GenerateResult, error) {
	req := localRequest{
		Model:       p.Model,
		Prompt:      p.Prompt,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		TopK:        p.TopK,
	}

	var headers map[string]string
	if a.apiKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + a.apiKey}
	}

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.baseURL+"/generate", headers, req)
	if err != nil {
		return nil, err
	}

	var resp localResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse local response: %w", err)
	}

	text := resp.Text
	if text == "" {
		text = resp.Completion
	}
	if text == "" {
		text = resp.Response
	}

	result := &GenerateResult{
		Text:             text,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.TotalTokens,
	}
	normalizeTokens(result, a.counter, p.Prompt, p.Model)

	return result, nil
}

// Embed is not offered by generic local services
func (a *LocalAdapter) Embed(ctx context.Context, model, text string) ([]float32, error) {
	return nil, ErrUnsupported
}

// CountTokens estimates tokens for local models
func (a *LocalAdapter) CountTokens(text, model string) int {
	return a.counter.Count(text, model)
}

// Name returns the provider tag
func (a *LocalAdapter) Name() string {
	return ProviderLocal
}
