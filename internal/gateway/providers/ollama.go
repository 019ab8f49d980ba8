package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OllamaAdapter handles a local Ollama daemon. No credentials required.
type OllamaAdapter struct {
	baseURL    string
	httpClient *http.Client
	counter    TokenCounter
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	NumPredict  int      `json:"num_predict,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaAdapter creates a new Ollama adapter
func NewOllamaAdapter(baseURL string) *OllamaAdapter {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaAdapter{
		baseURL:    baseURL,
		httpClient: newHTTPClient(),
		counter:    HeuristicCounter{},
	}
}

// GenerateText makes a generation request to the daemon
func (a *OllamaAdapter) GenerateText(ctx context.Context, p GenerateParams) (*GenerateResult, error) {
	req := ollamaRequest{
		Model:  p.Model,
		Prompt: p.Prompt,
		Stream: false,
		Options: ollamaOptions{
			NumPredict: p.MaxTokens,
		},
	}
	if p.Temperature > 0 {
		req.Options.Temperature = &p.Temperature
	}
	if p.TopP > 0 {
		req.Options.TopP = &p.TopP
	}
	if p.TopK > 0 {
		req.Options.TopK = &p.TopK
	}

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.baseURL+"/api/generate", nil, req)
	if err != nil {
		return nil, err
	}

	var resp ollamaResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	// The daemon usually reports eval counts; estimate when it doesn't.
	result := &GenerateResult{
		Text:             resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
	}
	normalizeTokens(result, a.counter, p.Prompt, p.Model)

	return result, nil
}

// Embed requests an embedding vector from the daemon
func (a *OllamaAdapter) Embed(ctx context.Context, model, text string) ([]float32, error) {
	req := ollamaEmbeddingRequest{Model: model, Prompt: text}

	body, err := postJSON(ctx, a.httpClient, a.Name(), a.baseURL+"/api/embeddings", nil, req)
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}

	return resp.Embedding, nil
}

// CountTokens estimates tokens for Ollama models
func (a *OllamaAdapter) CountTokens(text, model string) int {
	return a.counter.Count(text, model)
}

// Name returns the provider tag
func (a *OllamaAdapter) Name() string {
	return ProviderOllama
}
