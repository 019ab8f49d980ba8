package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter handles OpenAI-compatible chat completion APIs.
type OpenAIAdapter struct {
	client  *openai.Client
	counter TokenCounter
}

// NewOpenAIAdapter creates an adapter for the OpenAI API, or any
// compatible endpoint when baseURL is set.
func NewOpenAIAdapter(apiKey, baseURL string) *OpenAIAdapter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client:  openai.NewClientWithConfig(cfg),
		counter: NewTiktokenCounter(),
	}
}

// GenerateText makes a chat completion request
func (a *OpenAIAdapter) GenerateText(ctx context.Context, p GenerateParams) (*GenerateResult, error) {
	req := openai.ChatCompletionRequest{
		Model: p.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: p.Prompt},
		},
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TopP:        p.TopP,
		// TopK is not part of the chat completion API and is ignored.
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, a.classify(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &UpstreamError{Provider: a.Name(), Status: 200, Body: "response contained no choices"}
	}
	text := resp.Choices[0].Message.Content

	result := &GenerateResult{
		Text:             text,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	normalizeTokens(result, a.counter, p.Prompt, p.Model)

	return result, nil
}

// Embed requests an embedding vector
func (a *OpenAIAdapter) Embed(ctx context.Context, model, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(model),
		Input: []string{text},
	})
	if err != nil {
		return nil, a.classify(err)
	}

	if len(resp.Data) == 0 {
		return nil, &UpstreamError{Provider: a.Name(), Status: 200, Body: "response contained no embeddings"}
	}
	return resp.Data[0].Embedding, nil
}

// CountTokens counts tokens using the model's exact vocabulary where
// known.
func (a *OpenAIAdapter) CountTokens(text, model string) int {
	return a.counter.Count(text, model)
}

// Name returns the provider tag
func (a *OpenAIAdapter) Name() string {
	return ProviderOpenAI
}

// classify maps go-openai client errors onto the gateway taxonomy.
func (a *OpenAIAdapter) classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{
			Provider: a.Name(),
			Status:   apiErr.HTTPStatusCode,
			Body:     fmt.Sprintf("%v", apiErr.Message),
		}
	}
	return &UnreachableError{Provider: a.Name(), Err: err}
}

// normalizeTokens fills any token counts the upstream omitted with the
// adapter's own estimate, so a missing count never propagates.
func normalizeTokens(r *GenerateResult, counter TokenCounter, prompt, model string) {
	if r.PromptTokens == 0 {
		r.PromptTokens = counter.Count(prompt, model)
	}
	if r.CompletionTokens == 0 && r.Text != "" {
		r.CompletionTokens = counter.Count(r.Text, model)
	}
	if r.TotalTokens == 0 {
		r.TotalTokens = r.PromptTokens + r.CompletionTokens
	}
}
