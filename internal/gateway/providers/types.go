package providers

import (
	"context"
	"errors"
	"fmt"
)

// Known provider tags. Registry resolution is a closed set; anything
// else is a configuration error, not a runtime condition.
const (
	ProviderOpenAI      = "openai"
	ProviderAnthropic   = "anthropic"
	ProviderHuggingFace = "huggingface"
	ProviderOllama      = "ollama"
	ProviderLocal       = "local"
)

// ErrUnsupported is returned for capabilities an adapter does not
// implement (e.g. embeddings on a completion-only provider).
var ErrUnsupported = errors.New("operation not supported by this provider")

// GenerateParams carries one text-generation request to an upstream.
type GenerateParams struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
}

// GenerateResult is the normalized upstream response. Token counts are
// always populated: adapters whose upstream omits them fall back to
// their own CountTokens estimate.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Adapter is the uniform contract every upstream provider family
// implements.
type Adapter interface {
	// GenerateText dispatches a prompt and normalizes the response.
	GenerateText(ctx context.Context, p GenerateParams) (*GenerateResult, error)

	// Embed returns an embedding vector for text. Optional capability;
	// adapters without one return ErrUnsupported.
	Embed(ctx context.Context, model, text string) ([]float32, error)

	// CountTokens counts (or estimates) tokens in text for model. The
	// same counter backs cost calculation on this family, so costs are
	// reproducible even where the estimate is lossy.
	CountTokens(text, model string) int

	// Name returns the provider tag.
	Name() string
}

// UpstreamError reports a non-success HTTP status from a provider. The
// body is kept for logs and never echoed to gateway callers.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// UnreachableError reports a transport-level failure or timeout before
// any upstream status was received.
type UnreachableError struct {
	Provider string
	Err      error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Provider, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// UnsupportedProviderError reports a model configured with a provider
// tag outside the known set.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported model provider: %s", e.Provider)
}
