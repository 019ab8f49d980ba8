package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicGenerateText(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/complete", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(anthropicResponse{
			Completion: "hello from claude",
			StopReason: "stop_sequence",
		})
	}))
	defer srv.Close()

	a := NewAnthropicAdapter("secret", srv.URL)
	res, err := a.GenerateText(context.Background(), GenerateParams{
		Model:     "claude-2",
		Prompt:    "say hello",
		MaxTokens: 32,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello from claude", res.Text)
	assert.Contains(t, got.Prompt, "Human: say hello")
	assert.Equal(t, 32, got.MaxTokensToSample)

	// No usage in the response, so both counts come from the estimator.
	assert.Equal(t, len("say hello")/4, res.PromptTokens)
	assert.Equal(t, len("hello from claude")/4, res.CompletionTokens)
	assert.Equal(t, res.PromptTokens+res.CompletionTokens, res.TotalTokens)
}

func TestAnthropicUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	a := NewAnthropicAdapter("secret", srv.URL)
	_, err := a.GenerateText(context.Background(), GenerateParams{Model: "claude-2", Prompt: "hi"})

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusTooManyRequests, upErr.Status)
	assert.Equal(t, ProviderAnthropic, upErr.Provider)
}

func TestAnthropicUnreachable(t *testing.T) {
	a := NewAnthropicAdapter("secret", "http://127.0.0.1:1")
	a.httpClient.Timeout = 200 * time.Millisecond

	_, err := a.GenerateText(context.Background(), GenerateParams{Model: "claude-2", Prompt: "hi"})

	var unErr *UnreachableError
	require.ErrorAs(t, err, &unErr)
	assert.Equal(t, ProviderAnthropic, unErr.Provider)
}

func TestAnthropicEmbedUnsupported(t *testing.T) {
	a := NewAnthropicAdapter("secret", "")
	_, err := a.Embed(context.Background(), "claude-2", "text")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHuggingFaceStripsEchoedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gpt2", r.URL.Path)
		assert.Equal(t, "Bearer hf-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(huggingFaceResponse{
			{GeneratedText: "once upon a time there was a gateway"},
		})
	}))
	defer srv.Close()

	a := NewHuggingFaceAdapter("hf-token", srv.URL)
	res, err := a.GenerateText(context.Background(), GenerateParams{
		Model:  "gpt2",
		Prompt: "once upon a time",
	})
	require.NoError(t, err)
	assert.Equal(t, " there was a gateway", res.Text)
	assert.Greater(t, res.TotalTokens, 0)
}

func TestOllamaUsesDaemonEvalCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		json.NewEncoder(w).Encode(ollamaResponse{
			Response:        "local answer",
			PromptEvalCount: 11,
			EvalCount:       7,
		})
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL)
	res, err := a.GenerateText(context.Background(), GenerateParams{Model: "llama2", Prompt: "question"})
	require.NoError(t, err)

	assert.Equal(t, "local answer", res.Text)
	assert.Equal(t, 11, res.PromptTokens)
	assert.Equal(t, 7, res.CompletionTokens)
	assert.Equal(t, 18, res.TotalTokens)
}

func TestOllamaFallsBackToEstimates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: "answer with no counters"})
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL)
	res, err := a.GenerateText(context.Background(), GenerateParams{Model: "llama2", Prompt: "a longer question"})
	require.NoError(t, err)

	assert.Equal(t, len("a longer question")/4, res.PromptTokens)
	assert.Equal(t, len("answer with no counters")/4, res.CompletionTokens)
	assert.Equal(t, res.PromptTokens+res.CompletionTokens, res.TotalTokens)
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	a := NewOllamaAdapter(srv.URL)
	vec, err := a.Embed(context.Background(), "llama2", "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestLocalProbesResponseShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"text field", `{"text":"generated"}`},
		{"completion field", `{"completion":"generated"}`},
		{"response field", `{"response":"generated"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/generate", r.URL.Path)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			a := NewLocalAdapter("", srv.URL)
			res, err := a.GenerateText(context.Background(), GenerateParams{Model: "m", Prompt: "p"})
			require.NoError(t, err)
			assert.Equal(t, "generated", res.Text)
		})
	}
}

func TestLocalPrefersUpstreamTokenCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"out","prompt_tokens":100,"completion_tokens":50,"total_tokens":150}`))
	}))
	defer srv.Close()

	a := NewLocalAdapter("", srv.URL)
	res, err := a.GenerateText(context.Background(), GenerateParams{Model: "m", Prompt: "p"})
	require.NoError(t, err)

	assert.Equal(t, 100, res.PromptTokens)
	assert.Equal(t, 50, res.CompletionTokens)
	assert.Equal(t, 150, res.TotalTokens)
}

func TestOpenAIGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-3.5-turbo",
			"choices": [{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 3, "total_tokens": 12}
		}`))
	}))
	defer srv.Close()

	a := NewOpenAIAdapter("sk-test", srv.URL+"/v1")
	res, err := a.GenerateText(context.Background(), GenerateParams{
		Model:     "gpt-3.5-turbo",
		Prompt:    "ping",
		MaxTokens: 16,
	})
	require.NoError(t, err)

	assert.Equal(t, "pong", res.Text)
	assert.Equal(t, 9, res.PromptTokens)
	assert.Equal(t, 3, res.CompletionTokens)
	assert.Equal(t, 12, res.TotalTokens)
}

func TestGenerateContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := NewOllamaAdapter(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := a.GenerateText(ctx, GenerateParams{Model: "llama2", Prompt: "slow"})

	var unErr *UnreachableError
	require.ErrorAs(t, err, &unErr)
}
