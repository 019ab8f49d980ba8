package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelmeter/gateway/internal/gateway/auth"
	"github.com/modelmeter/gateway/internal/gateway/providers"
	"github.com/modelmeter/gateway/internal/gateway/ratelimit"
	"github.com/modelmeter/gateway/internal/gateway/usage"
	"github.com/modelmeter/gateway/internal/shared/models"
)

var (
	// ErrRateLimited means the key exhausted its per-minute quota.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrModelNotFound means the requested model is missing or inactive.
	ErrModelNotFound = errors.New("model not found or inactive")
)

// ModelStore is the slice of the model repository the gateway needs.
type ModelStore interface {
	FindActiveModel(ctx context.Context, modelID int64) (*models.ModelDescriptor, error)
	ListActiveModels(ctx context.Context) ([]models.ModelDescriptor, error)
}

// UsageReader serves the usage history endpoint.
type UsageReader interface {
	ListUsageByKey(ctx context.Context, apiKeyID int64) ([]models.UsageEvent, error)
}

// AdapterResolver resolves a model descriptor to a provider adapter.
type AdapterResolver interface {
	Resolve(m *models.ModelDescriptor) (providers.Adapter, error)
}

// ResultCache is an optional exact-match generation cache.
type ResultCache interface {
	Get(ctx context.Context, modelID int64, p providers.GenerateParams) (*providers.GenerateResult, error)
	Set(ctx context.Context, modelID int64, p providers.GenerateParams, result *providers.GenerateResult) error
}

// GenerateRequest is one inbound generation call.
type GenerateRequest struct {
	ModelID     int64
	Prompt      string
	MaxTokens   int
	Temperature float32
	TopP        float32
	TopK        int
}

// GenerateResponse is returned to the caller. Rate-limit counters ride
// along for response headers and are not part of the body.
type GenerateResponse struct {
	ID               string  `json:"id"`
	Model            string  `json:"model"`
	Text             string  `json:"text"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost"`
	CacheHit         bool    `json:"-"`
	RateLimit        int     `json:"-"`
	RateRemaining    int     `json:"-"`
}

// EmbedRequest is one inbound embedding call.
type EmbedRequest struct {
	ModelID int64
	Text    string
}

// EmbedResponse is returned to the caller.
type EmbedResponse struct {
	Model         string    `json:"model"`
	Embedding     []float32 `json:"embedding"`
	Tokens        int       `json:"tokens"`
	Cost          float64   `json:"cost"`
	RateLimit     int       `json:"-"`
	RateRemaining int       `json:"-"`
}

// Service orchestrates the request pipeline: authorize, rate-check,
// dispatch, meter, respond. Auth and rate-limit failures short-circuit
// before any upstream call; upstream failures short-circuit before
// metering; metering failures never block the response.
type Service struct {
	authorizer       *auth.Authorizer
	limiter          *ratelimit.Limiter
	modelStore       ModelStore
	usageReader      UsageReader
	resolver         AdapterResolver
	recorder         *usage.Recorder
	cache            ResultCache // nil when caching is disabled
	defaultRateLimit int
	logger           *zap.Logger
}

// NewService wires the gateway pipeline
func NewService(
	authorizer *auth.Authorizer,
	limiter *ratelimit.Limiter,
	modelStore ModelStore,
	usageReader UsageReader,
	resolver AdapterResolver,
	recorder *usage.Recorder,
	cache ResultCache,
	defaultRateLimit int,
	logger *zap.Logger,
) *Service {
	return &Service{
		authorizer:       authorizer,
		limiter:          limiter,
		modelStore:       modelStore,
		usageReader:      usageReader,
		resolver:         resolver,
		recorder:         recorder,
		cache:            cache,
		defaultRateLimit: defaultRateLimit,
		logger:           logger,
	}
}

// Generate runs the full pipeline for a text-generation request.
func (s *Service) Generate(ctx context.Context, rawKey string, req GenerateRequest) (*GenerateResponse, error) {
	key, err := s.authorizer.Authorize(ctx, rawKey, req.ModelID)
	if err != nil {
		return nil, err
	}

	limit, remaining, err := s.checkRateLimit(key)
	if err != nil {
		return nil, err
	}

	model, err := s.modelStore.FindActiveModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, ErrModelNotFound
	}

	params := providers.GenerateParams{
		Model:       model.ModelName,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
	}

	// Cache hits are free and unmetered: no tokens were consumed.
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, model.ID, params); err == nil {
			return &GenerateResponse{
				ID:               uuid.NewString(),
				Model:            model.Name,
				Text:             cached.Text,
				PromptTokens:     cached.PromptTokens,
				CompletionTokens: cached.CompletionTokens,
				TotalTokens:      cached.TotalTokens,
				Cost:             0,
				CacheHit:         true,
				RateLimit:        limit,
				RateRemaining:    remaining,
			}, nil
		}
	}

	adapter, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := adapter.GenerateText(ctx, params)
	if err != nil {
		// No usage event for a failed or aborted dispatch.
		return nil, err
	}
	latency := time.Since(start)

	if s.cache != nil {
		if err := s.cache.Set(ctx, model.ID, params, result); err != nil {
			s.logger.Warn("failed to cache generation result", zap.Error(err))
		}
	}

	go s.recordUsage(usage.RecordParams{
		APIKeyID:         key.ID,
		CustomerID:       key.CustomerID,
		ModelID:          model.ID,
		RequestType:      models.RequestTypeGenerate,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		LatencySeconds:   latency.Seconds(),
		PricePer1kTokens: model.PricePer1kTokens,
	})

	return &GenerateResponse{
		ID:               uuid.NewString(),
		Model:            model.Name,
		Text:             result.Text,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		Cost:             usage.Cost(result.TotalTokens, model.PricePer1kTokens),
		RateLimit:        limit,
		RateRemaining:    remaining,
	}, nil
}

// Embed runs the pipeline for an embedding request. Input tokens are
// counted by the adapter's own counter since embedding upstreams do
// not report usage uniformly.
func (s *Service) Embed(ctx context.Context, rawKey string, req EmbedRequest) (*EmbedResponse, error) {
	key, err := s.authorizer.Authorize(ctx, rawKey, req.ModelID)
	if err != nil {
		return nil, err
	}

	limit, remaining, err := s.checkRateLimit(key)
	if err != nil {
		return nil, err
	}

	model, err := s.modelStore.FindActiveModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, ErrModelNotFound
	}

	adapter, err := s.resolver.Resolve(model)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	vector, err := adapter.Embed(ctx, model.ModelName, req.Text)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	tokens := adapter.CountTokens(req.Text, model.ModelName)

	go s.recordUsage(usage.RecordParams{
		APIKeyID:         key.ID,
		CustomerID:       key.CustomerID,
		ModelID:          model.ID,
		RequestType:      models.RequestTypeEmbedding,
		PromptTokens:     tokens,
		TotalTokens:      tokens,
		LatencySeconds:   latency.Seconds(),
		PricePer1kTokens: model.PricePer1kTokens,
	})

	return &EmbedResponse{
		Model:         model.Name,
		Embedding:     vector,
		Tokens:        tokens,
		Cost:          usage.Cost(tokens, model.PricePer1kTokens),
		RateLimit:     limit,
		RateRemaining: remaining,
	}, nil
}

// ListModels returns the active models visible to the caller's key.
func (s *Service) ListModels(ctx context.Context, rawKey string) ([]models.ModelDescriptor, error) {
	key, err := s.authorizer.AuthorizeKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}

	all, err := s.modelStore.ListActiveModels(ctx)
	if err != nil {
		return nil, err
	}

	visible := make([]models.ModelDescriptor, 0, len(all))
	for _, m := range all {
		if key.AllowsModel(m.ID) {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// Usage returns the caller key's recorded usage events.
func (s *Service) Usage(ctx context.Context, rawKey string) ([]models.UsageEvent, error) {
	key, err := s.authorizer.AuthorizeKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	return s.usageReader.ListUsageByKey(ctx, key.ID)
}

func (s *Service) checkRateLimit(key *models.APIKey) (limit, remaining int, err error) {
	limit = key.RateLimitPerMinute
	if limit <= 0 {
		limit = s.defaultRateLimit
	}

	ok, remaining := s.limiter.Allow(fmt.Sprintf("key:%d", key.ID), limit)
	if !ok {
		return limit, 0, ErrRateLimited
	}
	return limit, remaining, nil
}

// recordUsage runs off the response path. The response is already on
// its way to the caller; a write failure here is logged, never raised.
func (s *Service) recordUsage(p usage.RecordParams) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.recorder.Record(ctx, p); err != nil {
		s.logger.Error("failed to record usage",
			zap.Int64("api_key_id", p.APIKeyID),
			zap.Int64("model_id", p.ModelID),
			zap.Error(err))
	}
}
