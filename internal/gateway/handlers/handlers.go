package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/modelmeter/gateway/internal/gateway"
	"github.com/modelmeter/gateway/internal/gateway/auth"
	"github.com/modelmeter/gateway/internal/gateway/providers"
)

// Request body defaults, matching the documented API.
const (
	defaultMaxTokens   = 50
	defaultTemperature = 0.7
)

type Handler struct {
	svc    *gateway.Service
	logger *zap.Logger
}

func NewHandler(svc *gateway.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type generateBody struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   *int     `json:"max_tokens"`
	Temperature *float32 `json:"temperature"`
	TopP        float32  `json:"top_p"`
	TopK        int      `json:"top_k"`
}

type embedBody struct {
	Text string `json:"text"`
}

type modelView struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Provider         string  `json:"provider"`
	PricePer1kTokens float64 `json:"price_per_1k_tokens"`
	ContextLength    int     `json:"context_length"`
}

type usageView struct {
	Timestamp        string  `json:"timestamp"`
	ModelID          int64   `json:"model_id"`
	RequestType      string  `json:"request_type"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	ResponseTime     float64 `json:"response_time"`
	Cost             float64 `json:"cost"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// HandleGenerate handles POST /api/v1/models/{modelID}/generate
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	modelID, ok := h.modelID(w, r)
	if !ok {
		return
	}

	var body generateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	req := gateway.GenerateRequest{
		ModelID:     modelID,
		Prompt:      body.Prompt,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		TopP:        body.TopP,
		TopK:        body.TopK,
	}
	if body.MaxTokens != nil {
		req.MaxTokens = *body.MaxTokens
	}
	if body.Temperature != nil {
		req.Temperature = *body.Temperature
	}

	resp, err := h.svc.Generate(r.Context(), apiKeyFrom(r), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setRateHeaders(w, resp.RateLimit, resp.RateRemaining)
	w.Header().Set("X-Cache-Hit", strconv.FormatBool(resp.CacheHit))
	writeJSON(w, http.StatusOK, resp)
}

// HandleEmbeddings handles POST /api/v1/models/{modelID}/embeddings
func (h *Handler) HandleEmbeddings(w http.ResponseWriter, r *http.Request) {
	modelID, ok := h.modelID(w, r)
	if !ok {
		return
	}

	var body embedBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	resp, err := h.svc.Embed(r.Context(), apiKeyFrom(r), gateway.EmbedRequest{
		ModelID: modelID,
		Text:    body.Text,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	setRateHeaders(w, resp.RateLimit, resp.RateRemaining)
	writeJSON(w, http.StatusOK, resp)
}

// HandleListModels handles GET /api/v1/models
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	visible, err := h.svc.ListModels(r.Context(), apiKeyFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	views := make([]modelView, 0, len(visible))
	for _, m := range visible {
		views = append(views, modelView{
			ID:               m.ID,
			Name:             m.Name,
			Description:      m.Description,
			Provider:         m.Provider,
			PricePer1kTokens: m.PricePer1kTokens,
			ContextLength:    m.ContextLength,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// HandleUsage handles GET /api/v1/usage
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.Usage(r.Context(), apiKeyFrom(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	views := make([]usageView, 0, len(events))
	for _, e := range events {
		views = append(views, usageView{
			Timestamp:        e.CreatedAt.UTC().Format(time.RFC3339),
			ModelID:          e.ModelID,
			RequestType:      e.RequestType,
			PromptTokens:     e.PromptTokens,
			CompletionTokens: e.CompletionTokens,
			TotalTokens:      e.TotalTokens,
			ResponseTime:     e.ResponseTime,
			Cost:             e.Cost,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) modelID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "modelID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid model id")
		return 0, false
	}
	return id, true
}

// writeServiceError maps pipeline errors onto HTTP statuses. Upstream
// bodies stay in the logs; callers get a summarized reason only.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		upstreamErr    *providers.UpstreamError
		unreachableErr *providers.UnreachableError
		providerErr    *providers.UnsupportedProviderError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or inactive API key")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "this API key is not authorized to use this model")
	case errors.Is(err, gateway.ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, retry later")
	case errors.Is(err, gateway.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "not_found", "model not found or inactive")
	case errors.Is(err, providers.ErrUnsupported):
		writeError(w, http.StatusBadRequest, "unsupported", "this model does not support the requested operation")
	case errors.As(err, &upstreamErr):
		h.logger.Error("upstream provider error",
			zap.String("provider", upstreamErr.Provider),
			zap.Int("status", upstreamErr.Status),
			zap.String("body", upstreamErr.Body))
		writeError(w, http.StatusBadGateway, "upstream_error",
			fmt.Sprintf("provider %s returned status %d", upstreamErr.Provider, upstreamErr.Status))
	case errors.As(err, &unreachableErr):
		h.logger.Error("upstream provider unreachable",
			zap.String("provider", unreachableErr.Provider),
			zap.Error(unreachableErr.Err))
		writeError(w, http.StatusBadGateway, "upstream_unreachable",
			fmt.Sprintf("provider %s is unreachable", unreachableErr.Provider))
	case errors.As(err, &providerErr):
		h.logger.Error("model misconfigured", zap.String("provider", providerErr.Provider))
		writeError(w, http.StatusInternalServerError, "internal", "model is misconfigured")
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// apiKeyFrom extracts the caller credential: X-API-Key first, then a
// Bearer token for clients that prefer the Authorization header.
func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	authHeader := r.Header.Get("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func setRateHeaders(w http.ResponseWriter, limit, remaining int) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: kind, Message: message}})
}
