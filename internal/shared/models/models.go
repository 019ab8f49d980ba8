package models

import "time"

// Request types recorded on usage events.
const (
	RequestTypeGenerate  = "generate"
	RequestTypeEmbedding = "embedding"
)

// APIKey represents a tenant's gateway API key
type APIKey struct {
	ID                 int64
	KeyHash            string
	KeyPrefix          string
	Name               string
	CustomerID         int64
	RateLimitPerMinute int
	AllowedModels      []int64
	IsActive           bool
	LastUsedAt         *time.Time
	CreatedAt          time.Time
}

// AllowsModel reports whether this key may call the given model.
// An empty allow-list means every model is permitted.
func (k *APIKey) AllowsModel(modelID int64) bool {
	if len(k.AllowedModels) == 0 {
		return true
	}
	for _, id := range k.AllowedModels {
		if id == modelID {
			return true
		}
	}
	return false
}

// ModelDescriptor represents a configured upstream model
type ModelDescriptor struct {
	ID               int64
	Name             string
	Description      string
	Provider         string
	ModelName        string
	PricePer1kTokens float64
	ContextLength    int
	APIKey           string
	BaseURL          string
	IsActive         bool
	CreatedBy        int64
	CreatedAt        time.Time
}

// UsageEvent is an immutable record of one metered call
type UsageEvent struct {
	ID               int64
	APIKeyID         int64
	ModelID          int64
	RequestType      string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	ResponseTime     float64
	Cost             float64
	CreatedAt        time.Time
}
