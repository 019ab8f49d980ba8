package providers

import (
	"fmt"
	"sync"

	"github.com/modelmeter/gateway/internal/shared/config"
	"github.com/modelmeter/gateway/internal/shared/models"
)

// Registry resolves a model descriptor to a concrete adapter. A model's
// own credentials win over the provider-level defaults from config.
// Resolved adapters are cached and safe for concurrent use.
type Registry struct {
	defaults map[string]config.ProviderDefaults

	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a new registry
func NewRegistry(defaults map[string]config.ProviderDefaults) *Registry {
	if defaults == nil {
		defaults = map[string]config.ProviderDefaults{}
	}
	return &Registry{
		defaults: defaults,
		adapters: make(map[string]Adapter),
	}
}

// Resolve returns the adapter for a model descriptor. Unknown provider
// tags and missing required credentials are configuration errors.
func (r *Registry) Resolve(m *models.ModelDescriptor) (Adapter, error) {
	def := r.defaults[m.Provider]

	apiKey := m.APIKey
	if apiKey == "" {
		apiKey = def.APIKey
	}
	baseURL := m.BaseURL
	if baseURL == "" {
		baseURL = def.BaseURL
	}

	switch m.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderHuggingFace:
		if apiKey == "" {
			return nil, fmt.Errorf("provider %s requires an API key and none is configured", m.Provider)
		}
	case ProviderOllama, ProviderLocal:
		// Local providers run without credentials.
	default:
		return nil, &UnsupportedProviderError{Provider: m.Provider}
	}

	cacheKey := m.Provider + "|" + baseURL + "|" + apiKey

	r.mu.RLock()
	adapter, ok := r.adapters[cacheKey]
	r.mu.RUnlock()
	if ok {
		return adapter, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if adapter, ok := r.adapters[cacheKey]; ok {
		return adapter, nil
	}

	adapter = r.build(m.Provider, apiKey, baseURL)
	r.adapters[cacheKey] = adapter
	return adapter, nil
}

func (r *Registry) build(provider, apiKey, baseURL string) Adapter {
	switch provider {
	case ProviderOpenAI:
		return NewOpenAIAdapter(apiKey, baseURL)
	case ProviderAnthropic:
		return NewAnthropicAdapter(apiKey, baseURL)
	case ProviderHuggingFace:
		return NewHuggingFaceAdapter(apiKey, baseURL)
	case ProviderOllama:
		return NewOllamaAdapter(baseURL)
	default:
		return NewLocalAdapter(apiKey, baseURL)
	}
}
