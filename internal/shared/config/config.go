package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ProviderDefaults holds provider-level credentials used when a model
// descriptor does not carry its own.
type ProviderDefaults struct {
	APIKey  string
	BaseURL string
}

// Config holds all configuration for the gateway
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Provider defaults, keyed by provider tag
	Providers map[string]ProviderDefaults

	// Rate limiting fallback when a key carries no limit of its own
	DefaultRateLimit int

	// Caching
	CacheTTLSeconds int
	CacheEnabled    bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		Providers: map[string]ProviderDefaults{
			"openai": {
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			},
			"anthropic": {
				APIKey:  getEnv("ANTHROPIC_API_KEY", ""),
				BaseURL: getEnv("ANTHROPIC_API_BASE", "https://api.anthropic.com"),
			},
			"huggingface": {
				APIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
				BaseURL: getEnv("HUGGINGFACE_API_BASE", "https://api-inference.huggingface.co"),
			},
			"ollama": {
				BaseURL: getEnv("OLLAMA_API_BASE", "http://localhost:11434"),
			},
			"local": {
				APIKey:  getEnv("LOCAL_LLM_API_KEY", ""),
				BaseURL: getEnv("LOCAL_LLM_BASE", "http://localhost:8000"),
			},
		},
		DefaultRateLimit: getEnvInt("DEFAULT_RATE_LIMIT", 60),
		CacheTTLSeconds:  getEnvInt("CACHE_TTL_SECONDS", 3600),
		CacheEnabled:     getEnvBool("CACHE_ENABLED", false),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
