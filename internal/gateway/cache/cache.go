package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelmeter/gateway/internal/gateway/providers"
	"github.com/modelmeter/gateway/internal/shared/redis"
)

// Cache stores generation results keyed by the exact request, so a
// repeated prompt with identical sampling parameters skips the
// upstream call entirely.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// New creates a new cache instance
func New(redisClient *redis.Client, ttl time.Duration) *Cache {
	return &Cache{redis: redisClient, ttl: ttl}
}

// generateCacheKey hashes the request into a deterministic key
func (c *Cache) generateCacheKey(modelID int64, p providers.GenerateParams) string {
	keyData := fmt.Sprintf("%d:%s:%s:%d:%v:%v:%d",
		modelID,
		p.Model,
		p.Prompt,
		p.MaxTokens,
		p.Temperature,
		p.TopP,
		p.TopK,
	)

	hash := sha256.Sum256([]byte(keyData))
	return "cache:exact:" + hex.EncodeToString(hash[:])
}

// Get retrieves a cached result; redis.ErrNotFound on a miss.
func (c *Cache) Get(ctx context.Context, modelID int64, p providers.GenerateParams) (*providers.GenerateResult, error) {
	val, err := c.redis.Get(ctx, c.generateCacheKey(modelID, p))
	if err != nil {
		return nil, err
	}

	var cached providers.GenerateResult
	if err := json.Unmarshal([]byte(val), &cached); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached result: %w", err)
	}

	return &cached, nil
}

// Set stores a result
func (c *Cache) Set(ctx context.Context, modelID int64, p providers.GenerateParams, result *providers.GenerateResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}

	return c.redis.Set(ctx, c.generateCacheKey(modelID, p), string(data), c.ttl)
}
