package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/modelmeter/gateway/internal/shared/models"
)

// HashKey returns the hex SHA-256 digest under which a raw API key is
// stored. The raw secret itself never touches the database.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// FindActiveKeyByValue retrieves an active API key by its raw key value.
// Returns (nil, nil) when no active key matches.
func (db *DB) FindActiveKeyByValue(ctx context.Context, rawKey string) (*models.APIKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, name, customer_id, rate_limit_per_minute,
		       allowed_models, is_active, last_used_at, created_at
		FROM api_keys
		WHERE key_hash = $1 AND is_active = true
	`

	var (
		key        models.APIKey
		allowedRaw []byte
	)
	err := db.conn.QueryRowContext(ctx, query, HashKey(rawKey)).Scan(
		&key.ID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.CustomerID,
		&key.RateLimitPerMinute,
		&allowedRaw,
		&key.IsActive,
		&key.LastUsedAt,
		&key.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if len(allowedRaw) > 0 {
		if err := json.Unmarshal(allowedRaw, &key.AllowedModels); err != nil {
			return nil, fmt.Errorf("malformed allowed_models for key %d: %w", key.ID, err)
		}
	}

	return &key, nil
}

// TouchLastUsed updates the last_used_at timestamp
func (db *DB) TouchLastUsed(ctx context.Context, apiKeyID int64) error {
	query := `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`
	_, err := db.conn.ExecContext(ctx, query, apiKeyID)
	return err
}
