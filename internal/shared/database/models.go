package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/modelmeter/gateway/internal/shared/models"
)

// FindActiveModel retrieves an active model descriptor by id.
// Returns (nil, nil) when the model is missing or inactive.
func (db *DB) FindActiveModel(ctx context.Context, modelID int64) (*models.ModelDescriptor, error) {
	query := `
		SELECT id, name, description, provider, model_name, price_per_1k_tokens,
		       context_length, COALESCE(api_key, ''), COALESCE(base_url, ''),
		       is_active, created_by, created_at
		FROM ai_models
		WHERE id = $1 AND is_active = true
	`

	var m models.ModelDescriptor
	err := db.conn.QueryRowContext(ctx, query, modelID).Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Provider,
		&m.ModelName,
		&m.PricePer1kTokens,
		&m.ContextLength,
		&m.APIKey,
		&m.BaseURL,
		&m.IsActive,
		&m.CreatedBy,
		&m.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &m, nil
}

// ListActiveModels returns all active model descriptors.
func (db *DB) ListActiveModels(ctx context.Context) ([]models.ModelDescriptor, error) {
	query := `
		SELECT id, name, description, provider, model_name, price_per_1k_tokens,
		       context_length, COALESCE(api_key, ''), COALESCE(base_url, ''),
		       is_active, created_by, created_at
		FROM ai_models
		WHERE is_active = true
		ORDER BY id
	`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var out []models.ModelDescriptor
	for rows.Next() {
		var m models.ModelDescriptor
		if err := rows.Scan(
			&m.ID,
			&m.Name,
			&m.Description,
			&m.Provider,
			&m.ModelName,
			&m.PricePer1kTokens,
			&m.ContextLength,
			&m.APIKey,
			&m.BaseURL,
			&m.IsActive,
			&m.CreatedBy,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		out = append(out, m)
	}

	return out, rows.Err()
}
