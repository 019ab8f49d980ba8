package database

import (
	"context"
	"fmt"

	"github.com/modelmeter/gateway/internal/shared/models"
)

// InsertUsage writes the primary usage event and fills in its assigned
// id and timestamp.
func (db *DB) InsertUsage(ctx context.Context, event *models.UsageEvent) error {
	query := `
		INSERT INTO usage_events (
			api_key_id, model_id, request_type, prompt_tokens, completion_tokens,
			total_tokens, response_time, cost
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := db.conn.QueryRowContext(ctx,
		query,
		event.APIKeyID,
		event.ModelID,
		event.RequestType,
		event.PromptTokens,
		event.CompletionTokens,
		event.TotalTokens,
		event.ResponseTime,
		event.Cost,
	).Scan(&event.ID, &event.CreatedAt)

	if err != nil {
		return fmt.Errorf("insert usage event: %w", err)
	}
	return nil
}

// InsertUsageAggregate writes a row to the per-customer aggregate table.
// That table ships in a later migration, so callers must treat an
// undefined-table error as non-fatal (see IsUndefinedTable).
func (db *DB) InsertUsageAggregate(ctx context.Context, apiKeyID, customerID int64, service string, cost float64) error {
	query := `
		INSERT INTO usage_records (api_key_id, customer_id, service, request_count, cost)
		VALUES ($1, $2, $3, 1, $4)
	`

	_, err := db.conn.ExecContext(ctx, query, apiKeyID, customerID, service, cost)
	return err
}

// ListUsageByKey returns the recorded usage events for one API key,
// newest first.
func (db *DB) ListUsageByKey(ctx context.Context, apiKeyID int64) ([]models.UsageEvent, error) {
	query := `
		SELECT id, api_key_id, model_id, request_type, prompt_tokens,
		       completion_tokens, total_tokens, response_time, cost, created_at
		FROM usage_events
		WHERE api_key_id = $1
		ORDER BY created_at DESC
	`

	rows, err := db.conn.QueryContext(ctx, query, apiKeyID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var out []models.UsageEvent
	for rows.Next() {
		var e models.UsageEvent
		if err := rows.Scan(
			&e.ID,
			&e.APIKeyID,
			&e.ModelID,
			&e.RequestType,
			&e.PromptTokens,
			&e.CompletionTokens,
			&e.TotalTokens,
			&e.ResponseTime,
			&e.Cost,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}
