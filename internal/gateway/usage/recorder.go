package usage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/modelmeter/gateway/internal/shared/database"
	"github.com/modelmeter/gateway/internal/shared/models"
)

// Store is the slice of the usage repository the recorder needs. The
// aggregate table may not exist yet; the recorder treats that as
// non-fatal.
type Store interface {
	InsertUsage(ctx context.Context, event *models.UsageEvent) error
	InsertUsageAggregate(ctx context.Context, apiKeyID, customerID int64, service string, cost float64) error
}

// Cost computes the charge for totalTokens at pricePer1kTokens. Full
// float64 precision is kept; rounding is a display concern.
func Cost(totalTokens int, pricePer1kTokens float64) float64 {
	return float64(totalTokens) / 1000.0 * pricePer1kTokens
}

// RecordParams carries the accounting facts of one dispatched request.
type RecordParams struct {
	APIKeyID         int64
	CustomerID       int64
	ModelID          int64
	RequestType      string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LatencySeconds   float64
	PricePer1kTokens float64
}

// Recorder computes cost and persists usage events.
type Recorder struct {
	store  Store
	logger *zap.Logger
}

// New creates a new recorder
func New(store Store, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record writes the usage event for one successful dispatch. Only the
// primary write can fail the call; the aggregate write is best-effort
// and its failure is logged, never propagated.
func (r *Recorder) Record(ctx context.Context, p RecordParams) (*models.UsageEvent, error) {
	event := &models.UsageEvent{
		APIKeyID:         p.APIKeyID,
		ModelID:          p.ModelID,
		RequestType:      p.RequestType,
		PromptTokens:     p.PromptTokens,
		CompletionTokens: p.CompletionTokens,
		TotalTokens:      p.TotalTokens,
		ResponseTime:     p.LatencySeconds,
		Cost:             Cost(p.TotalTokens, p.PricePer1kTokens),
	}

	if err := r.store.InsertUsage(ctx, event); err != nil {
		return nil, err
	}

	service := fmt.Sprintf("%s_%d", p.RequestType, p.ModelID)
	r.bestEffort(ctx, "usage aggregate", func() error {
		return r.store.InsertUsageAggregate(ctx, p.APIKeyID, p.CustomerID, service, event.Cost)
	})

	return event, nil
}

// bestEffort runs a genuinely optional side-effect write. A missing
// table means the migration has not landed yet and is skipped silently;
// anything else is logged and swallowed.
func (r *Recorder) bestEffort(ctx context.Context, what string, fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	if database.IsUndefinedTable(err) {
		r.logger.Debug("skipping write, table not migrated yet", zap.String("write", what))
		return
	}
	r.logger.Warn("best-effort write failed", zap.String("write", what), zap.Error(err))
}
