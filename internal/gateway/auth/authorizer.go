package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/modelmeter/gateway/internal/shared/models"
)

var (
	// ErrUnauthorized means the presented key is missing or inactive.
	ErrUnauthorized = errors.New("invalid or inactive API key")

	// ErrForbidden means the key's allow-list excludes the requested model.
	ErrForbidden = errors.New("API key is not authorized to use this model")
)

// KeyStore is the slice of the key repository the authorizer needs.
type KeyStore interface {
	FindActiveKeyByValue(ctx context.Context, rawKey string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, apiKeyID int64) error
}

// Authorizer validates inbound API keys against the key store.
type Authorizer struct {
	store  KeyStore
	logger *zap.Logger
}

// New creates a new authorizer
func New(store KeyStore, logger *zap.Logger) *Authorizer {
	return &Authorizer{store: store, logger: logger}
}

// Authorize resolves rawKey and checks it may call modelID. The
// last-used timestamp is updated off the request path; a failure there
// is advisory telemetry and never fails the authorization.
func (a *Authorizer) Authorize(ctx context.Context, rawKey string, modelID int64) (*models.APIKey, error) {
	key, err := a.AuthorizeKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}

	if !key.AllowsModel(modelID) {
		return nil, ErrForbidden
	}

	return key, nil
}

// AuthorizeKey resolves rawKey without a model check, for endpoints
// that are not bound to one model (usage history, model listing).
func (a *Authorizer) AuthorizeKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if rawKey == "" {
		return nil, ErrUnauthorized
	}

	key, err := a.store.FindActiveKeyByValue(ctx, rawKey)
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive {
		return nil, ErrUnauthorized
	}

	go a.touchLastUsed(key.ID)

	return key, nil
}

func (a *Authorizer) touchLastUsed(apiKeyID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.store.TouchLastUsed(ctx, apiKeyID); err != nil {
		a.logger.Warn("failed to update key last_used_at",
			zap.Int64("api_key_id", apiKeyID),
			zap.Error(err))
	}
}
