package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const revokedTokenKeyPrefix = "revoked:"

// tokenDenylistRepository stores the ids of revoked access tokens in Redis.
// Each key expires together with the token it revokes.
type tokenDenylistRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewTokenDenylistRepository creates a new token denylist backed by Redis
func NewTokenDenylistRepository(client *redis.Client, logger *zap.Logger) *tokenDenylistRepository {
	return &tokenDenylistRepository{
		client: client,
		logger: logger,
	}
}

// Revoke adds a token id to the denylist until expiresAt. Already expired tokens are skipped.
func (r *tokenDenylistRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := r.client.Set(ctx, revokedTokenKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		r.logger.Error("failed to revoke token", zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	return nil
}

// IsRevoked reports whether a token id is on the denylist
func (r *tokenDenylistRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		r.logger.Error("failed to check token revocation", zap.Error(err))
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}

	return n > 0, nil
}
