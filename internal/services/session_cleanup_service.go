package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredSessionRepository is the interface that wraps the expired session sweep.
type ExpiredSessionRepository interface {
	// Method DeactivateExpired marks active sessions last issued more than maxAge ago inactive.
	//
	// Returns the number of sessions that were deactivated.
	DeactivateExpired(ctx context.Context, maxAge time.Duration) (int, error)
}

// sessionCleanupService deactivates sessions whose access token has expired
type sessionCleanupService struct {
	repo        ExpiredSessionRepository
	tokenExpiry time.Duration
	logger      *zap.Logger
}

// NewSessionCleanupService creates a new session cleanup service.
// A session is expired once its token is older than tokenExpiry.
func NewSessionCleanupService(repo ExpiredSessionRepository, tokenExpiry time.Duration, logger *zap.Logger) *sessionCleanupService {
	return &sessionCleanupService{
		repo:        repo,
		tokenExpiry: tokenExpiry,
		logger:      logger,
	}
}

// CleanupExpired deactivates every active session whose token has expired
func (s *sessionCleanupService) CleanupExpired(ctx context.Context) (int, error) {
	count, err := s.repo.DeactivateExpired(ctx, s.tokenExpiry)
	if err != nil {
		return 0, err
	}

	// 0 deactivated sessions is not an error
	s.logger.Info("expired sessions deactivated", zap.Int("count", count), zap.Duration("max_age", s.tokenExpiry))
	return count, nil
}
