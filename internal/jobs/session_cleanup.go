package jobs

import "context"

// SessionCleanupJobName is the name the session sweep is scheduled under
const SessionCleanupJobName = "expired session cleanup"

// SessionCleaner deactivates sessions whose access token has expired
type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// SessionCleanupJob adapts cleaner to a scheduler job
func SessionCleanupJob(cleaner SessionCleaner) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := cleaner.CleanupExpired(ctx)
		return err
	}
}
