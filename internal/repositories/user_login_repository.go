package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

// userLoginRepository implements the session store on the user_logins table.
// user_logins.user_id is UNIQUE, so a user has at most one row.
type userLoginRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserLoginRepository creates a new user login repository
func NewUserLoginRepository(db *sql.DB, logger *zap.Logger) *userLoginRepository {
	return &userLoginRepository{
		db:     db,
		logger: logger,
	}
}

// upsertAttempts bounds the retries of a deadlocked session upsert
const upsertAttempts = 3

const selectUserLogin = `
	SELECT id, user_id, token, status, created_at, updated_at
	FROM user_logins
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUserLogin(row rowScanner) (*models.UserLogin, error) {
	login := &models.UserLogin{}
	err := row.Scan(
		&login.ID,
		&login.UserID,
		&login.Token,
		&login.Status,
		&login.CreatedAt,
		&login.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return login, nil
}

// GetByUserID returns the session row of a user, or nil, nil when the user never logged in
func (r *userLoginRepository) GetByUserID(ctx context.Context, userID int) (*models.UserLogin, error) {
	login, err := scanUserLogin(r.db.QueryRowContext(ctx, selectUserLogin+"WHERE user_id = ?", userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get user login by user id", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to get user login by user id: %w", err)
	}

	return login, nil
}

// GetByID returns a session row by its id, or nil, nil when it does not exist
func (r *userLoginRepository) GetByID(ctx context.Context, id int) (*models.UserLogin, error) {
	login, err := scanUserLogin(r.db.QueryRowContext(ctx, selectUserLogin+"WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get user login by id", zap.Error(err), zap.Int("id", id))
		return nil, fmt.Errorf("failed to get user login by id: %w", err)
	}

	return login, nil
}

// Upsert creates the session row for a user or overwrites the existing one with the new token
// and active status. Concurrent upserts for the same user serialize on the unique user_id index.
// A transaction chosen as a deadlock victim is retried up to upsertAttempts times.
func (r *userLoginRepository) Upsert(ctx context.Context, userID int, token string) (*models.UserLogin, error) {
	var err error
	for attempt := 1; attempt <= upsertAttempts; attempt++ {
		var login *models.UserLogin
		login, err = r.upsert(ctx, userID, token)
		if err == nil {
			return login, nil
		}
		if !isDeadlock(err) {
			return nil, err
		}
		r.logger.Warn("user login upsert deadlocked, retrying", zap.Int("user_id", userID), zap.Int("attempt", attempt))
	}
	return nil, err
}

func (r *userLoginRepository) upsert(ctx context.Context, userID int, token string) (*models.UserLogin, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO user_logins (user_id, token, status)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE token = VALUES(token), status = VALUES(status), updated_at = CURRENT_TIMESTAMP
	`
	if _, err := tx.ExecContext(ctx, query, userID, token, models.LoginStatusActive); err != nil {
		r.logger.Error("failed to upsert user login", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to upsert user login: %w", err)
	}

	login, err := scanUserLogin(tx.QueryRowContext(ctx, selectUserLogin+"WHERE user_id = ?", userID))
	if err != nil {
		r.logger.Error("failed to read upserted user login", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to read upserted user login: %w", err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit transaction", zap.Error(err))
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return login, nil
}

// Deactivate marks an active session inactive and returns the updated row.
// It returns nil, nil when there is no active session with that id.
func (r *userLoginRepository) Deactivate(ctx context.Context, id int) (*models.UserLogin, error) {
	query := `
		UPDATE user_logins
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query, models.LoginStatusInactive, id, models.LoginStatusActive)
	if err != nil {
		r.logger.Error("failed to deactivate user login", zap.Error(err), zap.Int("id", id))
		return nil, fmt.Errorf("failed to deactivate user login: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, id)
}

// DeactivateExpired marks active sessions last issued more than maxAge ago inactive
// and returns how many sessions were changed.
// The cutoff is computed by the database so it shares the clock and time zone of updated_at.
func (r *userLoginRepository) DeactivateExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	query := `
		UPDATE user_logins
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status = ? AND updated_at < NOW() - INTERVAL ? SECOND
	`

	seconds := int64(maxAge / time.Second)
	result, err := r.db.ExecContext(ctx, query, models.LoginStatusInactive, models.LoginStatusActive, seconds)
	if err != nil {
		r.logger.Error("failed to deactivate expired user logins", zap.Error(err))
		return 0, fmt.Errorf("failed to deactivate expired user logins: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("failed to get rows affected", zap.Error(err))
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}
