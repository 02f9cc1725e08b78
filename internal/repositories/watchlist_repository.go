package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

// watchlistRepository implements WatchlistRepository.
// watchlists has a UNIQUE(user_id, movie_id) index.
type watchlistRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWatchlistRepository creates a new watchlist repository
func NewWatchlistRepository(db *sql.DB, logger *zap.Logger) *watchlistRepository {
	return &watchlistRepository{
		db:     db,
		logger: logger,
	}
}

// watchlistSortColumns maps the allowed sort fields to their columns
var watchlistSortColumns = map[models.WatchlistSortField]string{
	models.WatchlistSortAddedAt: "created_at",
	models.WatchlistSortTitle:   "movie_title",
	models.WatchlistSortStatus:  "status",
}

// GetEntry returns the watchlist entry of a movie for a user, or nil, nil when the movie is not in the watchlist
func (r *watchlistRepository) GetEntry(ctx context.Context, userID, movieID int) (*models.WatchlistEntry, error) {
	query := `
		SELECT id, user_id, movie_id, movie_title, status, created_at, updated_at
		FROM watchlists
		WHERE user_id = ? AND movie_id = ?
	`

	var entry models.WatchlistEntry
	err := r.db.QueryRowContext(ctx, query, userID, movieID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.MovieID,
		&entry.MovieTitle,
		&entry.Status,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to get watchlist entry", zap.Error(err), zap.Int("user_id", userID), zap.Int("movie_id", movieID))
		return nil, fmt.Errorf("failed to get watchlist entry: %w", err)
	}

	return &entry, nil
}

// Add inserts a watchlist entry and sets its ID
func (r *watchlistRepository) Add(ctx context.Context, entry *models.WatchlistEntry) error {
	query := `
		INSERT INTO watchlists (user_id, movie_id, movie_title, status)
		VALUES (?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query, entry.UserID, entry.MovieID, entry.MovieTitle, entry.Status)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("failed to add watchlist entry: %w", ErrDuplicateEntry)
		}
		r.logger.Error("failed to add watchlist entry", zap.Error(err))
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		r.logger.Error("failed to get last insert id", zap.Error(err))
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = int(id)
	return nil
}

// UpdateStatus sets the status of a watchlist entry
func (r *watchlistRepository) UpdateStatus(ctx context.Context, userID, movieID int, status models.WatchStatus) error {
	query := `
		UPDATE watchlists
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND movie_id = ?
	`

	if _, err := r.db.ExecContext(ctx, query, status, userID, movieID); err != nil {
		r.logger.Error("failed to update watchlist status", zap.Error(err))
		return fmt.Errorf("failed to update watchlist status: %w", err)
	}

	return nil
}

// Delete removes a movie from a user's watchlist and reports whether it was there
func (r *watchlistRepository) Delete(ctx context.Context, userID, movieID int) (bool, error) {
	query := `DELETE FROM watchlists WHERE user_id = ? AND movie_id = ?`

	result, err := r.db.ExecContext(ctx, query, userID, movieID)
	if err != nil {
		r.logger.Error("failed to delete watchlist entry", zap.Error(err))
		return false, fmt.Errorf("failed to delete watchlist entry: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// DeleteMany removes several movies from a user's watchlist and returns the number of removed entries
func (r *watchlistRepository) DeleteMany(ctx context.Context, userID int, movieIDs []int) (int, error) {
	if len(movieIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(movieIDs)), ",")
	query := fmt.Sprintf(`DELETE FROM watchlists WHERE user_id = ? AND movie_id IN (%s)`, placeholders)

	args := make([]any, 0, len(movieIDs)+1)
	args = append(args, userID)
	for _, id := range movieIDs {
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to delete watchlist entries", zap.Error(err))
		return 0, fmt.Errorf("failed to delete watchlist entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// List returns one page of a user's watchlist, optionally filtered by status.
// The query is expected to be normalized by the caller.
func (r *watchlistRepository) List(ctx context.Context, userID int, q models.WatchlistQuery) ([]models.WatchlistItem, error) {
	sortColumn, ok := watchlistSortColumns[q.Sort]
	if !ok {
		return nil, fmt.Errorf("invalid sort field: %s", q.Sort)
	}
	direction := "DESC"
	if q.Order == models.SortOrderAsc {
		direction = "ASC"
	}

	where := "WHERE user_id = ?"
	args := []any{userID}
	if q.Status != "" {
		where += " AND status = ?"
		args = append(args, q.Status)
	}
	args = append(args, q.Size, (q.Page-1)*q.Size)

	query := fmt.Sprintf(`
		SELECT movie_id, movie_title, status, created_at
		FROM watchlists
		%s
		ORDER BY %s %s, id ASC
		LIMIT ? OFFSET ?
	`, where, sortColumn, direction)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list watchlist", zap.Error(err), zap.Int("user_id", userID))
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	items := []models.WatchlistItem{}
	for rows.Next() {
		var item models.WatchlistItem
		if err := rows.Scan(&item.MovieID, &item.Title, &item.Status, &item.AddedAt); err != nil {
			r.logger.Error("failed to scan watchlist item", zap.Error(err))
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// Count returns the number of entries in a user's watchlist with the given status, or all entries when status is empty
func (r *watchlistRepository) Count(ctx context.Context, userID int, status models.WatchStatus) (int, error) {
	query := `SELECT COUNT(*) FROM watchlists WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("failed to count watchlist entries", zap.Error(err), zap.Int("user_id", userID))
		return 0, fmt.Errorf("failed to count watchlist entries: %w", err)
	}

	return count, nil
}
