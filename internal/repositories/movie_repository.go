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

type movieRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMovieRepository creates a new movie repository
func NewMovieRepository(db *sql.DB, logger *zap.Logger) *movieRepository {
	return &movieRepository{
		db:     db,
		logger: logger,
	}
}

// movieSortColumns maps the allowed sort fields to their columns
var movieSortColumns = map[models.MovieSortField]string{
	models.MovieSortRating:      "rating",
	models.MovieSortTitle:       "title",
	models.MovieSortReleaseYear: "release_year",
}

// GetByID retrieves a movie by its ID. It returns nil, nil when the movie does not exist.
func (r *movieRepository) GetByID(ctx context.Context, id int) (*models.Movie, error) {
	query := `
		SELECT id, title, genre, rating, release_year, description
		FROM movies
		WHERE id = ?
	`

	var movie models.Movie
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&movie.ID,
		&movie.Title,
		&movie.Genre,
		&movie.Rating,
		&movie.ReleaseYear,
		&movie.Description,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("failed to query movie by id", zap.Error(err), zap.Int("id", id))
		return nil, fmt.Errorf("failed to query movie: %w", err)
	}

	return &movie, nil
}

// Search returns one page of movies matching the title query and genre, and the total number of matches.
// Params are expected to be normalized by the caller.
func (r *movieRepository) Search(ctx context.Context, params models.MovieSearchParams) ([]models.Movie, int, error) {
	sortColumn, ok := movieSortColumns[params.SortBy]
	if !ok {
		return nil, 0, fmt.Errorf("invalid sort field: %s", params.SortBy)
	}
	direction := "DESC"
	if params.Order == models.SortOrderAsc {
		direction = "ASC"
	}

	var conditions []string
	var args []any
	if params.Query != "" {
		conditions = append(conditions, "title LIKE ?")
		args = append(args, "%"+params.Query+"%")
	}
	if params.Genre != "" {
		conditions = append(conditions, "genre LIKE ?")
		args = append(args, "%"+params.Genre+"%")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM movies %s`, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		r.logger.Error("failed to count movies", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count movies: %w", err)
	}

	// Sort column and direction come from a whitelist, never from user input directly
	query := fmt.Sprintf(`
		SELECT id, title, genre, rating, release_year, description
		FROM movies
		%s
		ORDER BY %s %s, id ASC
		LIMIT ? OFFSET ?
	`, where, sortColumn, direction)

	pageArgs := append(args, params.Limit, (params.Page-1)*params.Limit)
	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error("failed to search movies", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to search movies: %w", err)
	}
	defer rows.Close()

	movies := []models.Movie{}
	for rows.Next() {
		var movie models.Movie
		if err := rows.Scan(&movie.ID, &movie.Title, &movie.Genre, &movie.Rating, &movie.ReleaseYear, &movie.Description); err != nil {
			r.logger.Error("failed to scan movie", zap.Error(err))
			return nil, 0, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, movie)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("error iterating rows", zap.Error(err))
		return nil, 0, fmt.Errorf("error iterating rows: %w", err)
	}

	return movies, total, nil
}
