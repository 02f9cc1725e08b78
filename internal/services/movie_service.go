package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

// Pagination defaults shared by the movie search and the watchlist listing
const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// MovieRepository is the interface that wraps methods for Movie table data access
type MovieRepository interface {
	// Method GetByID retrieves a movie by its ID, or "nil" if it does not exist.
	GetByID(ctx context.Context, id int) (*models.Movie, error)
	// Method Search returns one page of movies matching the params and the total number of matches.
	Search(ctx context.Context, params models.MovieSearchParams) ([]models.Movie, int, error)
}

type movieService struct {
	repo   MovieRepository
	logger *zap.Logger
}

// NewMovieService creates a new movie service
func NewMovieService(repo MovieRepository, logger *zap.Logger) *movieService {
	return &movieService{
		repo:   repo,
		logger: logger,
	}
}

// Search returns one page of movies filtered by title and genre
func (s *movieService) Search(ctx context.Context, params models.MovieSearchParams) (*models.MovieSearchResult, error) {
	params.Query = strings.TrimSpace(params.Query)
	params.Genre = strings.TrimSpace(params.Genre)

	page, limit, err := normalizePagination(params.Page, params.Limit)
	if err != nil {
		return nil, err
	}
	params.Page, params.Limit = page, limit

	switch params.SortBy {
	case "":
		params.SortBy = models.MovieSortRating
	case models.MovieSortRating, models.MovieSortTitle, models.MovieSortReleaseYear:
	default:
		return nil, fmt.Errorf("%w: invalid sort_by %q", ErrValidation, params.SortBy)
	}

	if params.Order, err = normalizeOrder(params.Order); err != nil {
		return nil, err
	}

	movies, total, err := s.repo.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	return &models.MovieSearchResult{
		Page:   params.Page,
		Limit:  params.Limit,
		Total:  total,
		Movies: movies,
	}, nil
}

// normalizePagination applies defaults to zero values and rejects out of range values
func normalizePagination(page, size int) (int, int, error) {
	if page == 0 {
		page = defaultPage
	}
	if size == 0 {
		size = defaultPageSize
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be positive", ErrValidation)
	}
	if size < 1 || size > maxPageSize {
		return 0, 0, fmt.Errorf("%w: page size must be between 1 and %d", ErrValidation, maxPageSize)
	}
	// The row offset (page-1)*size must fit in an int
	if page > math.MaxInt/size {
		return 0, 0, fmt.Errorf("%w: page is out of range", ErrValidation)
	}
	return page, size, nil
}

// normalizeOrder defaults to descending order
func normalizeOrder(order models.SortOrder) (models.SortOrder, error) {
	switch models.SortOrder(strings.ToLower(string(order))) {
	case "", models.SortOrderDesc:
		return models.SortOrderDesc, nil
	case models.SortOrderAsc:
		return models.SortOrderAsc, nil
	}
	return "", fmt.Errorf("%w: invalid order %q", ErrValidation, order)
}
