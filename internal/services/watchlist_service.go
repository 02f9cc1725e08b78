package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/movierec/backend/internal/models"
	"github.com/movierec/backend/internal/repositories"
	"go.uber.org/zap"
)

// WatchlistRepository is the interface that wraps methods for Watchlist table data access
type WatchlistRepository interface {
	// Method GetEntry retrieves the watchlist entry of a movie, or "nil" if the movie is not in the watchlist.
	GetEntry(ctx context.Context, userID, movieID int) (*models.WatchlistEntry, error)
	// Method Add inserts a watchlist entry.
	//
	// If the movie is already in the watchlist, an error wrapping repositories.ErrDuplicateEntry is returned.
	Add(ctx context.Context, entry *models.WatchlistEntry) error
	// Method UpdateStatus sets the status of a watchlist entry.
	UpdateStatus(ctx context.Context, userID, movieID int, status models.WatchStatus) error
	// Method Delete removes a movie from the watchlist and reports whether it was there.
	Delete(ctx context.Context, userID, movieID int) (bool, error)
	// Method DeleteMany removes several movies from the watchlist and returns the number of removed entries.
	DeleteMany(ctx context.Context, userID int, movieIDs []int) (int, error)
	// Method List returns one page of the watchlist.
	List(ctx context.Context, userID int, query models.WatchlistQuery) ([]models.WatchlistItem, error)
	// Method Count returns the number of entries with the given status, or of all entries when status is empty.
	Count(ctx context.Context, userID int, status models.WatchStatus) (int, error)
}

type watchlistService struct {
	watchlistRepo WatchlistRepository
	movieRepo     MovieRepository
	logger        *zap.Logger
}

// NewWatchlistService creates a new watchlist service
func NewWatchlistService(watchlistRepo WatchlistRepository, movieRepo MovieRepository, logger *zap.Logger) *watchlistService {
	return &watchlistService{
		watchlistRepo: watchlistRepo,
		movieRepo:     movieRepo,
		logger:        logger,
	}
}

// AddMovies adds movies to the user's watchlist with the requested status ("To Watch" when empty).
// Movies already in the watchlist are skipped. Nothing is added if any movie does not exist.
func (s *watchlistService) AddMovies(ctx context.Context, userID int, req *models.WatchlistAddRequest) (*models.WatchlistAddResponse, error) {
	if len(req.MovieIDs) == 0 {
		return nil, fmt.Errorf("%w: movie_ids cannot be empty", ErrValidation)
	}

	status := req.Status
	if status == "" {
		status = models.WatchStatusToWatch
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	seen := make(map[int]bool, len(req.MovieIDs))
	var movies []*models.Movie
	for _, id := range req.MovieIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		movie, err := s.movieRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if movie == nil {
			return nil, fmt.Errorf("%w: movie with ID %d", ErrNotFound, id)
		}
		movies = append(movies, movie)
	}

	added := []models.AddedMovie{}
	for _, movie := range movies {
		existing, err := s.watchlistRepo.GetEntry(ctx, userID, movie.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			continue
		}

		entry := &models.WatchlistEntry{
			UserID:     userID,
			MovieID:    movie.ID,
			MovieTitle: movie.Title,
			Status:     status,
		}
		if err := s.watchlistRepo.Add(ctx, entry); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEntry) {
				continue
			}
			return nil, err
		}
		added = append(added, models.AddedMovie{MovieID: movie.ID, Title: movie.Title})
	}

	s.logger.Info("movies added to watchlist", zap.Int("user_id", userID), zap.Int("count", len(added)), zap.String("status", string(status)))
	return &models.WatchlistAddResponse{AddedMovies: added, Status: status}, nil
}

// UpdateStatus changes the status of a movie in the user's watchlist
func (s *watchlistService) UpdateStatus(ctx context.Context, userID, movieID int, status models.WatchStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	entry, err := s.watchlistRepo.GetEntry(ctx, userID, movieID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: movie not in watchlist", ErrNotFound)
	}

	if err := s.watchlistRepo.UpdateStatus(ctx, userID, movieID, status); err != nil {
		return err
	}

	s.logger.Info("watchlist status updated", zap.Int("user_id", userID), zap.Int("movie_id", movieID), zap.String("status", string(status)))
	return nil
}

// List returns one page of the user's watchlist. Defaults: newest first, page 1, 10 items.
func (s *watchlistService) List(ctx context.Context, userID int, query models.WatchlistQuery) ([]models.WatchlistItem, error) {
	if query.Status != "" && !query.Status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, query.Status)
	}

	switch query.Sort {
	case "":
		query.Sort = models.WatchlistSortAddedAt
	case models.WatchlistSortAddedAt, models.WatchlistSortTitle, models.WatchlistSortStatus:
	default:
		return nil, fmt.Errorf("%w: invalid sort %q", ErrValidation, query.Sort)
	}

	var err error
	if query.Order, err = normalizeOrder(query.Order); err != nil {
		return nil, err
	}
	if query.Page, query.Size, err = normalizePagination(query.Page, query.Size); err != nil {
		return nil, err
	}

	return s.watchlistRepo.List(ctx, userID, query)
}

// Remove deletes a movie from the user's watchlist
func (s *watchlistService) Remove(ctx context.Context, userID, movieID int) error {
	removed, err := s.watchlistRepo.Delete(ctx, userID, movieID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: movie not in watchlist", ErrNotFound)
	}

	s.logger.Info("movie removed from watchlist", zap.Int("user_id", userID), zap.Int("movie_id", movieID))
	return nil
}

// RemoveMany deletes several movies from the user's watchlist. Movies that are not in the watchlist are ignored.
func (s *watchlistService) RemoveMany(ctx context.Context, userID int, movieIDs []int) error {
	if len(movieIDs) == 0 {
		return fmt.Errorf("%w: movie ids cannot be empty", ErrValidation)
	}

	removed, err := s.watchlistRepo.DeleteMany(ctx, userID, movieIDs)
	if err != nil {
		return err
	}

	s.logger.Info("movies removed from watchlist", zap.Int("user_id", userID), zap.Int("count", removed))
	return nil
}

// Check reports whether a movie is in the user's watchlist and its status
func (s *watchlistService) Check(ctx context.Context, userID, movieID int) (*models.WatchlistCheckResponse, error) {
	entry, err := s.watchlistRepo.GetEntry(ctx, userID, movieID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return &models.WatchlistCheckResponse{InWatchlist: false}, nil
	}
	return &models.WatchlistCheckResponse{InWatchlist: true, Status: entry.Status}, nil
}

// Summary counts the user's watchlist entries with the given status, or all entries when status is empty
func (s *watchlistService) Summary(ctx context.Context, userID int, status models.WatchStatus) (*models.WatchlistSummary, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, status)
	}

	count, err := s.watchlistRepo.Count(ctx, userID, status)
	if err != nil {
		return nil, err
	}

	label := string(status)
	if label == "" {
		label = "all"
	}
	return &models.WatchlistSummary{Status: label, Count: count}, nil
}
