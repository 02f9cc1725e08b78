package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	authmw "github.com/movierec/backend/internal/auth/middleware"
	"github.com/movierec/backend/internal/models"
	"go.uber.org/zap"
)

// WatchlistService is the interface that wraps methods for watchlist business logic.
// Every method is scoped to the user identified by "userID".
type WatchlistService interface {
	// Method AddMovies adds movies to the watchlist. Movies already in the watchlist are skipped.
	//
	// If any movie does not exist, services.ErrNotFound is returned and nothing is added.
	AddMovies(ctx context.Context, userID int, req *models.WatchlistAddRequest) (*models.WatchlistAddResponse, error)
	// Method UpdateStatus changes the status of a movie in the watchlist.
	UpdateStatus(ctx context.Context, userID, movieID int, status models.WatchStatus) error
	// Method List returns one page of the watchlist.
	List(ctx context.Context, userID int, query models.WatchlistQuery) ([]models.WatchlistItem, error)
	// Method Remove deletes a movie from the watchlist.
	Remove(ctx context.Context, userID, movieID int) error
	// Method RemoveMany deletes several movies from the watchlist.
	RemoveMany(ctx context.Context, userID int, movieIDs []int) error
	// Method Check reports whether a movie is in the watchlist.
	Check(ctx context.Context, userID, movieID int) (*models.WatchlistCheckResponse, error)
	// Method Summary counts watchlist entries with a status, or all entries when status is empty.
	Summary(ctx context.Context, userID int, status models.WatchStatus) (*models.WatchlistSummary, error)
}

// MovieService is the interface that wraps methods for movie catalogue business logic.
type MovieService interface {
	// Method Search returns one page of movies filtered by title and genre.
	Search(ctx context.Context, params models.MovieSearchParams) (*models.MovieSearchResult, error)
}

// UserHandler handles the user dashboard, watchlist and movie search requests
type UserHandler struct {
	BaseHandler
	watchlistService WatchlistService
	movieService     MovieService
	requireUser      func(http.Handler) http.Handler
}

// NewUserHandler creates a new user handler.
// requireUser guards every route except the movie search.
func NewUserHandler(watchlistService WatchlistService, movieService MovieService, requireUser func(http.Handler) http.Handler, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler:      BaseHandler{logger: logger},
		watchlistService: watchlistService,
		movieService:     movieService,
		requireUser:      requireUser,
	}
}

// RegisterRoutes registers all user handler routes
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/movies/search", h.SearchMovies)

		r.Group(func(r chi.Router) {
			r.Use(h.requireUser)
			r.Get("/dashboard", h.Dashboard)
			r.Route("/watchlist", func(r chi.Router) {
				r.Post("/", h.AddToWatchlist)
				r.Get("/", h.ListWatchlist)
				r.Delete("/", h.RemoveManyFromWatchlist)
				r.Get("/summary", h.WatchlistSummary)
				r.Put("/{movie_id}", h.UpdateWatchlistStatus)
				r.Delete("/{movie_id}", h.RemoveFromWatchlist)
				r.Get("/{movie_id}/check", h.CheckWatchlist)
			})
		})
	})
}

// identity returns the identity attached by the role guard
func (h *UserHandler) identity(w http.ResponseWriter, r *http.Request) (*models.Identity, bool) {
	identity, ok := authmw.GetIdentity(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return identity, true
}

// movieIDParam parses the movie_id path parameter
func (h *UserHandler) movieIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	movieID, err := strconv.Atoi(chi.URLParam(r, "movie_id"))
	if err != nil || movieID <= 0 {
		h.respondError(w, http.StatusBadRequest, "invalid movie id")
		return 0, false
	}
	return movieID, true
}

// intQuery parses an optional integer query parameter. A missing parameter is 0.
func intQuery(r *http.Request, name string) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter", name)
	}
	return n, nil
}

// Dashboard handles GET /user/dashboard
// @Summary User dashboard
// @Tags user
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /user/dashboard [get]
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Welcome user %s to your dashboard!", identity.Email),
	})
}

// AddToWatchlist handles POST /user/watchlist
// @Summary Add movies to watchlist
// @Description Add one or more movies. Status defaults to "To Watch". Movies already in the watchlist are skipped.
// @Tags watchlist
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.WatchlistAddRequest true "Movies to add"
// @Success 200 {object} models.WatchlistAddResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Movie not found"
// @Router /user/watchlist [post]
func (h *UserHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req models.WatchlistAddRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.watchlistService.AddMovies(r.Context(), identity.UserID, &req)
	if err != nil {
		h.respondServiceError(w, r, err, "add movies to watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// UpdateWatchlistStatus handles PUT /user/watchlist/{movie_id}
// @Summary Update watchlist status
// @Tags watchlist
// @Produce json
// @Security ApiKeyAuth
// @Param movie_id path int true "Movie ID"
// @Param status query string true "New status: To Watch, Watching or Watched"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string "Movie not in watchlist"
// @Router /user/watchlist/{movie_id} [put]
func (h *UserHandler) UpdateWatchlistStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(w, r)
	if !ok {
		return
	}

	status := models.WatchStatus(r.URL.Query().Get("status"))
	if err := h.watchlistService.UpdateStatus(r.Context(), identity.UserID, movieID, status); err != nil {
		h.respondServiceError(w, r, err, "update watchlist status")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"movie_id": movieID, "status": status})
}

// ListWatchlist handles GET /user/watchlist
// @Summary List watchlist
// @Tags watchlist
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Filter by status"
// @Param sort query string false "added_at (default), title or status"
// @Param order query string false "asc or desc (default)"
// @Param page query int false "Page number, default 1"
// @Param size query int false "Page size, default 10"
// @Success 200 {array} models.WatchlistItem
// @Failure 400 {object} map[string]string
// @Router /user/watchlist [get]
func (h *UserHandler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	page, err := intQuery(r, "page")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	size, err := intQuery(r, "size")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := r.URL.Query()
	items, err := h.watchlistService.List(r.Context(), identity.UserID, models.WatchlistQuery{
		Status: models.WatchStatus(query.Get("status")),
		Sort:   models.WatchlistSortField(query.Get("sort")),
		Order:  models.SortOrder(query.Get("order")),
		Page:   page,
		Size:   size,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "list watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, items)
}

// RemoveFromWatchlist handles DELETE /user/watchlist/{movie_id}
// @Summary Remove a movie from watchlist
// @Tags watchlist
// @Produce json
// @Security ApiKeyAuth
// @Param movie_id path int true "Movie ID"
// @Success 200 {object} map[string]int
// @Failure 404 {object} map[string]string "Movie not in watchlist"
// @Router /user/watchlist/{movie_id} [delete]
func (h *UserHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(w, r)
	if !ok {
		return
	}

	if err := h.watchlistService.Remove(r.Context(), identity.UserID, movieID); err != nil {
		h.respondServiceError(w, r, err, "remove movie from watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]int{"removed_movie": movieID})
}

// RemoveManyFromWatchlist handles DELETE /user/watchlist
// @Summary Remove several movies from watchlist
// @Tags watchlist
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body []int true "Movie IDs"
// @Success 200 {object} map[string][]int
// @Failure 400 {object} map[string]string
// @Router /user/watchlist [delete]
func (h *UserHandler) RemoveManyFromWatchlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	var movieIDs []int
	if err := decodeJSON(r, &movieIDs); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.watchlistService.RemoveMany(r.Context(), identity.UserID, movieIDs); err != nil {
		h.respondServiceError(w, r, err, "remove movies from watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string][]int{"removed_movies": movieIDs})
}

// CheckWatchlist handles GET /user/watchlist/{movie_id}/check
// @Summary Check if a movie is in watchlist
// @Tags watchlist
// @Produce json
// @Security ApiKeyAuth
// @Param movie_id path int true "Movie ID"
// @Success 200 {object} models.WatchlistCheckResponse
// @Failure 400 {object} map[string]string
// @Router /user/watchlist/{movie_id}/check [get]
func (h *UserHandler) CheckWatchlist(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}
	movieID, ok := h.movieIDParam(w, r)
	if !ok {
		return
	}

	resp, err := h.watchlistService.Check(r.Context(), identity.UserID, movieID)
	if err != nil {
		h.respondServiceError(w, r, err, "check watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// WatchlistSummary handles GET /user/watchlist/summary
// @Summary Count watchlist entries
// @Description Count entries with the given status, or all entries when no status is given
// @Tags watchlist
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status to count"
// @Success 200 {object} models.WatchlistSummary
// @Failure 400 {object} map[string]string
// @Router /user/watchlist/summary [get]
func (h *UserHandler) WatchlistSummary(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.identity(w, r)
	if !ok {
		return
	}

	status := models.WatchStatus(r.URL.Query().Get("status"))
	summary, err := h.watchlistService.Summary(r.Context(), identity.UserID, status)
	if err != nil {
		h.respondServiceError(w, r, err, "summarize watchlist")
		return
	}

	h.respondJSON(w, http.StatusOK, summary)
}

// SearchMovies handles POST /user/movies/search
// @Summary Search movies
// @Description Search the catalogue by title and genre. Defaults: page 1, limit 10, sorted by rating descending.
// @Tags movies
// @Accept json
// @Produce json
// @Param request body models.MovieSearchParams true "Search parameters"
// @Success 200 {object} models.MovieSearchResult
// @Failure 400 {object} map[string]string
// @Router /user/movies/search [post]
func (h *UserHandler) SearchMovies(w http.ResponseWriter, r *http.Request) {
	var params models.MovieSearchParams
	if err := decodeJSON(r, &params); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.movieService.Search(r.Context(), params)
	if err != nil {
		h.respondServiceError(w, r, err, "search movies")
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}
