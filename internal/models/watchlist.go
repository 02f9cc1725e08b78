package models

import "time"

// WatchStatus is the viewing state of a watchlist entry
type WatchStatus string

// WatchStatus constants
const (
	WatchStatusToWatch  WatchStatus = "To Watch"
	WatchStatusWatching WatchStatus = "Watching"
	WatchStatusWatched  WatchStatus = "Watched"
)

// IsValid reports whether the status is one of the known statuses
func (s WatchStatus) IsValid() bool {
	switch s {
	case WatchStatusToWatch, WatchStatusWatching, WatchStatusWatched:
		return true
	}
	return false
}

// WatchlistEntry represents a movie in a user's watchlist
type WatchlistEntry struct {
	ID         int         `json:"id"`
	UserID     int         `json:"user_id"`
	MovieID    int         `json:"movie_id"`
	MovieTitle string      `json:"title"`
	Status     WatchStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// WatchlistSortField is a column the watchlist can be sorted by
type WatchlistSortField string

// WatchlistSortField constants
const (
	WatchlistSortAddedAt WatchlistSortField = "added_at"
	WatchlistSortTitle   WatchlistSortField = "title"
	WatchlistSortStatus  WatchlistSortField = "status"
)

// WatchlistQuery holds filter, sort and pagination options for listing a watchlist
type WatchlistQuery struct {
	Status WatchStatus
	Sort   WatchlistSortField
	Order  SortOrder
	Page   int
	Size   int
}

// WatchlistAddRequest represents a request to add movies to the watchlist
type WatchlistAddRequest struct {
	MovieIDs []int       `json:"movie_ids"`
	Status   WatchStatus `json:"status"`
}

// AddedMovie is a movie added to the watchlist
type AddedMovie struct {
	MovieID int    `json:"movie_id"`
	Title   string `json:"title"`
}

// WatchlistAddResponse represents the result of adding movies to the watchlist
type WatchlistAddResponse struct {
	AddedMovies []AddedMovie `json:"added_movies"`
	Status      WatchStatus  `json:"status"`
}

// WatchlistItem represents a watchlist entry in API responses
type WatchlistItem struct {
	MovieID int         `json:"movie_id"`
	Title   string      `json:"title"`
	Status  WatchStatus `json:"status"`
	AddedAt time.Time   `json:"added_at"`
}

// WatchlistCheckResponse reports whether a movie is in the watchlist
type WatchlistCheckResponse struct {
	InWatchlist bool        `json:"inWatchlist"`
	Status      WatchStatus `json:"status,omitempty"`
}

// WatchlistSummary is the number of watchlist entries with a given status
type WatchlistSummary struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}
