package models

// Movie represents a movie in the catalogue
type Movie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Genre       string  `json:"genre"`
	Rating      float64 `json:"rating"`
	ReleaseYear int     `json:"release_year"`
	Description string  `json:"description"`
}

// MovieSortField is a column movies can be sorted by
type MovieSortField string

// MovieSortField constants
const (
	MovieSortRating      MovieSortField = "rating"
	MovieSortTitle       MovieSortField = "title"
	MovieSortReleaseYear MovieSortField = "release_year"
)

// SortOrder is the direction of a sort
type SortOrder string

// SortOrder constants
const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// MovieSearchParams represents a movie search request
type MovieSearchParams struct {
	Query  string         `json:"q"`
	Genre  string         `json:"genre"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
	SortBy MovieSortField `json:"sort_by"`
	Order  SortOrder      `json:"order"`
}

// MovieSearchResult is one page of movie search results
type MovieSearchResult struct {
	Page   int     `json:"page"`
	Limit  int     `json:"limit"`
	Total  int     `json:"total"`
	Movies []Movie `json:"movies"`
}
