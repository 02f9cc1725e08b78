package models

// Identity is the caller resolved from a bearer token for a single request
type Identity struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}
