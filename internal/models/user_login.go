package models

import "time"

// LoginStatus is the state of a user login session
type LoginStatus string

// LoginStatus constants
const (
	LoginStatusActive   LoginStatus = "active"
	LoginStatusInactive LoginStatus = "inactive"
)

// UserLogin is the single session row of a user.
// A new login overwrites Token and flips Status back to active.
type UserLogin struct {
	ID        int         `json:"id"`
	UserID    int         `json:"user_id"`
	Token     string      `json:"-"`
	Status    LoginStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// IsActive reports whether the session is active
func (l *UserLogin) IsActive() bool {
	return l != nil && l.Status == LoginStatusActive
}
