package domain

import "time"

const (
	RoleUser = "user"

	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// User represents an authenticated identity in the platform.
type User struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}
