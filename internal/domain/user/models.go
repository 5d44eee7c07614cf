package user

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("user not found")

// User is the identity anchor for everything synced from the banking
// provider. GoogleID is the immutable external identity reference issued
// by the identity provider; set on first login and never changed.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	GoogleID     *string   `json:"-"` // Nullable for password users
	PasswordHash *string   `json:"-"`
	AvatarURL    *string   `json:"avatarUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserParams struct {
	Email        string
	Name         string
	GoogleID     *string
	PasswordHash *string
	AvatarURL    *string
}
