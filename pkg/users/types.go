package users

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New("email already registered")
)

// User is an account that owns assistants and authenticates with a password
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"`
	Name           string    `json:"name"`
	Role           string    `json:"role,omitempty"`
	Organization   string    `json:"organization,omitempty"`
	Contact        string    `json:"contact,omitempty"`
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// TokensValidAfter rejects every token issued before it. Nil means no cutoff.
	TokensValidAfter *time.Time `json:"-"`
}

// ListOptions filters and paginates user listings
type ListOptions struct {
	Search string
	Skip   int
	Limit  int
}

// Update holds the fields a user may change on their own profile.
// Nil fields are left untouched.
type Update struct {
	Email        *string `json:"email,omitempty"`
	Name         *string `json:"name,omitempty"`
	Role         *string `json:"role,omitempty"`
	Organization *string `json:"organization,omitempty"`
	Contact      *string `json:"contact,omitempty"`
}

// Apply copies the set fields onto u
func (up Update) Apply(u *User) {
	if up.Email != nil {
		u.Email = *up.Email
	}
	if up.Name != nil {
		u.Name = *up.Name
	}
	if up.Role != nil {
		u.Role = *up.Role
	}
	if up.Organization != nil {
		u.Organization = *up.Organization
	}
	if up.Contact != nil {
		u.Contact = *up.Contact
	}
}
