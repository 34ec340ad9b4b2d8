package domain

import (
	"time"
)

// Account lifecycle states. A claimed email starts as TemporaryCreated and
// becomes Created only when registration completes.
const (
	StatusTemporaryCreated = "TEMPORARY_CREATED"
	StatusCreated          = "Created"
)

// RoleUser is the default role granted on registration.
const RoleUser = "User"

// User represents an account in any stage of the lifecycle.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Phone          string    `json:"phone,omitempty"`
	Status         string    `json:"status"`
	EmailConfirmed bool      `json:"email_confirmed"`
	Roles          []string  `json:"roles"`

	// ConfirmTokenHash holds the SHA-256 hex of the most recently issued
	// confirmation token; re-claiming the email overwrites it, so only the
	// last issued token can confirm.
	ConfirmTokenHash      string     `json:"-"`
	ConfirmTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRegistered reports whether the account has completed registration.
func (u *User) IsRegistered() bool {
	return u.Status == StatusCreated
}

// HasRole reports whether the user carries the given role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
