package repository

import (
	"context"

	"github.com/neosign/identity/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update writes all mutable fields of an existing user in one statement.
	// Registration completion relies on this: profile, password hash, and
	// status land together or not at all.
	Update(ctx context.Context, user *domain.User) error
}

// OTPRepository defines the interface for OTP persistence operations. Rows
// are append-only apart from the seen flag; expiry is never enforced by
// deletion.
type OTPRepository interface {
	// Create stores a newly issued code.
	Create(ctx context.Context, otp *domain.OTP) error

	// Find returns the most recently issued record matching the user and
	// code, regardless of expiry or consumption state.
	Find(ctx context.Context, userID string, code int) (*domain.OTP, error)

	// MarkSeen records consumption of the code. The only mutation path.
	MarkSeen(ctx context.Context, id string) error
}
