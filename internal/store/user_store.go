package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vidstash/vidstash/internal/models"
)

// Sentinel errors for user store operations
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserStore defines the interface for registered account storage.
type UserStore interface {
	// Create creates a new user account.
	// Returns ErrUserAlreadyExists if the email is already registered.
	Create(ctx context.Context, user *models.User) error

	// Get retrieves a user by ID.
	// Returns ErrUserNotFound if the user doesn't exist.
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// GetByEmail retrieves a user by email address.
	// Returns ErrUserNotFound if no account uses the address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrUserNotFound if the user doesn't exist.
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}
